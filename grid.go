package paintbynumbers

// IndexGrid holds one palette index per pixel, row-major. It is the
// canonical picture until borders are traced and is mutated in place by
// quantization, strip repair and facet reduction.
type IndexGrid struct {
	W, H int
	Idx  []int // len = W*H
}

func NewIndexGrid(w, h int) *IndexGrid {
	return &IndexGrid{W: w, H: h, Idx: make([]int, w*h)}
}

func (g *IndexGrid) At(x, y int) int { return g.Idx[labelOffset(g.W, x, y)] }

func (g *IndexGrid) Set(x, y, v int) { g.Idx[labelOffset(g.W, x, y)] = v }

func (g *IndexGrid) Clone() *IndexGrid {
	c := &IndexGrid{W: g.W, H: g.H, Idx: make([]int, len(g.Idx))}
	copy(c.Idx, g.Idx)
	return c
}

func (g *IndexGrid) inside(x, y int) bool {
	return x >= 0 && x < g.W && y >= 0 && y < g.H
}

func labelOffset(w, x, y int) int {
	return y*w + x
}

// 4-neighbourhood, in the order left, up, right, down.
var (
	dx4 = [4]int{-1, 0, 1, 0}
	dy4 = [4]int{0, -1, 0, 1}
)
