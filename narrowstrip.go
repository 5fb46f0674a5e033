package paintbynumbers

import (
	"context"
	"math"
)

// RepairNarrowStrips runs one cleanup pass over grid: a pixel whose colour
// differs from both its vertical neighbours (or both its horizontal ones)
// is a one pixel wide strip and takes the colour of one of those
// neighbours. The pass reads a snapshot, so its result does not depend on
// scan order. Returns the number of pixels changed.
func RepairNarrowStrips(ctx context.Context, grid *IndexGrid, palette []RGB, progress ProgressFunc) (int, error) {
	src := grid.Clone()
	changed := 0
	for y := range grid.H {
		if err := checkRow(ctx, y, grid.W); err != nil {
			return changed, err
		}
		for x := range grid.W {
			cur := src.At(x, y)
			next := cur
			if y > 0 && y < grid.H-1 {
				top, bottom := src.At(x, y-1), src.At(x, y+1)
				if cur != top && cur != bottom {
					next = dominantNeighbour(src, palette, x, y, top, bottom)
				}
			}
			if next == cur && x > 0 && x < grid.W-1 {
				left, right := src.At(x-1, y), src.At(x+1, y)
				if cur != left && cur != right {
					next = dominantNeighbour(src, palette, x, y, left, right)
				}
			}
			if next != cur {
				grid.Set(x, y, next)
				changed++
			}
		}
		if grid.H > 1 {
			progress.report(100 * float64(y) / float64(grid.H-1))
		}
	}
	return changed, nil
}

// dominantNeighbour picks between the two sandwiching colours a and b: the
// one occurring more often in the 3x3 neighbourhood wins, then the one
// closer in colour to the current pixel, then the lower index.
func dominantNeighbour(g *IndexGrid, palette []RGB, x, y, a, b int) int {
	if a == b {
		return a
	}
	na, nb := 0, 0
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if !g.inside(x+dx, y+dy) {
				continue
			}
			switch g.At(x+dx, y+dy) {
			case a:
				na++
			case b:
				nb++
			}
		}
	}
	if na != nb {
		if na > nb {
			return a
		}
		return b
	}
	cur := palette[g.At(x, y)].colorful()
	da := cur.DistanceLab(palette[a].colorful())
	db := cur.DistanceLab(palette[b].colorful())
	if math.Abs(da-db) > 1e-12 {
		if da < db {
			return a
		}
		return b
	}
	return min(a, b)
}
