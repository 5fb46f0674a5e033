package paintbynumbers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gridRows(g *IndexGrid) []string {
	rows := make([]string, g.H)
	for y := range g.H {
		b := make([]byte, g.W)
		for x := range g.W {
			b[x] = byte('0' + g.At(x, y))
		}
		rows[y] = string(b)
	}
	return rows
}

func TestRepairNarrowStrips_VerticalLine(t *testing.T) {
	grid := gridFromRows(
		"00100",
		"00100",
		"00100",
		"00100",
		"00100",
	)
	changed, err := RepairNarrowStrips(context.Background(), grid, grayPalette(2), nil)
	require.NoError(t, err)
	assert.Equal(t, 5, changed)
	for _, v := range grid.Idx {
		assert.Equal(t, 0, v)
	}
}

func TestRepairNarrowStrips_ClosestColourOnTie(t *testing.T) {
	palette := []RGB{{0, 0, 0}, {255, 255, 255}, {200, 200, 200}}
	grid := gridFromRows("021")
	changed, err := RepairNarrowStrips(context.Background(), grid, palette, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)
	assert.Equal(t, []string{"011"}, gridRows(grid))
}

func TestRepairNarrowStrips_Majority(t *testing.T) {
	grid := gridFromRows(
		"000",
		"121",
		"111",
	)
	changed, err := RepairNarrowStrips(context.Background(), grid, grayPalette(3), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)
	assert.Equal(t, []string{"000", "111", "111"}, gridRows(grid))
}

func TestRepairNarrowStrips_ReadsSnapshot(t *testing.T) {
	grid := gridFromRows(
		"010",
		"101",
		"010",
	)
	changed, err := RepairNarrowStrips(context.Background(), grid, grayPalette(2), nil)
	require.NoError(t, err)
	assert.Equal(t, 5, changed)
	assert.Equal(t, []string{"000", "010", "000"}, gridRows(grid))
}

func TestRepairNarrowStrips_LeavesThickRegions(t *testing.T) {
	grid := gridFromRows(
		"0011",
		"0011",
		"2222",
		"2222",
	)
	before := grid.Clone()
	changed, err := RepairNarrowStrips(context.Background(), grid, grayPalette(3), nil)
	require.NoError(t, err)
	assert.Zero(t, changed)
	assert.Equal(t, before.Idx, grid.Idx)
}

func TestRepairNarrowStrips_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := RepairNarrowStrips(ctx, NewIndexGrid(4, 4), grayPalette(1), nil)
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestRepairNarrowStrips_CancelledMidPass(t *testing.T) {
	for _, w := range []int{1000, 1001, 1023} {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		progress := func(float64) {
			if calls++; calls == 2 {
				cancel()
			}
		}
		_, err := RepairNarrowStrips(ctx, randomGrid(w, 256, 3, 1), grayPalette(3), progress)
		assert.ErrorIs(t, err, ErrCancelled, "width %d", w)
		assert.Less(t, calls, 10, "width %d", w)
		cancel()
	}
}
