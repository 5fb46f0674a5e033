package paintbynumbers

import (
	"encoding/json"
	"io"
)

// PaletteEntry describes how much of the final picture one palette colour
// covers.
type PaletteEntry struct {
	Index          int     `json:"index"`
	Color          RGB     `json:"color"`
	ColorAlias     string  `json:"colorAlias,omitempty"`
	Frequency      int     `json:"frequency"`
	AreaPercentage float64 `json:"areaPercentage"`
}

// PaletteStats counts the pixels per palette index of grid. Aliases are
// matched by exact colour.
func PaletteStats(grid *IndexGrid, palette []RGB, aliases map[string]RGB) []PaletteEntry {
	freq := make([]int, len(palette))
	for _, c := range grid.Idx {
		freq[c]++
	}
	byColor := make(map[RGB]string, len(aliases))
	for name, c := range aliases {
		// Deterministic pick when two names share a colour.
		if prev, ok := byColor[c]; !ok || name < prev {
			byColor[c] = name
		}
	}
	total := max(len(grid.Idx), 1)
	out := make([]PaletteEntry, len(palette))
	for i, c := range palette {
		out[i] = PaletteEntry{
			Index:          i,
			Color:          c,
			ColorAlias:     byColor[c],
			Frequency:      freq[i],
			AreaPercentage: float64(freq[i]) / float64(total),
		}
	}
	return out
}

// WritePaletteJSON writes the palette statistics as indented JSON.
func WritePaletteJSON(w io.Writer, entries []PaletteEntry) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}
