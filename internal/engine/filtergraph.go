package engine

import (
	"fmt"
	"strings"
)

// filterGraph builds the -filter_complex expression for the ffmpeg backend.
// The graph only composites two same-sized inputs and prepares the GIF
// palette; glyph placement happened in the raster already.
type filterGraph struct {
	steps []string
}

func newFilterGraph() *filterGraph {
	return &filterGraph{steps: make([]string, 0, 2)}
}

// Overlay composites input 1 onto input 0 at a fixed offset.
func (g *filterGraph) Overlay(x, y int) *filterGraph {
	g.steps = append(g.steps, fmt.Sprintf("[0:v][1:v]overlay=%d:%d", x, y))
	return g
}

// PaletteGIF appends the split/palettegen/paletteuse chain GIF output needs
// to avoid the default 256-color dither artifacts.
func (g *filterGraph) PaletteGIF() *filterGraph {
	g.steps = append(g.steps, "split[a][b];[b]palettegen[p];[a][p]paletteuse")
	return g
}

// Custom appends a raw filter expression.
func (g *filterGraph) Custom(expr string) *filterGraph {
	if strings.TrimSpace(expr) != "" {
		g.steps = append(g.steps, expr)
	}
	return g
}

func (g *filterGraph) Build() string {
	return strings.Join(g.steps, ",")
}
