// Package render rasterizes an overlay set into a single transparent image
// sized to the source media's natural pixel grid.
//
// The raster is what the transcoding engine composites onto the animation at
// offset (0,0), so all coordinate and font math happens here, with the same
// centered-anchor semantics for every overlay. The filter graph downstream
// performs no further placement.
package render
