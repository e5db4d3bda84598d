// Package geometry converts percentage-based overlay positions into absolute
// pixel coordinates and back.
//
// The same percentage pair is resolved against three different boxes over an
// overlay's life: the on-screen preview box, the media's natural pixel grid,
// and the output canvas. Keeping the conversion in one place is what makes
// the preview and the encoded output agree on text placement.
package geometry
