package geometry

import (
	"gifsmith/internal/faults"
)

// Position is a resolution-independent placement: each axis is a percentage
// of the containing box in [0, 100].
type Position struct {
	X float64 `json:"x" toml:"x"`
	Y float64 `json:"y" toml:"y"`
}

// Point is an absolute pixel coordinate inside a concrete box.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Box is a concrete pixel surface: a preview box, the media's natural grid,
// or the output canvas.
type Box struct {
	Width  float64
	Height float64
}

// Valid reports whether the box has positive area.
func (b Box) Valid() bool {
	return b.Width > 0 && b.Height > 0
}

// ToPixels resolves a percentage position against box dimensions. Callers
// resolving output coordinates must pass the media's NATURAL dimensions, not
// the possibly scaled preview box.
func ToPixels(pos Position, box Box) (Point, error) {
	if !box.Valid() {
		return Point{}, faults.Wrap(faults.ErrNotReady, "geometry", "to-pixels", "box dimensions unknown", nil)
	}
	return Point{
		X: pos.X / 100 * box.Width,
		Y: pos.Y / 100 * box.Height,
	}, nil
}

// ToPercent is the inverse of ToPixels, clamped to [0, 100] so pointer
// positions outside the box resolve to the nearest edge.
func ToPercent(pt Point, box Box) (Position, error) {
	if !box.Valid() {
		return Position{}, faults.Wrap(faults.ErrNotReady, "geometry", "to-percent", "box dimensions unknown", nil)
	}
	return Position{
		X: Clamp(pt.X/box.Width*100, 0, 100),
		Y: Clamp(pt.Y/box.Height*100, 0, 100),
	}, nil
}

// PreviewScale returns the uniform factor the preview applies to fit the
// media into the display box. It scales preview font sizes only; output
// coordinate resolution never applies it.
func PreviewScale(display, natural Box) float64 {
	if !display.Valid() || !natural.Valid() {
		return 1
	}
	sx := display.Width / natural.Width
	sy := display.Height / natural.Height
	if sx < sy {
		return sx
	}
	return sy
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
