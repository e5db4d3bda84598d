package render

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"gifsmith/internal/faults"
	"gifsmith/internal/geometry"
	"gifsmith/internal/overlay"
	"gifsmith/internal/textutil"
)

// MaxSurfacePixels bounds raster allocation. Anything larger fails fast with
// a RenderSurfaceError instead of silently downscaling.
const MaxSurfacePixels = 1 << 26

// strokeSamples is the number of ring offsets used to paint the stroke pass.
const strokeSamples = 16

// Bounds is the measured pixel extent of one drawn overlay, stroke included.
type Bounds struct {
	OverlayID string `json:"overlayId"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// Renderer rasterizes overlays. It is safe for concurrent use; parsed fonts
// and sized faces are cached across calls.
type Renderer struct {
	faces *faceCache
}

// NewRenderer constructs a Renderer.
func NewRenderer() *Renderer {
	return &Renderer{faces: newFaceCache()}
}

// Render draws every overlay with non-empty trimmed text onto a transparent
// surface of exactly naturalWidth x naturalHeight. Overlays paint in slice
// order, stroke before fill, each anchored centered at its resolved pixel
// position regardless of the declared TextAlign. That normalization matches
// the anchor semantics of the compositing filter graph and is deliberate.
func (r *Renderer) Render(naturalWidth, naturalHeight int, overlays []overlay.TextOverlay) (*image.NRGBA, []Bounds, error) {
	if naturalWidth <= 0 || naturalHeight <= 0 {
		return nil, nil, faults.Wrap(faults.ErrRenderSurface, "render", "allocate",
			fmt.Sprintf("surface %dx%d has no area", naturalWidth, naturalHeight), nil)
	}
	if naturalWidth*naturalHeight > MaxSurfacePixels {
		return nil, nil, faults.Wrap(faults.ErrRenderSurface, "render", "allocate",
			fmt.Sprintf("surface %dx%d exceeds %d pixels", naturalWidth, naturalHeight, MaxSurfacePixels), nil)
	}

	dst := image.NewNRGBA(image.Rect(0, 0, naturalWidth, naturalHeight))
	box := geometry.Box{Width: float64(naturalWidth), Height: float64(naturalHeight)}
	bounds := make([]Bounds, 0, len(overlays))

	for _, o := range overlays {
		if !o.HasText() {
			continue
		}
		if res := overlay.Validate(o); !res.OK {
			return nil, nil, res.Err()
		}
		b, err := r.drawOverlay(dst, box, o)
		if err != nil {
			return nil, nil, err
		}
		bounds = append(bounds, b)
	}
	return dst, bounds, nil
}

func (r *Renderer) drawOverlay(dst *image.NRGBA, box geometry.Box, o overlay.TextOverlay) (Bounds, error) {
	anchor, err := geometry.ToPixels(o.Position, box)
	if err != nil {
		return Bounds{}, err
	}

	face, err := r.faces.face(o.Style.FontWeight, o.Style.FontSize)
	if err != nil {
		return Bounds{}, faults.Wrap(faults.ErrRenderSurface, "render", "font", "face unavailable", err)
	}

	text := textutil.Normalize(o.Text)
	advance := font.MeasureString(face, text)
	metrics := face.Metrics()

	// Centered anchor: horizontal center at anchor.X, vertical middle of the
	// ink band at anchor.Y.
	originX := anchor.X - fixedToFloat(advance)/2
	originY := anchor.Y + fixedToFloat(metrics.Ascent-metrics.Descent)/2

	fill, err := parseHexColor(o.Style.Color, o.Style.Opacity)
	if err != nil {
		return Bounds{}, faults.Wrap(faults.ErrValidation, "render", "color", "fill color", err)
	}

	if o.Style.StrokeWidth > 0 {
		stroke, err := parseHexColor(o.Style.StrokeColor, o.Style.Opacity)
		if err != nil {
			return Bounds{}, faults.Wrap(faults.ErrValidation, "render", "color", "stroke color", err)
		}
		for i := 0; i < strokeSamples; i++ {
			angle := 2 * math.Pi * float64(i) / strokeSamples
			dx := math.Cos(angle) * o.Style.StrokeWidth
			dy := math.Sin(angle) * o.Style.StrokeWidth
			drawString(dst, face, text, originX+dx, originY+dy, stroke)
		}
	}
	drawString(dst, face, text, originX, originY, fill)

	width := fixedToFloat(advance) + 2*o.Style.StrokeWidth
	height := fixedToFloat(metrics.Ascent+metrics.Descent) + 2*o.Style.StrokeWidth
	return Bounds{
		OverlayID: o.ID,
		X:         int(math.Floor(anchor.X - width/2)),
		Y:         int(math.Floor(anchor.Y - height/2)),
		Width:     int(math.Ceil(width)),
		Height:    int(math.Ceil(height)),
	}, nil
}

func drawString(dst *image.NRGBA, face font.Face, text string, x, y float64, col color.Color) {
	drawer := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: face,
		Dot: fixed.Point26_6{
			X: floatToFixed(x),
			Y: floatToFixed(y),
		},
	}
	drawer.DrawString(text)
}

func fixedToFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}

func floatToFixed(v float64) fixed.Int26_6 {
	return fixed.Int26_6(math.Round(v * 64))
}
