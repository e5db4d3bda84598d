package overlay

import (
	"strings"

	"github.com/google/uuid"

	"gifsmith/internal/geometry"
)

// Weight selects the rendered font weight.
type Weight string

// Align is the declared horizontal alignment. The compositing renderer
// normalizes every overlay to a centered anchor; Align is carried for the
// interactive preview layer only.
type Align string

const (
	WeightNormal Weight = "normal"
	WeightBold   Weight = "bold"

	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

// Style holds the rendering attributes of one text layer.
type Style struct {
	FontSize    float64 `json:"fontSize" toml:"font_size"`
	FontFamily  string  `json:"fontFamily" toml:"font_family"`
	Color       string  `json:"color" toml:"color"`
	StrokeColor string  `json:"strokeColor" toml:"stroke_color"`
	StrokeWidth float64 `json:"strokeWidth" toml:"stroke_width"`
	Opacity     float64 `json:"opacity" toml:"opacity"`
	FontWeight  Weight  `json:"fontWeight" toml:"font_weight"`
	TextAlign   Align   `json:"textAlign" toml:"text_align"`
}

// TextOverlay is one styled text layer placed over the source animation.
type TextOverlay struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Position geometry.Position `json:"position"`
	Style    Style             `json:"style"`

	// Dragging marks an overlay mid-drag in the editor. It never affects
	// render output.
	Dragging bool `json:"isDragging,omitempty"`
}

// Soft position bounds applied on mutation so text cannot be parked flush
// against an edge where glyph ink would clip.
const (
	PositionMin = 5
	PositionMax = 95
)

// DuplicateOffset is the percentage delta applied to a duplicated overlay so
// the copy does not hide its source exactly.
const DuplicateOffset = 4.0

// DefaultStyle returns the style assigned to freshly added overlays.
func DefaultStyle() Style {
	return Style{
		FontSize:    24,
		FontFamily:  "sans-serif",
		Color:       "#ffffff",
		StrokeColor: "#000000",
		StrokeWidth: 2,
		Opacity:     1,
		FontWeight:  WeightBold,
		TextAlign:   AlignCenter,
	}
}

// New creates an overlay with a fresh id, default styling, and the given
// text, centered in the frame.
func New(text string) TextOverlay {
	return TextOverlay{
		ID:       uuid.NewString(),
		Text:     text,
		Position: geometry.Position{X: 50, Y: 50},
		Style:    DefaultStyle(),
	}
}

// HasText reports whether the overlay contributes ink to the composite.
func (o TextOverlay) HasText() bool {
	return strings.TrimSpace(o.Text) != ""
}

// clone returns a deep copy; Style and Position are value types so plain
// assignment suffices, kept as a method so future reference fields stay
// covered.
func (o TextOverlay) clone() TextOverlay {
	return o
}
