package overlay

import (
	"fmt"
	"regexp"
	"strings"

	"gifsmith/internal/faults"
)

var hexColorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)

// Result is the outcome of validating one overlay. Mutators consult it
// instead of panicking or throwing so every call site handles invalid input
// the same way.
type Result struct {
	OK     bool
	Reason string
}

// Validate checks an overlay against the model's hard bounds. It is the
// single source of validity for every mutation entry point.
func Validate(o TextOverlay) Result {
	if strings.TrimSpace(o.ID) == "" {
		return invalid("overlay id missing")
	}
	if o.Style.FontSize <= 0 {
		return invalid(fmt.Sprintf("font size %v must be positive", o.Style.FontSize))
	}
	if o.Style.Opacity < 0 || o.Style.Opacity > 1 {
		return invalid(fmt.Sprintf("opacity %v outside [0,1]", o.Style.Opacity))
	}
	if o.Style.StrokeWidth < 0 {
		return invalid(fmt.Sprintf("stroke width %v must not be negative", o.Style.StrokeWidth))
	}
	if o.Position.X < 0 || o.Position.X > 100 {
		return invalid(fmt.Sprintf("position x %v outside [0,100]", o.Position.X))
	}
	if o.Position.Y < 0 || o.Position.Y > 100 {
		return invalid(fmt.Sprintf("position y %v outside [0,100]", o.Position.Y))
	}
	if o.Style.Color != "" && !hexColorPattern.MatchString(o.Style.Color) {
		return invalid(fmt.Sprintf("color %q is not a hex color", o.Style.Color))
	}
	if o.Style.StrokeColor != "" && !hexColorPattern.MatchString(o.Style.StrokeColor) {
		return invalid(fmt.Sprintf("stroke color %q is not a hex color", o.Style.StrokeColor))
	}
	switch o.Style.FontWeight {
	case WeightNormal, WeightBold, "":
	default:
		return invalid(fmt.Sprintf("font weight %q unsupported", o.Style.FontWeight))
	}
	switch o.Style.TextAlign {
	case AlignLeft, AlignCenter, AlignRight, "":
	default:
		return invalid(fmt.Sprintf("text align %q unsupported", o.Style.TextAlign))
	}
	return Result{OK: true}
}

// Err converts a failed Result into a tagged validation error.
func (r Result) Err() error {
	if r.OK {
		return nil
	}
	return faults.Wrap(faults.ErrValidation, "overlay", "validate", r.Reason, nil)
}

func invalid(reason string) Result {
	return Result{Reason: reason}
}
