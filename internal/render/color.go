package render

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// parseHexColor accepts #rgb, #rrggbb, and #rrggbbaa, applying opacity on top
// of any alpha the color already carries.
func parseHexColor(value string, opacity float64) (color.NRGBA, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "#")
	var r, g, b, a uint8 = 0, 0, 0, 0xff

	switch len(trimmed) {
	case 3:
		expanded := make([]byte, 6)
		for i := 0; i < 3; i++ {
			expanded[2*i] = trimmed[i]
			expanded[2*i+1] = trimmed[i]
		}
		trimmed = string(expanded)
		fallthrough
	case 6, 8:
		parsed, err := strconv.ParseUint(trimmed[:6], 16, 32)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("hex color %q: %w", value, err)
		}
		r = uint8(parsed >> 16)
		g = uint8(parsed >> 8)
		b = uint8(parsed)
		if len(trimmed) == 8 {
			alpha, err := strconv.ParseUint(trimmed[6:8], 16, 16)
			if err != nil {
				return color.NRGBA{}, fmt.Errorf("hex color alpha %q: %w", value, err)
			}
			a = uint8(alpha)
		}
	default:
		return color.NRGBA{}, fmt.Errorf("hex color %q: unsupported length", value)
	}

	if opacity < 0 {
		opacity = 0
	}
	if opacity > 1 {
		opacity = 1
	}
	a = uint8(float64(a)*opacity + 0.5)
	return color.NRGBA{R: r, G: g, B: b, A: a}, nil
}
