package render

import (
	"fmt"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"

	"gifsmith/internal/overlay"
)

// Faces come from the embedded Go fonts so the raster is reproducible on any
// host. The overlay's FontFamily is carried for the preview layer; the
// composite always resolves to the embedded face matching the weight.
type faceCache struct {
	mu    sync.Mutex
	fonts map[overlay.Weight]*opentype.Font
	faces map[faceKey]font.Face
}

type faceKey struct {
	weight overlay.Weight
	size   float64
}

func newFaceCache() *faceCache {
	return &faceCache{
		fonts: make(map[overlay.Weight]*opentype.Font, 2),
		faces: make(map[faceKey]font.Face),
	}
}

func (c *faceCache) face(weight overlay.Weight, size float64) (font.Face, error) {
	if weight != overlay.WeightBold {
		weight = overlay.WeightNormal
	}
	key := faceKey{weight: weight, size: size}

	c.mu.Lock()
	defer c.mu.Unlock()
	if face, ok := c.faces[key]; ok {
		return face, nil
	}

	parsed, ok := c.fonts[weight]
	if !ok {
		data := goregular.TTF
		if weight == overlay.WeightBold {
			data = gobold.TTF
		}
		var err error
		parsed, err = opentype.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("parse embedded font: %w", err)
		}
		c.fonts[weight] = parsed
	}

	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("build face at %vpx: %w", size, err)
	}
	c.faces[key] = face
	return face, nil
}
