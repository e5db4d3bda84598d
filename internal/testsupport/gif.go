package testsupport

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"os"
	"path/filepath"
	"testing"
)

// GIF builds a small animated GIF with the given geometry and frame count.
// Frames alternate between two solid colors so compositing tests can tell
// frames apart.
func GIF(t testing.TB, width, height, frames int) []byte {
	t.Helper()
	if frames < 1 {
		frames = 1
	}
	palette := color.Palette{
		color.RGBA{R: 0x10, G: 0x10, B: 0x10, A: 0xff},
		color.RGBA{R: 0xe0, G: 0xe0, B: 0xe0, A: 0xff},
	}
	anim := &gif.GIF{
		Config: image.Config{Width: width, Height: height},
	}
	for i := 0; i < frames; i++ {
		frame := image.NewPaletted(image.Rect(0, 0, width, height), palette)
		fill := uint8(i % 2)
		for p := range frame.Pix {
			frame.Pix[p] = fill
		}
		anim.Image = append(anim.Image, frame)
		anim.Delay = append(anim.Delay, 10)
		anim.Disposal = append(anim.Disposal, gif.DisposalNone)
	}

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, anim); err != nil {
		t.Fatalf("encode fixture gif: %v", err)
	}
	return buf.Bytes()
}

// WriteGIF writes a fixture GIF into dir and returns its path.
func WriteGIF(t testing.TB, dir string, width, height, frames int) string {
	t.Helper()
	path := filepath.Join(dir, "fixture.gif")
	if err := os.WriteFile(path, GIF(t, width, height, frames), 0o644); err != nil {
		t.Fatalf("write fixture gif: %v", err)
	}
	return path
}
