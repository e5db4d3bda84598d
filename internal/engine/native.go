package engine

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/gif"

	"github.com/disintegration/imaging"
)

// NativeBackend composites in-process with the standard GIF codec. It keeps
// the pipeline usable on hosts without ffmpeg and gives tests a hermetic
// engine, at the cost of re-quantizing each frame against its own palette.
type NativeBackend struct{}

// NewNativeBackend constructs the pure-Go backend.
func NewNativeBackend() *NativeBackend { return &NativeBackend{} }

// Name identifies the backend in logs and engine status output.
func (b *NativeBackend) Name() string { return "native" }

// Load is cheap for the native backend; the adapter still gates it so both
// backends share one lifecycle.
func (b *NativeBackend) Load(ctx context.Context) error {
	return ctx.Err()
}

// Run decodes the animation, burns the raster onto every frame, and
// re-encodes. Cancellation is observed between frames.
func (b *NativeBackend) Run(ctx context.Context, req Request, emit func(float64)) (*Result, error) {
	decoded, err := gif.DecodeAll(bytes.NewReader(req.SourceBytes))
	if err != nil {
		return nil, fmt.Errorf("decode source: %w", err)
	}
	if len(decoded.Image) == 0 {
		return nil, fmt.Errorf("source has no frames")
	}

	logical := image.Rect(0, 0, req.Width, req.Height)
	canvas := image.NewNRGBA(logical)
	frames := len(decoded.Image)
	out := &gif.GIF{
		Image:     make([]*image.Paletted, 0, frames),
		Delay:     make([]int, 0, frames),
		Disposal:  make([]byte, 0, frames),
		LoopCount: decoded.LoopCount,
		Config: image.Config{
			Width:  req.Width,
			Height: req.Height,
		},
	}

	for i, frame := range decoded.Image {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		draw.Draw(canvas, frame.Bounds(), frame, frame.Bounds().Min, draw.Over)
		composed := imaging.Overlay(canvas, req.Raster, image.Point{}, 1.0)

		paletted := image.NewPaletted(logical, frame.Palette)
		draw.FloydSteinberg.Draw(paletted, logical, composed, image.Point{})

		out.Image = append(out.Image, paletted)
		out.Delay = append(out.Delay, delayAt(decoded.Delay, i))
		out.Disposal = append(out.Disposal, gif.DisposalNone)

		if i < len(decoded.Disposal) && decoded.Disposal[i] == gif.DisposalBackground {
			draw.Draw(canvas, frame.Bounds(), image.Transparent, image.Point{}, draw.Src)
		}

		emit(float64(i+1) / float64(frames))
	}

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, out); err != nil {
		return nil, fmt.Errorf("encode output: %w", err)
	}
	return &Result{EncodedBytes: buf.Bytes(), Width: req.Width, Height: req.Height}, nil
}

// Release is a no-op; the native backend holds no external resources.
func (b *NativeBackend) Release() error { return nil }

func delayAt(delays []int, i int) int {
	if i < len(delays) {
		return delays[i]
	}
	return 0
}

var _ Backend = (*NativeBackend)(nil)
