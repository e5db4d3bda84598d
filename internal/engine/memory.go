package engine

import (
	"fmt"
	"runtime"

	"gifsmith/internal/faults"
)

// bytesPerPixel is the working-set cost of one decoded RGBA pixel.
const bytesPerPixel = 4

// gauge tracks memory pressure against a configured ceiling. Zero ceiling
// disables admission control but usage is still reported.
type gauge struct {
	ceiling uint64
}

func newGauge(ceiling uint64) *gauge {
	return &gauge{ceiling: ceiling}
}

// admit refuses a job whose projected working set would exceed the ceiling.
// The projection assumes every frame plus the raster and the output frame
// are resident at once, which matches the worst case of both backends.
func (g *gauge) admit(req Request) error {
	if g.ceiling == 0 {
		return nil
	}
	frames := req.FrameCount
	if frames < 1 {
		frames = 1
	}
	projected := uint64(req.Width) * uint64(req.Height) * bytesPerPixel * uint64(frames+2)
	projected += uint64(len(req.SourceBytes))
	if projected > g.ceiling {
		return faults.Wrap(faults.ErrMemory, "engine", "admit",
			fmt.Sprintf("projected %d bytes exceeds ceiling %d", projected, g.ceiling), nil)
	}
	return nil
}

func (g *gauge) usage() MemoryUsage {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	usage := MemoryUsage{
		CurrentBytes: stats.HeapAlloc,
		MaxBytes:     g.ceiling,
	}
	if g.ceiling > 0 {
		usage.Percentage = float64(stats.HeapAlloc) / float64(g.ceiling) * 100
	}
	return usage
}
