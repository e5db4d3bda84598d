package engine

import (
	"bufio"
	"context"
	"fmt"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

var commandContext = exec.CommandContext

// FFmpegBackend composites through an external ffmpeg process. Load resolves
// and verifies the binary once; Run stages inputs on disk, executes the
// filter graph, and streams progress from ffmpeg's key=value progress pipe.
type FFmpegBackend struct {
	binary  string
	workDir string

	mu   sync.Mutex
	path string
}

// FFmpegOption configures the backend.
type FFmpegOption func(*FFmpegBackend)

// WithBinary overrides the default binary name.
func WithBinary(binary string) FFmpegOption {
	return func(b *FFmpegBackend) {
		if binary != "" {
			b.binary = binary
		}
	}
}

// WithWorkDir overrides the staging directory for job files.
func WithWorkDir(dir string) FFmpegOption {
	return func(b *FFmpegBackend) {
		if dir != "" {
			b.workDir = dir
		}
	}
}

// NewFFmpegBackend constructs an ffmpeg backend using defaults.
func NewFFmpegBackend(opts ...FFmpegOption) *FFmpegBackend {
	b := &FFmpegBackend{binary: "ffmpeg", workDir: os.TempDir()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name identifies the backend in logs and engine status output.
func (b *FFmpegBackend) Name() string { return "ffmpeg" }

// Load resolves the binary and verifies it runs. This is the expensive
// one-time step the adapter memoizes.
func (b *FFmpegBackend) Load(ctx context.Context) error {
	resolved, err := exec.LookPath(b.binary)
	if err != nil {
		return fmt.Errorf("locate %s: %w", b.binary, err)
	}
	cmd := commandContext(ctx, resolved, "-version")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("verify %s: %w", resolved, err)
	}
	b.mu.Lock()
	b.path = resolved
	b.mu.Unlock()
	return nil
}

// Run stages the source and raster, executes the compositing graph, and
// returns the encoded GIF bytes. Cancellation kills the child process.
func (b *FFmpegBackend) Run(ctx context.Context, req Request, emit func(float64)) (*Result, error) {
	b.mu.Lock()
	path := b.path
	b.mu.Unlock()
	if path == "" {
		return nil, fmt.Errorf("%w: %s not resolved", ErrBackendLost, b.binary)
	}

	jobDir, err := os.MkdirTemp(b.workDir, "gifsmith-job-")
	if err != nil {
		return nil, fmt.Errorf("stage job dir: %w", err)
	}
	defer os.RemoveAll(jobDir)

	inputPath := filepath.Join(jobDir, "input.gif")
	rasterPath := filepath.Join(jobDir, "overlay.png")
	outputPath := filepath.Join(jobDir, "output.gif")

	if err := os.WriteFile(inputPath, req.SourceBytes, 0o644); err != nil {
		return nil, fmt.Errorf("stage source: %w", err)
	}
	rasterFile, err := os.Create(rasterPath)
	if err != nil {
		return nil, fmt.Errorf("stage raster: %w", err)
	}
	if err := png.Encode(rasterFile, req.Raster); err != nil {
		rasterFile.Close()
		return nil, fmt.Errorf("encode raster: %w", err)
	}
	if err := rasterFile.Close(); err != nil {
		return nil, fmt.Errorf("flush raster: %w", err)
	}

	graph := newFilterGraph().Overlay(0, 0).PaletteGIF().Build()
	args := []string{
		"-y",
		"-i", inputPath,
		"-i", rasterPath,
		"-filter_complex", graph,
		"-loop", "0",
		"-progress", "pipe:1",
		"-nostats",
		outputPath,
	}

	cmd := commandContext(ctx, path, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		// The binary verified at load time is gone or unrunnable.
		return nil, fmt.Errorf("%w: start %s: %v", ErrBackendLost, path, err)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		value, ok := strings.CutPrefix(line, "frame=")
		if !ok {
			continue
		}
		frame, parseErr := strconv.Atoi(strings.TrimSpace(value))
		if parseErr != nil || req.FrameCount <= 0 {
			continue
		}
		emit(float64(frame) / float64(req.FrameCount))
	}

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		detail := strings.TrimSpace(stderr.String())
		if len(detail) > 512 {
			detail = detail[len(detail)-512:]
		}
		return nil, fmt.Errorf("ffmpeg failed: %w: %s", err, detail)
	}

	encoded, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}
	emit(1)
	return &Result{EncodedBytes: encoded, Width: req.Width, Height: req.Height}, nil
}

// Release drops the resolved binary path so the next Load verifies again.
func (b *FFmpegBackend) Release() error {
	b.mu.Lock()
	b.path = ""
	b.mu.Unlock()
	return nil
}

var _ Backend = (*FFmpegBackend)(nil)
