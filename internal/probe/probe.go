package probe

import (
	"bytes"
	"context"
	"fmt"
	"image/gif"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"gifsmith/internal/faults"
)

// maxSourceBytes caps how much animation data one fetch will buffer.
const maxSourceBytes = 256 << 20

// Descriptor identifies a source animation and its discovered properties.
// Natural dimensions are zero until a probe succeeds.
type Descriptor struct {
	URL           string `json:"url"`
	NaturalWidth  int    `json:"naturalWidth"`
	NaturalHeight int    `json:"naturalHeight"`
	DurationMs    int64  `json:"durationMs,omitempty"`
	FrameCount    int    `json:"frameCount,omitempty"`
}

// Ready reports whether the descriptor carries usable natural dimensions.
func (d Descriptor) Ready() bool {
	return d.NaturalWidth > 0 && d.NaturalHeight > 0
}

// Prober fetches and decodes source animations.
type Prober struct {
	client *http.Client
}

// NewProber constructs a Prober with the given fetch timeout.
func NewProber(timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Prober{client: &http.Client{Timeout: timeout}}
}

// Fetch returns the raw bytes of a source given an http(s) URL or a local
// file path.
func (p *Prober) Fetch(ctx context.Context, source string) ([]byte, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, faults.Wrap(faults.ErrValidation, "probe", "fetch", "empty source", nil)
	}

	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return p.fetchHTTP(ctx, source)
	}

	info, err := os.Stat(source)
	if err != nil {
		return nil, faults.Wrap(faults.ErrNetwork, "probe", "read", fmt.Sprintf("source %s", source), err)
	}
	if info.Size() > maxSourceBytes {
		return nil, faults.Wrap(faults.ErrMemory, "probe", "read",
			fmt.Sprintf("source exceeds %d bytes", int64(maxSourceBytes)), nil)
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, faults.Wrap(faults.ErrNetwork, "probe", "read", fmt.Sprintf("source %s", source), err)
	}
	return data, nil
}

// Probe fetches the source and decodes its animation properties, returning
// both so callers do not fetch twice.
func (p *Prober) Probe(ctx context.Context, source string) (Descriptor, []byte, error) {
	data, err := p.Fetch(ctx, source)
	if err != nil {
		return Descriptor{}, nil, err
	}
	desc, err := Describe(source, data)
	if err != nil {
		return Descriptor{}, nil, err
	}
	return desc, data, nil
}

// Describe decodes animation properties from already-fetched bytes.
func Describe(source string, data []byte) (Descriptor, error) {
	decoded, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return Descriptor{}, faults.Wrap(faults.ErrNetwork, "probe", "decode", "source is not a decodable GIF", err)
	}

	width := decoded.Config.Width
	height := decoded.Config.Height
	if width == 0 || height == 0 {
		// Some encoders omit the logical screen size; fall back to the
		// first frame's extent.
		if len(decoded.Image) > 0 {
			bounds := decoded.Image[0].Bounds()
			width = bounds.Dx()
			height = bounds.Dy()
		}
	}
	if width == 0 || height == 0 {
		return Descriptor{}, faults.Wrap(faults.ErrNetwork, "probe", "decode", "source has no dimensions", nil)
	}

	var durationMs int64
	for _, delay := range decoded.Delay {
		durationMs += int64(delay) * 10
	}

	return Descriptor{
		URL:           source,
		NaturalWidth:  width,
		NaturalHeight: height,
		DurationMs:    durationMs,
		FrameCount:    len(decoded.Image),
	}, nil
}

func (p *Prober) fetchHTTP(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, faults.Wrap(faults.ErrNetwork, "probe", "fetch", "build request", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, faults.Wrap(faults.ErrNetwork, "probe", "fetch", fmt.Sprintf("GET %s", url), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, faults.Wrap(faults.ErrNetwork, "probe", "fetch",
			fmt.Sprintf("GET %s returned %s", url, resp.Status), nil)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceBytes+1))
	if err != nil {
		return nil, faults.Wrap(faults.ErrNetwork, "probe", "fetch", "read body", err)
	}
	if len(data) > maxSourceBytes {
		return nil, faults.Wrap(faults.ErrMemory, "probe", "fetch",
			fmt.Sprintf("source exceeds %d bytes", maxSourceBytes), nil)
	}
	return data, nil
}
