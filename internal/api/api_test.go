package api_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gifsmith/internal/api"
	"gifsmith/internal/engine"
	"gifsmith/internal/geometry"
	"gifsmith/internal/overlay"
	"gifsmith/internal/pipeline"
	"gifsmith/internal/testsupport"
)

func newTestServer(t *testing.T, backend engine.Backend) *httptest.Server {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Engine.RetryBackoffMs = 1
	cfg.Engine.RetryBackoffMaxMs = 5
	adapter := engine.NewAdapter(backend, uint64(cfg.Engine.MemoryCeilingMiB)<<20, nil)
	proc := pipeline.NewProcessor(cfg, adapter, nil, nil)
	server := api.New(cfg, proc, nil, nil)
	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)
	return ts
}

func renderBody(t *testing.T, source string) *bytes.Reader {
	t.Helper()
	o := overlay.New("Hello")
	o.Position = geometry.Position{X: 50, Y: 50}
	payload, err := json.Marshal(map[string]any{
		"source":   source,
		"overlays": []overlay.TextOverlay{o},
	})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	return bytes.NewReader(payload)
}

func TestHealthAndVersion(t *testing.T) {
	ts := newTestServer(t, &testsupport.FakeBackend{})

	for _, path := range []string{"/healthz", "/version"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET %s returned %d", path, resp.StatusCode)
		}
	}
}

func TestRenderReturnsGIF(t *testing.T) {
	ts := newTestServer(t, &testsupport.FakeBackend{Output: []byte("GIF89a-payload")})
	source := testsupport.WriteGIF(t, t.TempDir(), 120, 90, 2)

	resp, err := http.Post(ts.URL+"/api/render", "application/json", renderBody(t, source))
	if err != nil {
		t.Fatalf("POST render: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("render returned %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); got != "image/gif" {
		t.Fatalf("content type %q", got)
	}
	if resp.Header.Get("X-Render-Job") == "" {
		t.Fatal("missing job id header")
	}
	if resp.Header.Get("X-Render-Width") != "120" || resp.Header.Get("X-Render-Height") != "90" {
		t.Fatalf("dimension headers %q x %q",
			resp.Header.Get("X-Render-Width"), resp.Header.Get("X-Render-Height"))
	}
	var body bytes.Buffer
	if _, err := body.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	if body.String() != "GIF89a-payload" {
		t.Fatalf("unexpected body %q", body.String())
	}
}

func TestRenderRejectsMissingSource(t *testing.T) {
	ts := newTestServer(t, &testsupport.FakeBackend{})

	resp, err := http.Post(ts.URL+"/api/render", "application/json",
		strings.NewReader(`{"overlays":[]}`))
	if err != nil {
		t.Fatalf("POST render: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing source returned %d, want 400", resp.StatusCode)
	}
}

func TestRenderMapsValidationToUnprocessable(t *testing.T) {
	ts := newTestServer(t, &testsupport.FakeBackend{})
	source := testsupport.WriteGIF(t, t.TempDir(), 120, 90, 2)

	// No overlay carries text, so the pipeline rejects the run.
	payload := `{"source":"` + source + `","overlays":[]}`
	resp, err := http.Post(ts.URL+"/api/render", "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("POST render: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("validation failure returned %d, want 422", resp.StatusCode)
	}
	var body struct {
		Kind string `json:"kind"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Kind != "validation" {
		t.Fatalf("error kind %q, want validation", body.Kind)
	}
}

func TestEngineStatus(t *testing.T) {
	ts := newTestServer(t, &testsupport.FakeBackend{})

	resp, err := http.Get(ts.URL + "/api/engine")
	if err != nil {
		t.Fatalf("GET engine: %v", err)
	}
	defer resp.Body.Close()
	var body struct {
		State    string `json:"state"`
		MaxBytes uint64 `json:"maxBytes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode engine status: %v", err)
	}
	if body.State != string(engine.StateUninitialized) {
		t.Fatalf("state %q before any render", body.State)
	}
	if body.MaxBytes == 0 {
		t.Fatal("memory ceiling not reported")
	}
}

func TestProgressStreamsEvents(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Engine.RetryBackoffMs = 1
	cfg.Engine.RetryBackoffMaxMs = 5
	adapter := engine.NewAdapter(&testsupport.FakeBackend{Fractions: []float64{0.5, 1}}, uint64(cfg.Engine.MemoryCeilingMiB)<<20, nil)
	proc := pipeline.NewProcessor(cfg, adapter, nil, nil)
	server := api.New(cfg, proc, nil, nil)
	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/progress", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET progress: %v", err)
	}
	defer resp.Body.Close()

	source := testsupport.WriteGIF(t, t.TempDir(), 120, 90, 2)
	go func() {
		_, _ = http.Post(ts.URL+"/api/render", "application/json", renderBody(t, source))
	}()

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data: ") {
			var update pipeline.Progress
			if err := json.Unmarshal([]byte(line[len("data: "):]), &update); err != nil {
				t.Fatalf("decode event %q: %v", line, err)
			}
			if update.Stage == pipeline.StageComplete && update.Fraction == 1 {
				return
			}
		}
	}
	t.Fatalf("stream ended before completion: %v", scanner.Err())
}

func TestCancelAccepted(t *testing.T) {
	ts := newTestServer(t, &testsupport.FakeBackend{})

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/render", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE render: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("cancel returned %d, want 202", resp.StatusCode)
	}
}
