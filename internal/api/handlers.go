package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"gifsmith/internal/faults"
	"gifsmith/internal/logging"
	"gifsmith/internal/overlay"
	"gifsmith/internal/probe"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// renderRequest is the JSON body accepted by POST /api/render.
type renderRequest struct {
	Source   string                `json:"source"`
	Overlays []overlay.TextOverlay `json:"overlays"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": Version})
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	var req renderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: "malformed request body: " + err.Error(),
			Kind:  string(faults.KindValidation),
		})
		return
	}
	if req.Source == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: "source is required",
			Kind:  string(faults.KindValidation),
		})
		return
	}

	ctx := r.Context()
	if timeout := time.Duration(s.cfg.HTTP.RequestTimeoutSeconds) * time.Second; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	jobID := uuid.NewString()
	w.Header().Set("X-Render-Job", jobID)
	logger := s.logger.With(logging.FieldJobID, jobID)
	logger.Info("render started", "source", req.Source, "overlays", len(req.Overlays))

	result, err := s.proc.Process(ctx, probe.Descriptor{URL: req.Source}, req.Overlays)
	if err != nil {
		logger.Error("render failed", logging.FieldErrorKind, string(faults.Classify(err)), "error", err)
		writeFaultError(w, err)
		return
	}
	logger.Info("render complete", "bytes", result.SizeBytes, "duration", result.ProcessingTime)

	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Content-Length", strconv.FormatInt(result.SizeBytes, 10))
	w.Header().Set("X-Render-Width", strconv.Itoa(result.Width))
	w.Header().Set("X-Render-Height", strconv.Itoa(result.Height))
	w.Header().Set("X-Render-Duration-Ms", strconv.FormatInt(result.ProcessingTime.Milliseconds(), 10))
	if result.FromCache {
		w.Header().Set("X-Render-Cache", "hit")
	}
	if _, err := w.Write(result.EncodedBytes); err != nil {
		s.logger.Warn("write render response", "error", err)
	}
}

func (s *Server) handleCancel(w http.ResponseWriter, _ *http.Request) {
	s.proc.Cancel()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}

func (s *Server) handleEngine(w http.ResponseWriter, _ *http.Request) {
	usage := s.proc.MemoryUsage()
	writeJSON(w, http.StatusOK, map[string]any{
		"state":        string(s.proc.EngineState()),
		"currentBytes": usage.CurrentBytes,
		"maxBytes":     usage.MaxBytes,
		"percentage":   usage.Percentage,
	})
}

func (s *Server) handleCacheList(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.List(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error: err.Error(),
			Kind:  string(faults.KindUnknown),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Clear(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error: err.Error(),
			Kind:  string(faults.KindUnknown),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// writeFaultError maps the failure taxonomy onto HTTP status codes.
func writeFaultError(w http.ResponseWriter, err error) {
	kind := faults.Classify(err)
	status := http.StatusInternalServerError
	switch kind {
	case faults.KindValidation:
		status = http.StatusUnprocessableEntity
	case faults.KindNotReady, faults.KindInitialization:
		status = http.StatusServiceUnavailable
	case faults.KindNetwork:
		status = http.StatusBadGateway
	case faults.KindTimeout:
		status = http.StatusGatewayTimeout
	case faults.KindMemory, faults.KindRenderSurface:
		status = http.StatusRequestEntityTooLarge
	}
	if errors.Is(err, context.Canceled) {
		status = statusClientClosedRequest
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: string(kind)})
}

// Nginx's non-standard code for a client that went away.
const statusClientClosedRequest = 499

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
