package api

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// handleProgress streams pipeline progress as server-sent events until the
// client disconnects. Each event carries one Progress JSON object.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	updates, cancel := s.proc.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			payload, err := json.Marshal(update)
			if err != nil {
				s.logger.Warn("encode progress event", "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: progress\ndata: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
