package server

import (
	"log/slog"
	"net/http"
)

// handleEvents is the long-lived server-sent-events endpoint. Each connected
// client becomes a broadcaster subscriber; the connection stays open until
// the client leaves or the subscriber is evicted for falling behind.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")

	if _, err := w.Write([]byte("data: connected\n\n")); err != nil {
		return
	}
	flusher.Flush()

	sub := s.events.Subscribe()
	defer s.events.Unsubscribe(sub)
	slog.Debug("Event subscriber connected", "remote", r.RemoteAddr)

	for {
		select {
		case <-r.Context().Done():
			slog.Debug("Event subscriber disconnected", "remote", r.RemoteAddr)
			return
		case frame, ok := <-sub.Lines():
			if !ok {
				// Evicted by the health tick.
				return
			}
			if _, err := w.Write(frame); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
