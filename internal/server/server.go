// Package server exposes the asset pipeline over a small JSON HTTP API plus
// a server-sent-events stream for lifecycle events.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/bfengine/assetpipe/internal/asset"
	"github.com/bfengine/assetpipe/internal/event"
	"github.com/bfengine/assetpipe/internal/ops"
)

// DefaultAddr is the bind address used by the serve command.
const DefaultAddr = "0.0.0.0:8000"

// Server is the HTTP layer over the ops façade.
type Server struct {
	ops    *ops.Ops
	events *event.Broadcaster
	http   *http.Server
}

// New wires the routes and returns an unstarted server.
func New(o *ops.Ops, events *event.Broadcaster, addr string) *Server {
	s := &Server{ops: o, events: events}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleBanner)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("GET /assets", s.handleAssets)
	mux.HandleFunc("GET /assets/dirty", s.handleDirty)
	mux.HandleFunc("GET /assets/{id}", s.handleAsset)
	mux.HandleFunc("PUT /assets/{id}", s.handleUpdateAsset)
	mux.HandleFunc("GET /assets/{id}/compilations", s.handleCompilations)
	mux.HandleFunc("POST /compile", s.handleCompile)
	mux.HandleFunc("POST /refresh", s.handleRefresh)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           cors(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the routed handler, used by tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// ListenAndServe blocks until ctx is done, then drains connections.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP API listening", "addr", s.http.Addr)
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down HTTP server: %w", err)
	}
	err := <-errCh
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// cors applies the permissive policy expected by authoring tools running on
// arbitrary origins.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, PUT, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("Failed to write response", "err", err)
	}
}

func pathID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(r.PathValue("id"))
}

func (s *Server) handleBanner(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprintln(w, "asset-pipeline server ready")
}

func (s *Server) handleAssets(w http.ResponseWriter, _ *http.Request) {
	assets := s.ops.Assets()
	// Encode through asset.List so the union tag is always present.
	writeJSON(w, http.StatusOK, asset.List(assets))
}

func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "invalid asset id", http.StatusBadRequest)
		return
	}
	a, ok := s.ops.Asset(id)
	if !ok {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleUpdateAsset(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "invalid asset id", http.StatusBadRequest)
		return
	}
	body, err := decodeAsset(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if body.Common().ID != id {
		http.Error(w, "path id does not match body id", http.StatusBadRequest)
		return
	}
	if err := s.ops.UpdateAsset(body); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func decodeAsset(r *http.Request) (asset.Asset, error) {
	defer func() { _ = r.Body.Close() }()
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("reading asset body: %w", err)
	}
	a, err := asset.Unmarshal(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding asset body: %w", err)
	}
	return a, nil
}

func (s *Server) handleDirty(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ops.DirtyIDs())
}

func (s *Server) handleCompilations(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "invalid asset id", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.ops.Compilations(id))
}

func (s *Server) handleCompile(w http.ResponseWriter, r *http.Request) {
	defer func() { _ = r.Body.Close() }()
	var body struct {
		Assets []uuid.UUID `json:"assets"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, fmt.Sprintf("reading compile request: %v", err), http.StatusBadRequest)
		return
	}
	s.ops.CompileAll(body.Assets)
	writeJSON(w, http.StatusOK, map[string]int{"submitted": len(body.Assets)})
}

func (s *Server) handleRefresh(w http.ResponseWriter, _ *http.Request) {
	res, err := s.ops.Refresh()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
