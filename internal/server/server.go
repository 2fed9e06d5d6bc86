// Package server provides the HTTP API over a registry of tracked runs.
package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/net/websocket"

	"github.com/seastar-sci/seastar/internal/blueprint"
	"github.com/seastar-sci/seastar/internal/run"
)

// Server is the HTTP API server for seastar.
type Server struct {
	registry *Registry
	mux      *http.ServeMux
	server   *http.Server
}

// New creates a new HTTP server over the given registry.
func New(reg *Registry) *Server {
	s := &Server{
		registry: reg,
		mux:      http.NewServeMux(),
	}
	s.registerRoutes()
	s.server = &http.Server{Handler: s.mux}
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /runs", s.handleListRuns)
	s.mux.HandleFunc("POST /runs", s.handleStartRun)
	s.mux.HandleFunc("GET /runs/{id}", s.handleGetRun)
	s.mux.HandleFunc("POST /runs/{id}/cancel", s.handleCancelRun)
	s.mux.HandleFunc("GET /runs/{id}/output", s.handleRunOutput)
	s.mux.Handle("GET /runs/{id}/follow", websocket.Handler(s.handleFollow))
}

// Handler exposes the route table, mainly for tests.
func (s *Server) Handler() http.Handler { return s.mux }

// Serve starts the server on the given listener.
func (s *Server) Serve(ln net.Listener) error {
	return s.server.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// GetListener returns a unix-socket listener when socketPath is set,
// otherwise a TCP listener on defaultAddr.
func GetListener(socketPath, defaultAddr string) (net.Listener, error) {
	if socketPath != "" {
		os.Remove(socketPath) // clean up stale socket
		return net.Listen("unix", socketPath)
	}
	return net.Listen("tcp", defaultAddr)
}

// Handlers

// startRequest is the JSON body of POST /runs: either a blueprint path or
// an inline command spec.
type startRequest struct {
	Blueprint    string            `json:"blueprint,omitempty"`
	Command      []string          `json:"command,omitempty"`
	Dir          string            `json:"dir,omitempty"`
	Env          map[string]string `json:"env,omitempty"`
	OutputPrefix string            `json:"output_prefix,omitempty"`
	TTY          bool              `json:"tty,omitempty"`
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	var spec run.Spec
	switch {
	case req.Blueprint != "":
		bp, err := blueprint.Load(req.Blueprint)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		spec, err = bp.Spec()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	case len(req.Command) > 0:
		spec = run.Spec{
			Command:      req.Command,
			Dir:          req.Dir,
			Env:          req.Env,
			OutputPrefix: req.OutputPrefix,
			TTY:          req.TTY,
		}
	default:
		http.Error(w, "command or blueprint required", http.StatusBadRequest)
		return
	}

	id, rn, err := s.registry.Start(spec)
	if err != nil {
		http.Error(w, "starting run: "+err.Error(), http.StatusInternalServerError)
		return
	}
	slog.Info("run started", "id", id, "pid", rn.PID(), "output", rn.OutputFile())

	w.Header().Set("Location", "/runs/"+id)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(s.info(id, rn))
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.registry.List())
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rn, err := s.registry.Get(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.info(id, rn))
}

func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rn, err := s.registry.Get(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err := rn.Cancel(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	slog.Info("run cancelled", "id", id, "pid", rn.PID())

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.info(id, rn))
}

func (s *Server) handleRunOutput(w http.ResponseWriter, r *http.Request) {
	rn, err := s.registry.Get(r.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	f, err := os.Open(rn.OutputFile())
	if err != nil {
		// No output produced yet: an empty stream, not an error.
		return
	}
	defer f.Close()
	io.Copy(w, f)
}

// handleFollow streams output lines over a websocket, one message per
// line, until the run exits, the optional duration elapses, or the client
// goes away.
func (s *Server) handleFollow(ws *websocket.Conn) {
	defer ws.Close()
	req := ws.Request()

	rn, err := s.registry.Get(req.PathValue("id"))
	if err != nil {
		websocket.Message.Send(ws, "error: "+err.Error())
		return
	}

	var d time.Duration
	if v := req.URL.Query().Get("duration"); v != "" {
		d, err = time.ParseDuration(v)
		if err != nil {
			websocket.Message.Send(ws, "error: bad duration: "+err.Error())
			return
		}
	}

	for line := range rn.Updates(req.Context(), d) {
		if err := websocket.Message.Send(ws, line); err != nil {
			return
		}
	}

	// Trailer so clients learn the outcome without a separate poll.
	websocket.Message.Send(ws, "status: "+rn.Status().String())
}

func (s *Server) info(id string, rn *run.Run) RunInfo {
	return RunInfo{
		ID:         id,
		Command:    rn.Command(),
		Status:     rn.Status(),
		OutputFile: rn.OutputFile(),
		PID:        rn.PID(),
		Started:    rn.Started(),
	}
}
