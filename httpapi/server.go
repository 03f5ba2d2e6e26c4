// ABOUTME: HTTP server exposing pipeline submission and a server-sent-events stream of run progress.
// ABOUTME: Each submitted run gets its own Runner and Emitter so concurrent runs never cross-deliver events.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/attractor-run/attractor"
	"github.com/attractor-run/attractor/emit"
)

// ServerConfig holds the configuration for the run server.
type ServerConfig struct {
	Addr         string                  // listen address (default: "127.0.0.1:8420")
	RunnerConfig attractor.RunnerConfig  // base config cloned for each submitted run; Emitter is overwritten per run
}

// Server is the HTTP front end for submitting graphs and observing their
// execution. It holds no pipeline state itself beyond an in-memory run
// table; runs do not survive process restart.
type Server struct {
	addr   string
	base   attractor.RunnerConfig
	router chi.Router

	mu   sync.RWMutex
	runs map[string]*runEntry
}

type runEntry struct {
	mu      sync.RWMutex
	emitter *emit.Emitter
	status  string // "running", "completed", "failed"
	result  *attractor.PipelineResult
	err     error
}

// NewServer creates a run Server with the given configuration.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8420"
	}
	s := &Server{
		addr: cfg.Addr,
		base: cfg.RunnerConfig,
		runs: make(map[string]*runEntry),
	}
	s.router = s.buildRouter()
	return s, nil
}

// ServeHTTP delegates to the chi router, satisfying http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe starts the HTTP server with timeouts appropriate for a
// long-lived SSE connection on the events endpoint.
func (s *Server) ListenAndServe() error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      0, // streaming responses outlive any fixed deadline
		IdleTimeout:       2 * time.Minute,
	}
	return srv.ListenAndServe()
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Route("/pipelines", func(r chi.Router) {
		r.Post("/", s.handleSubmit)
		r.Route("/{runID}", func(r chi.Router) {
			r.Get("/", s.handleStatus)
			r.Get("/events", s.handleEvents)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"status":"ok"}`)
}

// handleSubmit accepts DOT source in the request body, starts the pipeline
// asynchronously, and returns the run ID the caller uses to poll status or
// subscribe to events.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 10<<20))
	if err != nil {
		http.Error(w, "reading request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(body) == 0 {
		http.Error(w, "request body must contain DOT source", http.StatusBadRequest)
		return
	}

	runID := s.startRun(string(body))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"id": runID})
}

func (s *Server) startRun(source string) string {
	runID := uuid.NewString()
	emitter := emit.New()

	cfg := s.base
	cfg.Emitter = emitter

	entry := &runEntry{emitter: emitter, status: "running"}
	s.mu.Lock()
	s.runs[runID] = entry
	s.mu.Unlock()

	runner := attractor.NewRunner(cfg)

	go func() {
		result, err := runner.Run(context.Background(), source)

		entry.mu.Lock()
		if err != nil {
			entry.status = "failed"
			entry.err = err
		} else {
			entry.status = "completed"
			entry.result = result
		}
		entry.mu.Unlock()
		emitter.Close()

		log.Printf("component=httpapi.server action=run_finished run_id=%s status=%s", runID, entry.status)
	}()

	return runID
}

func (s *Server) lookupRun(runID string) (*runEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.runs[runID]
	return entry, ok
}

type statusResponse struct {
	ID             string   `json:"id"`
	Status         string   `json:"status"`
	Error          string   `json:"error,omitempty"`
	CompletedNodes []string `json:"completed_nodes,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	entry, ok := s.lookupRun(runID)
	if !ok {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}

	entry.mu.RLock()
	resp := statusResponse{ID: runID, Status: entry.status}
	if entry.err != nil {
		resp.Error = entry.err.Error()
	}
	if entry.result != nil {
		resp.CompletedNodes = entry.result.CompletedNodes
	}
	entry.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// handleEvents streams the run's events as server-sent events until the
// emitter closes (the run finished) or the client disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	entry, ok := s.lookupRun(runID)
	if !ok {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}

	eventsCh := entry.emitter.Subscribe()
	defer entry.emitter.Unsubscribe(eventsCh)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, canFlush := w.(http.Flusher)

	for {
		select {
		case evt, ok := <-eventsCh:
			if !ok {
				return
			}
			payload, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", evt.ID, evt.Kind, payload)
			if canFlush {
				flusher.Flush()
			}
		case <-r.Context().Done():
			return
		}
	}
}
