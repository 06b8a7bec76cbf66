// Package api exposes a thin REST front door over the Orchestrator, in the shape of
// buildbeaver's server/api/rest/server (chi router + go-chi/cors + go-chi/render), grounded on
// app_api_server.go's router-assembly pattern. It is not part of the CORE under test: it carries
// none of the core's invariants and exists only to drive Orchestrator.Run from an HTTP request
// (spec.md section 1's "Non-goals" excludes a full web service; this is a supplement).
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/r3labs/sse"

	"github.com/pkgforge/pkgforge/common/logger"
	"github.com/pkgforge/pkgforge/common/models"
	"github.com/pkgforge/pkgforge/core/dagbuilder"
	"github.com/pkgforge/pkgforge/core/jobtask"
	"github.com/pkgforge/pkgforge/core/orchestrator"
)

// Config configures the HTTP server's listen address, mirroring HTTPServerConfig's shape
// without that type's TLS/docker-bridge concerns, which this supplement does not need.
type Config struct {
	Address string
}

// Server is the REST front door: POST /submits builds a DAG from the request body and runs the
// Orchestrator to completion; GET /submits/{id}/events streams that run's progress over SSE.
type Server struct {
	http    *http.Server
	router  chi.Router
	sse     *sse.Server
	builder *dagbuilder.Builder
	deps    jobtask.Collaborators
	log     logger.Log
}

func NewServer(cfg Config, deps jobtask.Collaborators, logFactory logger.LogFactory) *Server {
	log := logFactory("api.Server")
	sseServer := sse.New()
	sseServer.AutoReplay = false

	s := &Server{
		sse:     sseServer,
		builder: dagbuilder.New(),
		deps:    deps,
		log:     log,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Timeout(10 * time.Minute)) // a submit's build time can be long-running

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Route("/submits", func(r chi.Router) {
		r.Post("/", s.handleCreateSubmit)
		r.Get("/{submitID}/events", s.handleSubmitEvents)
	})

	s.router = r
	s.http = &http.Server{Addr: cfg.Address, Handler: r}
	return s
}

// Handler returns the server's chi.Router so tests can exercise it with httptest without
// binding a real listener.
func (s *Server) Handler() http.Handler { return s.router }

// Start begins serving in the background; errors after startup are logged, mirroring
// buildbeaver's HTTPServer.Start (server/api/rest/server/http_server.go).
func (s *Server) Start() {
	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Errorf("api server stopped: %s", err)
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

type createSubmitRequest struct {
	Manifest string `json:"manifest"`
	Format   string `json:"format"`
}

type createSubmitResponse struct {
	SubmitID  string            `json:"submit_id"`
	Artifacts []string          `json:"artifacts,omitempty"`
	Errors    map[string]string `json:"errors,omitempty"`
}

func (s *Server) handleCreateSubmit(w http.ResponseWriter, r *http.Request) {
	var req createSubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	d, err := s.builder.Build([]byte(req.Manifest), dagbuilder.Format(req.Format))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	submitID := models.NewSubmitID()
	reporter := NewSSEReporter(s.sse, submitID.String())

	orch := orchestrator.New(reporter, s.deps)
	artifacts, jobErrs, err := orch.Run(r.Context(), d)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}

	resp := createSubmitResponse{SubmitID: submitID.String()}
	for _, a := range artifacts {
		resp.Artifacts = append(resp.Artifacts, a.Name())
	}
	if len(jobErrs) > 0 {
		resp.Errors = make(map[string]string, len(jobErrs))
		for id, jerr := range jobErrs {
			resp.Errors[id.String()] = jerr.Error()
		}
	}

	writeJSON(w, r, http.StatusOK, resp)
}

// handleSubmitEvents adapts the path-parameter form of the route to r3labs/sse's own
// query-parameter stream selection convention ("?stream=<id>").
func (s *Server) handleSubmitEvents(w http.ResponseWriter, r *http.Request) {
	submitID := chi.URLParam(r, "submitID")
	q := r.URL.Query()
	q.Set("stream", submitID)
	r.URL.RawQuery = q.Encode()
	s.sse.ServeHTTP(w, r)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	writeJSON(w, r, status, map[string]string{"error": err.Error()})
}

// writeJSON marshals v and writes it with the given status, using go-chi/render's
// StatusCtxKey convention (render.Render reads http.StatusText off the context the same way;
// here the status is threaded through directly rather than via render.Render/render.Respond,
// since pkgforge's response bodies don't need per-type Renderer hooks), mirrored from
// buildbeaver's APIBase.JSON (server/api/rest/server/base.go).
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	r = r.WithContext(context.WithValue(r.Context(), render.StatusCtxKey, status))

	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(true)
	if err := enc.Encode(v); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if status, ok := r.Context().Value(render.StatusCtxKey).(int); ok {
		w.WriteHeader(status)
	}
	w.Write(buf.Bytes())
}
