// Copyright 2025 The Dev-Nexus Authors
// SPDX-License-Identifier: Apache-2.0

// Package a2a serves the agent-to-agent HTTP plane: discovery, skill
// execution, cancellation, and liveness.
package a2a

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/nexus-agents/dev-nexus/internal/authx"
	"github.com/nexus-agents/dev-nexus/internal/kb/store"
	"github.com/nexus-agents/dev-nexus/internal/skill"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	// defaultMaxInFlight caps concurrent execute requests.
	defaultMaxInFlight = 80
	// defaultExecuteTimeout bounds one skill execution.
	defaultExecuteTimeout = 300 * time.Second
	// healthProbeTimeout bounds the KB reachability probe.
	healthProbeTimeout = 5 * time.Second
)

var grpcToHTTP = map[codes.Code]int{
	codes.OK:                http.StatusOK,
	codes.InvalidArgument:   http.StatusBadRequest,
	codes.Unauthenticated:   http.StatusUnauthorized,
	codes.PermissionDenied:  http.StatusForbidden,
	codes.NotFound:          http.StatusNotFound,
	codes.Aborted:           http.StatusConflict,
	codes.ResourceExhausted: http.StatusTooManyRequests,
	codes.Unavailable:       http.StatusServiceUnavailable,
	codes.DeadlineExceeded:  http.StatusGatewayTimeout,
	codes.Internal:          http.StatusInternalServerError,
}

func httpStatus(err error) int {
	if code, ok := grpcToHTTP[status.Code(err)]; ok {
		return code
	}
	return http.StatusInternalServerError
}

// Options tunes the server. Zero values select the defaults above.
type Options struct {
	Info           skill.ServiceInfo
	CORSOrigins    []string
	MaxInFlight    int
	ExecuteTimeout time.Duration
}

// Server is the HTTP dispatcher.
type Server struct {
	registry *skill.Registry
	auth     *authx.Authorizer
	store    *store.Store
	opts     Options
	inflight chan struct{}
	handler  http.Handler
}

// NewServer wires the routes and middleware around the registry.
func NewServer(registry *skill.Registry, auth *authx.Authorizer, st *store.Store, opts Options) *Server {
	if opts.MaxInFlight == 0 {
		opts.MaxInFlight = defaultMaxInFlight
	}
	if opts.ExecuteTimeout == 0 {
		opts.ExecuteTimeout = defaultExecuteTimeout
	}
	s := &Server{
		registry: registry,
		auth:     auth,
		store:    st,
		opts:     opts,
		inflight: make(chan struct{}, opts.MaxInFlight),
	}
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))
	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Get("/.well-known/agent.json", s.handleAgentCard)
	r.Post("/a2a/execute", s.handleExecute)
	r.Post("/a2a/cancel", s.handleCancel)
	s.handler = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Printf("%s %s status=%d dur=%s id=%s", r.Method, r.URL.Path, ww.Status(), time.Since(start).Round(time.Millisecond), middleware.GetReqID(r.Context()))
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("writing response: %v", err)
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": s.opts.Info.Name,
		"version": s.opts.Info.Version,
		"endpoints": []string{
			"GET /",
			"GET /health",
			"GET /.well-known/agent.json",
			"POST /a2a/execute",
			"POST /a2a/cancel",
		},
		"skills_registered": s.registry.Len(),
		"skills":            s.registry.IDs(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthProbeTimeout)
	defer cancel()
	accessible := true
	if err := s.store.Ping(ctx); err != nil {
		accessible = false
		log.Printf("health: knowledge base unreachable: %v", err)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":                    "healthy",
		"version":                   s.opts.Info.Version,
		"skills_registered":         s.registry.Len(),
		"knowledge_base_accessible": accessible,
	})
}

func (s *Server) handleAgentCard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Describe(s.opts.Info))
}

type executeRequest struct {
	SkillID string         `json:"skill_id"`
	Input   map[string]any `json:"input"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	select {
	case s.inflight <- struct{}{}:
		defer func() { <-s.inflight }()
	default:
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"success": false,
			"error":   "too many concurrent requests",
		})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.opts.ExecuteTimeout)
	defer cancel()

	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "malformed request body: " + err.Error(),
		})
		return
	}
	sk, ok := s.registry.Get(req.SkillID)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"success":          false,
			"error":            "unknown skill: " + req.SkillID,
			"available_skills": s.registry.IDs(),
		})
		return
	}
	identity := s.auth.Identify(ctx, r)
	if err := s.auth.Authorize(identity, sk.ID(), sk.RequiresAuth()); err != nil {
		log.Printf("denied %s: %v", sk.ID(), err)
		writeJSON(w, httpStatus(err), map[string]any{
			"success": false,
			"error":   status.Convert(err).Message(),
			"skill":   sk.ID(),
		})
		return
	}
	violations, err := skill.ValidateInput(sk, req.Input)
	if err != nil {
		s.internalError(w, r, sk.ID(), err)
		return
	}
	if len(violations) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success":    false,
			"error":      "input validation failed",
			"violations": violations,
		})
		return
	}
	output, err := s.execute(ctx, sk, req.Input, identity)
	if err != nil {
		if ctx.Err() != nil {
			writeJSON(w, http.StatusGatewayTimeout, map[string]any{
				"success": false,
				"error":   "execution deadline exceeded",
				"skill":   sk.ID(),
			})
			return
		}
		s.internalError(w, r, sk.ID(), err)
		return
	}
	writeJSON(w, http.StatusOK, output)
}

// execute runs the skill with a panic guard so one faulty skill cannot
// take down the process.
func (s *Server) execute(ctx context.Context, sk skill.Skill, input map[string]any, identity authx.Identity) (output map[string]any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = status.Errorf(codes.Internal, "skill %s panicked: %v", sk.ID(), rec)
		}
	}()
	return sk.Execute(ctx, input, identity)
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, skillID string, err error) {
	correlationID := middleware.GetReqID(r.Context())
	log.Printf("executing %s failed: %v id=%s", skillID, err, correlationID)
	writeJSON(w, httpStatus(err), map[string]any{
		"success":        false,
		"error":          status.Convert(err).Message(),
		"skill":          skillID,
		"correlation_id": correlationID,
	})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TaskID string `json:"task_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "malformed request body: " + err.Error(),
		})
		return
	}
	// No long-running tasks exist yet; acknowledge so callers can treat
	// cancellation as idempotent.
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "cancelled",
		"task_id": req.TaskID,
	})
}
