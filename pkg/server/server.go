package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/m-mizutani/burrow/pkg/model"
	agentuc "github.com/m-mizutani/burrow/pkg/usecase/agent"
	memoryuc "github.com/m-mizutani/burrow/pkg/usecase/memory"
	"github.com/m-mizutani/burrow/pkg/utils/logging"
)

// Server translates HTTP requests 1:1 into core operations. It holds
// no state of its own; everything interesting happens in the use cases.
type Server struct {
	agents   *agentuc.UseCase
	memories *memoryuc.UseCase
	debug    bool
}

// Option is a functional option for Server
type Option func(*Server)

// WithDebug exposes internal error detail in failure responses.
// Never enable this on an exposed deployment.
func WithDebug() Option {
	return func(s *Server) {
		s.debug = true
	}
}

// New creates a new Server instance
func New(agents *agentuc.UseCase, memories *memoryuc.UseCase, opts ...Option) *Server {
	s := &Server{
		agents:   agents,
		memories: memories,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the routing table with request-ID and access-log
// middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("POST /agents/register", s.handleRegister)
	mux.HandleFunc("POST /agents/recover", s.handleRecover)
	mux.HandleFunc("POST /memory/store", s.handleStore)
	mux.HandleFunc("POST /memory/retrieve", s.handleRetrieve)
	mux.HandleFunc("POST /memory/history", s.handleHistory)
	mux.HandleFunc("POST /memory/clear", s.handleClear)

	return withRequestLog(mux)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) respondJSON(w http.ResponseWriter, r *http.Request, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.From(r.Context()).Error("failed to encode response", "error", err)
	}
}

// respondError maps the error taxonomy to status codes. Internal
// faults are logged with full detail but surfaced as a generic message
// unless debug mode is on.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var code int
	var message string

	switch {
	case errors.Is(err, model.ErrAgentNotFound):
		code, message = http.StatusNotFound, "agent not found"
	case errors.Is(err, model.ErrInvalidSignature):
		code, message = http.StatusUnauthorized, "invalid signature"
	case errors.Is(err, model.ErrInvalidPhrase):
		code, message = http.StatusBadRequest, "invalid recovery phrase"
	default:
		code, message = http.StatusInternalServerError, "internal error"
		logging.From(r.Context()).Error("internal fault", "error", err)
		if s.debug {
			message = err.Error()
		}
	}

	if code != http.StatusInternalServerError {
		logging.From(r.Context()).Warn("request rejected", "status", code, "error", err)
	}
	s.respondJSON(w, r, code, &errorResponse{Error: message})
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.respondJSON(w, r, http.StatusBadRequest, &errorResponse{Error: "malformed request body"})
		return false
	}
	return true
}
