// Package gateway is the HTTP front end: it binds inbound chat requests to
// sessions and hands them to the orchestrator.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"bistro-ai/internal/catalog"
	"bistro-ai/internal/domain"
	"bistro-ai/internal/infra/middleware"
	"bistro-ai/internal/usecase"
)

// maxRequestBody caps inbound request bodies at 1 MB.
const maxRequestBody = 1 << 20

// ChatHandler runs one user message through the conversation loop.
type ChatHandler interface {
	HandleMessage(ctx context.Context, session *usecase.Session, userMsg string) (string, error)
}

// Server is the HTTP API server.
type Server struct {
	addr     string
	agent    ChatHandler
	sessions *usecase.SessionRegistry
	catalog  *catalog.Catalog
	logger   *slog.Logger

	server    *http.Server
	boundAddr string
	cancel    context.CancelFunc
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type chatResponse struct {
	SessionID string `json:"session_id"`
	Response  string `json:"response"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type toolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

// NewServer creates the gateway. Nothing listens until Start.
func NewServer(addr string, agent ChatHandler, sessions *usecase.SessionRegistry, cat *catalog.Catalog, logger *slog.Logger) *Server {
	return &Server{
		addr:     addr,
		agent:    agent,
		sessions: sessions,
		catalog:  cat,
		logger:   logger,
	}
}

// Handler builds the full middleware-wrapped handler. Split out so tests can
// drive it with httptest.
func (s *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/chat", s.handleChat)
	mux.HandleFunc("/api/v1/tools", s.handleTools)
	mux.HandleFunc("/api/v1/reset", s.handleReset)
	mux.HandleFunc("/api/v1/health", s.handleHealth)

	// 100 requests/minute with burst of 20.
	return middleware.SecurityHeaders(
		middleware.RateLimit(ctx, 100, 20)(mux),
	)
}

// Start begins serving. Non-blocking.
func (s *Server) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	s.boundAddr = ln.Addr().String()

	go func() {
		s.logger.Info("gateway started", "addr", s.boundAddr)
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("gateway server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound address (after Start).
func (s *Server) Addr() string { return s.boundAddr }

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		msg := "invalid JSON: " + err.Error()
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			msg = "request body too large (max 1MB)"
		}
		writeError(w, http.StatusBadRequest, errors.New(msg))
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, errors.New("message is required"))
		return
	}

	session := s.sessions.GetOrCreate(req.SessionID)

	reply, err := s.agent.HandleMessage(r.Context(), session, req.Message)
	if err != nil {
		s.logger.Error("chat failed", "session", session.ID, "error", err)
		writeError(w, statusForError(err), err)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{SessionID: session.ID, Response: reply})
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}

	decls := s.catalog.Declarations()
	tools := make([]toolInfo, 0, len(decls))
	for _, d := range decls {
		tools = append(tools, toolInfo{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: d.Parameters,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": tools})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid JSON: "+err.Error()))
		return
	}

	if err := s.sessions.Reset(req.SessionID); err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"session_id": req.SessionID, "status": "reset"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusForError maps domain errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrRateLimit):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrUnknownTool),
		errors.Is(err, domain.ErrToolLoopExceeded),
		errors.Is(err, domain.ErrNotConnected),
		errors.Is(err, domain.ErrTransportBroken),
		errors.Is(err, domain.ErrTransportUnavailable),
		errors.Is(err, domain.ErrAuthInvalid),
		errors.Is(err, domain.ErrBackend):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	resp := errorResponse{Error: err.Error()}
	if code := domain.ErrorCodeOf(err); code != domain.CodeUnknown {
		resp.Code = string(code)
	}
	writeJSON(w, status, resp)
}
