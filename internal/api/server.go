package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"speakerscribe/internal/orchestrator"
)

// maxUploadBytes bounds a single submission body, multipart framing included
const maxUploadBytes = 512 << 20

// Authorizer decides whether a bearer token grants access. The server trusts
// the decision as given.
type Authorizer func(token string) bool

// StaticTokenAuthorizer authorizes requests carrying exactly the given token.
// An empty token returns nil, which disables authentication.
func StaticTokenAuthorizer(token string) Authorizer {
	if token == "" {
		return nil
	}
	return func(candidate string) bool {
		return candidate == token
	}
}

// Server exposes the job API over HTTP: submit a file, poll the job, and
// fetch-and-release the result. All model work happens in the workers; every
// handler here returns quickly.
type Server struct {
	orchestrator *orchestrator.Orchestrator
	authorize    Authorizer
	defaultLang  string
	logger       *zap.Logger
	httpServer   *http.Server
}

// NewServer creates a new Server instance. A nil authorize disables
// authentication; defaultLang is applied to submissions that do not name a
// language, with empty meaning automatic detection.
func NewServer(orc *orchestrator.Orchestrator, listenAddr string, authorize Authorizer, defaultLang string, logger *zap.Logger) *Server {
	s := &Server{
		orchestrator: orc,
		authorize:    authorize,
		defaultLang:  defaultLang,
		logger:       logger,
	}
	s.httpServer = &http.Server{
		Addr:         listenAddr,
		Handler:      s.routes(),
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// routes builds the request mux
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /transcribe", s.requireAuth(s.handleSubmit))
	mux.HandleFunc("GET /jobs/{id}", s.requireAuth(s.handlePoll))
	mux.HandleFunc("DELETE /jobs/{id}", s.requireAuth(s.handleConsume))
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

// ListenAndServe runs the server until Shutdown is called or the listener
// fails
func (s *Server) ListenAndServe() error {
	s.logger.Info("starting API server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("API server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.httpServer.Shutdown(ctx)
}

// requireAuth wraps a handler with bearer token authentication. The token is
// extracted here; the authorization decision itself belongs to the Authorizer.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	if s.authorize == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || !s.authorize(token) {
			s.logger.Warn("rejected unauthenticated request",
				zap.String("path", r.URL.Path),
				zap.String("remote", r.RemoteAddr))
			writeError(w, http.StatusUnauthorized, "invalid or missing bearer token")
			return
		}
		next(w, r)
	}
}
