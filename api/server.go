// Package api serves the copilot over HTTP: chat turns, streamed replies,
// the Pipedrive deal webhook and QStash job delivery.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	supervisorx "github.com/tanpawarit/Breeze-CRM-Copilot/agent/agents/supervisor"
)

const (
	jobsTurnPath   = "/jobs/turn"
	maxRequestBody = 1 << 20
)

type Config struct {
	Addr string `split_words:"true" default:":8000"`
	// PublicURL is where QStash delivers jobs. Queuing is off without it.
	PublicURL       string        `envconfig:"PUBLIC_URL" split_words:"true"`
	StreamChunk     int           `split_words:"true" default:"24"`
	ShutdownTimeout time.Duration `split_words:"true" default:"5s"`
}

// TurnHandler runs one conversation turn.
type TurnHandler interface {
	HandleTurn(ctx context.Context, req supervisorx.TurnRequest) (supervisorx.TurnResult, error)
}

// JobQueue publishes deferred turns and authenticates their delivery.
type JobQueue interface {
	Publish(ctx context.Context, destination string, payload any) (string, error)
	Verify(signature string, body []byte, targetURL string) error
}

type Option func(*Server)

// WithJobQueue enables queued webhook processing and the job delivery route.
func WithJobQueue(q JobQueue) Option {
	return func(s *Server) {
		s.jobs = q
	}
}

type Server struct {
	cfg   Config
	turns TurnHandler
	jobs  JobQueue
	mux   *http.ServeMux
}

func New(cfg Config, turns TurnHandler, opts ...Option) (*Server, error) {
	if turns == nil {
		return nil, errors.New("turn handler is required")
	}
	if cfg.StreamChunk <= 0 {
		cfg.StreamChunk = 24
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	cfg.PublicURL = strings.TrimRight(strings.TrimSpace(cfg.PublicURL), "/")

	s := &Server{cfg: cfg, turns: turns, mux: http.NewServeMux()}
	for _, opt := range opts {
		opt(s)
	}

	s.mux.HandleFunc("GET /{$}", s.health)
	s.mux.HandleFunc("POST /chat", s.chat)
	s.mux.HandleFunc("POST /chat/stream", s.chatStream)
	s.mux.HandleFunc("POST /webhook/pipedrive", s.pipedriveWebhook)
	if s.jobs != nil {
		s.mux.HandleFunc("POST "+jobsTurnPath, s.deliverJob)
	}
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return withRequestLogger(s.mux)
}

// ListenAndServe blocks until ctx is cancelled or the listener fails, then
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.cfg.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) jobURL() string {
	if s.jobs == nil || s.cfg.PublicURL == "" {
		return ""
	}
	return s.cfg.PublicURL + jobsTurnPath
}

func withRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		logger := log.With().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Logger()
		w.Header().Set("X-Request-Id", requestID)

		start := time.Now()
		next.ServeHTTP(w, r.WithContext(logger.WithContext(r.Context())))
		logger.Debug().Dur("duration", time.Since(start)).Msg("request served")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("write response")
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, errorBody{Error: fmt.Sprintf(format, args...)})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	zerolog.Ctx(r.Context()).Debug().Msg("health check")
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"message": "Breeze CRM Copilot is running.",
	})
}
