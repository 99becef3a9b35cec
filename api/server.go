package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/tanpawarit/Chative-Apple-Support-Agent/agent/assistant"
	sessionx "github.com/tanpawarit/Chative-Apple-Support-Agent/agent/session"
)

// Asker runs one assistant turn against a session.
type Asker interface {
	Ask(ctx context.Context, sess *sessionx.Session, query string) (assistant.Answer, error)
}

type Config struct {
	Addr            string        `envconfig:"ADDR" default:":8000"`
	RequestTimeout  time.Duration `split_words:"true" default:"60s"`
	ShutdownTimeout time.Duration `split_words:"true" default:"30s"`
	// WSAllowedOrigins lists browser origins allowed on /ws. Empty means same host only.
	WSAllowedOrigins []string `envconfig:"WS_ALLOWED_ORIGINS"`
}

type Server struct {
	asker    Asker
	sessions sessionx.Store
	logger   zerolog.Logger
	cfg      Config
	upgrader websocket.Upgrader
}

// NewServer wires the HTTP front end. sessions may be nil, in which case
// session_id in requests is ignored and every query is stateless.
func NewServer(asker Asker, sessions sessionx.Store, logger zerolog.Logger, cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8000"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = time.Minute
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	return &Server{
		asker:    asker,
		sessions: sessions,
		logger:   logger,
		cfg:      cfg,
		upgrader: newUpgrader(cfg.WSAllowedOrigins),
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(s.cfg.RequestTimeout))

		r.Get("/", s.handleRoot)
		r.Post("/query", s.handleQuery)
		r.Get("/items/{item_id}", s.handleItem)
	})

	// Long-lived, so outside the request timeout.
	r.Get("/ws", s.handleChatSocket)

	return r
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.cfg.Addr).Msg("starting API server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen addr=%s: %w", s.cfg.Addr, err)
	case <-ctx.Done():
	}

	s.logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	return nil
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("request")
		}()

		next.ServeHTTP(ww, r)
	})
}

// recoverMiddleware turns a handler panic into the same JSON body as any
// other pipeline failure.
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			s.logger.Error().
				Str("request_id", middleware.GetReqID(r.Context())).
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("handler panic")
			s.writeDetail(w, http.StatusInternalServerError, agentErrorPrefix+reasonInternal)
		}()

		next.ServeHTTP(w, r)
	})
}
