// Package server exposes the join resolver over a small JSON API:
//
//	GET  /healthz                  liveness and driver
//	GET  /tables                   every table of the configured schemas
//	GET  /tables/{schema}/{table}  full metadata of one table
//	POST /join                     resolve a join path and render its SQL
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/koustreak/dbjoin/internal/database"
	"github.com/koustreak/dbjoin/internal/errs"
	"github.com/koustreak/dbjoin/internal/joinpath"
	"github.com/koustreak/dbjoin/internal/logger"
)

// Options configure the HTTP listener.
type Options struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server serves one Provider. It holds no schema state; every request
// reads the provider afresh.
type Server struct {
	provider database.Provider
	resolver *joinpath.Resolver
	opts     Options
	log      *logger.Logger
	router   chi.Router
}

// New builds the router. join bounds the searches the API runs.
func New(p database.Provider, join joinpath.Options, opts Options, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	s := &Server{
		provider: p,
		resolver: joinpath.NewResolver(p, p, join, log),
		opts:     opts,
		log:      log.Component("server"),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/tables", func(r chi.Router) {
		r.Get("/", s.handleListTables)
		r.Get("/{schema}/{table}", s.handleDescribeTable)
	})
	r.Post("/join", s.handleJoin)
	return r
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests for at most ShutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.router,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.With().Str("addr", s.opts.Addr).Logger().Info("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errs.Wrap(errs.ErrKindConnectionFailed, "listen on "+s.opts.Addr, err)
	case <-ctx.Done():
	}

	timeout := s.opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.log.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errs.Wrap(errs.ErrKindTimeout, "server shutdown", err)
	}
	return nil
}

// requestLogger logs one line per request through the logger's HTTP event.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		reqLog := s.log.With().Str("request_id", middleware.GetReqID(r.Context())).Logger()

		next.ServeHTTP(ww, r)

		reqLog.HTTPEvent().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
