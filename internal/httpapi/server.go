// Package httpapi serves run status over HTTP: health, the live shape
// snapshot, stored runs and Prometheus metrics.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/urfave/negroni"

	"github.com/usestring/shapescan/internal/cache"
	"github.com/usestring/shapescan/internal/metrics"
	"github.com/usestring/shapescan/internal/pipeline"
	"github.com/usestring/shapescan/internal/runfetch"
	"github.com/usestring/shapescan/internal/store"
)

// DefaultSamples is the number of sample ordinals returned per shape.
const DefaultSamples = 5

// SnapshotFunc returns the current state of a run.
type SnapshotFunc func(samples int) pipeline.Snapshot

// Options selects what the server exposes. Nil fields disable their routes.
type Options struct {
	Snapshot SnapshotFunc
	Metrics  *metrics.Metrics
	Store    *store.Store
	Cache    *cache.RunCache
}

// Server is the status HTTP server.
type Server struct {
	router  *mux.Router
	handler http.Handler
	opts    Options
}

// New builds the router and middleware chain.
func New(opts Options) *Server {
	s := &Server{router: mux.NewRouter(), opts: opts}
	s.setupRoutes()

	recovery := negroni.NewRecovery()
	recovery.PrintStack = false
	n := negroni.New(recovery, negroni.HandlerFunc(logMiddleware))
	n.UseHandler(s.router)
	s.handler = n
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/healthz", s.handleHealth()).Methods(http.MethodGet)
	if s.opts.Snapshot != nil {
		s.router.HandleFunc("/shapes", s.handleShapes()).Methods(http.MethodGet)
	}
	if s.opts.Store != nil {
		s.router.HandleFunc("/runs", s.handleListRuns()).Methods(http.MethodGet)
		s.router.HandleFunc("/runs/{id}", s.handleGetRun()).Methods(http.MethodGet)
	}
	if s.opts.Metrics != nil {
		s.router.Handle("/metrics", s.opts.Metrics.Handler()).Methods(http.MethodGet)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := s.Listen(addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Listen binds addr and logs the bound address, which resolves port 0.
func (s *Server) Listen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("status server: %w", err)
	}
	slog.Info("status server listening", slog.String("addr", ln.Addr().String()))
	return ln, nil
}

// Serve serves on ln until ctx is done, then shuts down.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func logMiddleware(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	start := time.Now()
	next(w, r)
	ww := w.(negroni.ResponseWriter)
	slog.Debug("http request",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", ww.Status()),
		slog.Duration("duration", time.Since(start)),
	)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (s *Server) handleShapes() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		samples, err := intParam(r, "samples", DefaultSamples)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, s.opts.Snapshot(samples))
	}
}

func (s *Server) handleListRuns() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := intParam(r, "limit", 20)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		runs, err := s.opts.Store.List(limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if runs == nil {
			runs = []store.Summary{}
		}
		writeJSON(w, http.StatusOK, runs)
	}
}

func (s *Server) handleGetRun() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := runfetch.ParseID(mux.Vars(r)["id"])
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		var run *store.Run
		if s.opts.Cache != nil {
			run, err = runfetch.FetchRun(s.opts.Store, s.opts.Cache, id)
		} else {
			run, err = s.opts.Store.Get(id)
		}
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case err != nil:
			writeError(w, http.StatusInternalServerError, err.Error())
		default:
			writeJSON(w, http.StatusOK, run)
		}
	}
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New(name + " must be a non-negative integer")
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("writing response", slog.String("error", err.Error()))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
