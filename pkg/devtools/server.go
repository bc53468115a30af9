package devtools

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vango-dev/reactor/pkg/reactor"
)

// shutdownTimeout bounds graceful shutdown in ListenAndServe.
const shutdownTimeout = 5 * time.Second

// Server is the devtools HTTP server for one runtime.
type Server struct {
	rt       *reactor.Runtime
	feed     *Feed
	gatherer prometheus.Gatherer
	logger   *slog.Logger
	router   chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithFeed sets the step feed served at /events. It should be the same
// Feed installed as runtime middleware.
func WithFeed(f *Feed) Option {
	return func(s *Server) {
		if f != nil {
			s.feed = f
		}
	}
}

// WithGatherer sets the Prometheus gatherer served at /metrics.
// Default: prometheus.DefaultGatherer.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		if g != nil {
			s.gatherer = g
		}
	}
}

// WithLogger sets the server logger. Default: the runtime logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a devtools server for rt.
func New(rt *reactor.Runtime, opts ...Option) *Server {
	s := &Server{
		rt:       rt,
		gatherer: prometheus.DefaultGatherer,
		logger:   rt.Logger().With("component", "devtools"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.feed == nil {
		s.feed = NewFeed()
	}
	s.router = s.routes()
	return s
}

// Feed returns the server's step feed.
func (s *Server) Feed() *Feed {
	return s.feed
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.GetHead)

	r.Get("/healthz", s.handleHealth)
	r.Get("/instances", s.handleInstances)
	r.Get("/instances/{id}", s.handleInstance)
	r.Get("/portals", s.handlePortals)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Get("/events", s.feed.HandleWebSocket)
	return r
}

type health struct {
	Status    string `json:"status"`
	Runtime   string `json:"runtime"`
	Instances int    `json:"instances"`
	Clients   int    `json:"clients"`
	Dropped   uint64 `json:"dropped"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, health{
		Status:    "ok",
		Runtime:   s.rt.ID(),
		Instances: len(s.rt.Snapshot()),
		Clients:   s.feed.ClientCount(),
		Dropped:   s.feed.Dropped(),
	})
}

func (s *Server) handleInstances(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.rt.Snapshot())
}

func (s *Server) handleInstance(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid instance id")
		return
	}
	for _, info := range s.rt.Snapshot() {
		if uint64(info.ID) == id {
			writeJSON(w, http.StatusOK, info)
			return
		}
	}
	writeError(w, http.StatusNotFound, "instance not mounted")
}

func (s *Server) handlePortals(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.rt.Portals().Bindings())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully and closes feed clients.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("devtools listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		s.feed.Close()
		return err
	}

	// Hijacked websocket connections are not closed by Shutdown.
	s.feed.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
