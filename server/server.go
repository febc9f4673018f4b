package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/rs/cors"
	"github.com/samgozman/fin-calendar/internal/utils"
	"github.com/samgozman/fin-calendar/scavenger/ecal"
)

//go:embed static
var staticFiles embed.FS

type calendar interface {
	FetchDetailed(ctx context.Context) (ecal.EconomicCalendarEvents, error)
}

// Server exposes the calendar over HTTP.
type Server struct {
	calendar  calendar
	metrics   http.Handler // optional /metrics handler
	staticDir string       // serves this directory at / instead of the embedded page
	http      *http.Server
	logger    *slog.Logger
}

// New creates a new Server listening on addr.
func New(addr string, c calendar) *Server {
	s := &Server{
		calendar: c,
		logger:   slog.Default(),
	}
	s.http = &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: 10 * time.Second,
		// the browser strategy can take a full minute
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}
	return s
}

// WithLogger sets the logger of the Server.
func (s *Server) WithLogger(l *slog.Logger) *Server {
	s.logger = l
	return s
}

// WithMetrics mounts h at /metrics.
func (s *Server) WithMetrics(h http.Handler) *Server {
	s.metrics = h
	return s
}

// WithStaticDir serves the files of dir at / instead of the embedded page.
func (s *Server) WithStaticDir(dir string) *Server {
	s.staticDir = dir
	return s
}

// Handler returns the routes wrapped with sentry, CORS and request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/calendar", s.handleCalendar)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	mux.Handle("GET /", s.staticHandler())

	sentryHandler := sentryhttp.New(sentryhttp.Options{Repanic: true})
	return s.logRequests(cors.AllowAll().Handler(sentryHandler.Handle(mux)))
}

// ListenAndServe serves until Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.http.Handler = s.Handler()
	s.logger.Info("[server] Listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	events, err := s.calendar.FetchDetailed(r.Context())
	if err != nil {
		s.logger.Warn("[server] Calendar fetch failed, serving an empty list", "error", err)
		hub := sentry.GetHubFromContext(r.Context())
		if hub == nil {
			hub = sentry.CurrentHub()
		}
		utils.CaptureSentryException("calendarFetchError", hub, err)
	}
	if events == nil {
		events = ecal.EconomicCalendarEvents{}
	}

	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(events); err != nil {
		s.logger.Error("[server] Error writing response", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) staticHandler() http.Handler {
	if s.staticDir != "" {
		return http.FileServer(http.Dir(s.staticDir))
	}
	sub, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	return http.FileServerFS(sub)
}

// statusRecorder keeps the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("[server] Request served",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"took", time.Since(start),
		)
	})
}
