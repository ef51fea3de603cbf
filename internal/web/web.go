package web

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"sadlamp/internal/config"
	appLog "sadlamp/internal/log"
	"sadlamp/internal/schedule"
	"sadlamp/internal/today"
	"sadlamp/internal/weather"
)

const (
	maxBodyBytes = 64 << 10
	todayTTL     = 30 * time.Second
)

// LocationSaver records a device-reported location.
type LocationSaver interface {
	Save(ctx context.Context, c weather.Coordinates) error
}

// Server exposes the day report, schedules and settings over HTTP.
type Server struct {
	cfg       *config.Config
	days      *today.Service
	schedules schedule.Repository
	location  LocationSaver
	mux       *http.ServeMux

	// Short-lived per-date cache for /api/today so page reloads do not
	// refetch weather and calendars.
	todayMu    sync.RWMutex
	todayCache map[string]cachedReport
}

type cachedReport struct {
	report    *today.Report
	updatedAt time.Time
}

func NewServer(cfg *config.Config, days *today.Service, schedules schedule.Repository, loc LocationSaver) *Server {
	s := &Server{
		cfg:        cfg,
		days:       days,
		schedules:  schedules,
		location:   loc,
		mux:        http.NewServeMux(),
		todayCache: make(map[string]cachedReport),
	}
	s.registerRoutes()
	return s
}

// Handler returns the mux wrapped in tracing, request IDs, access logs,
// the body limit and, when configured, basic auth.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		h = s.basicAuthMiddleware(h)
	}
	h = withBodyLimit(maxBodyBytes)(h)
	h = withAccessLog(h)
	h = withRequestID(h)
	return otelhttp.NewHandler(h, "sadlamp")
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		appLog.Info("shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty username or password disables auth.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware guards everything except /health.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="SADLamp", charset="UTF-8"`)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func withBodyLimit(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}

type ctxKey int

const ctxKeyRequestID ctxKey = iota

const requestIDHeader = "X-Request-Id"

func requestID(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyRequestID).(string)
	return v
}

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyRequestID, id)))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.bytes += int64(n)
	return n, err
}

func withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)
		appLog.Debug("http request",
			"request_id", requestID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"bytes", sw.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) cachedToday(date string) (*today.Report, bool) {
	s.todayMu.RLock()
	defer s.todayMu.RUnlock()
	c, ok := s.todayCache[date]
	if !ok || time.Since(c.updatedAt) >= todayTTL {
		return nil, false
	}
	return c.report, true
}

func (s *Server) storeToday(date string, rep *today.Report) {
	s.todayMu.Lock()
	s.todayCache[date] = cachedReport{report: rep, updatedAt: time.Now()}
	s.todayMu.Unlock()
}

// invalidate drops cached reports after any write that can change them.
func (s *Server) invalidate() {
	s.todayMu.Lock()
	clear(s.todayCache)
	s.todayMu.Unlock()
}
