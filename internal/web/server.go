package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vbonduro/icewatch/internal/domain"
	"github.com/vbonduro/icewatch/internal/i18n"
	"github.com/vbonduro/icewatch/internal/observability"
	"github.com/vbonduro/icewatch/internal/photostore"
	"github.com/vbonduro/icewatch/internal/weather"
)

// measurementService is the subset of service.MeasurementService the HTTP
// layer requires.
type measurementService interface {
	List(mode domain.FilterMode) []*domain.Measurement
	Refresh(ctx context.Context) error
	Delete(ctx context.Context, id int64) error
}

type weatherProvider interface {
	Current(ctx context.Context, lat, lng float64) (weather.Conditions, error)
}

// ReadinessChecker reports whether the backing store is reachable.
type ReadinessChecker interface {
	Ping(ctx context.Context) error
}

// ClientSettings are published to clients at GET /config.
type ClientSettings struct {
	DefaultCenter         domain.Coordinate
	DistanceThreshold     float64
	UnknownPositionPolicy string
	RecentWindow          time.Duration
	DefaultLocale         string
}

type Deps struct {
	Measurements measurementService
	Photos       photostore.PhotoStore
	Weather      weatherProvider
	Ready        ReadinessChecker
	Sessions     *SessionRegistry
	Bundle       *i18n.Bundle
	Settings     ClientSettings
	Clock        clockwork.Clock
	Metrics      *observability.Metrics
	Logger       *slog.Logger
}

type Server struct {
	measurements measurementService
	photos       photostore.PhotoStore
	weather      weatherProvider
	ready        ReadinessChecker
	sessions     *SessionRegistry
	bundle       *i18n.Bundle
	settings     ClientSettings
	clock        clockwork.Clock
	metrics      *observability.Metrics
	mux          *http.ServeMux
	logger       *slog.Logger
	httpServer   *http.Server
}

func NewServer(d Deps) *Server {
	s := &Server{
		measurements: d.Measurements,
		photos:       d.Photos,
		weather:      d.Weather,
		ready:        d.Ready,
		sessions:     d.Sessions,
		bundle:       d.Bundle,
		settings:     d.Settings,
		clock:        d.Clock,
		metrics:      d.Metrics,
		mux:          http.NewServeMux(),
		logger:       d.Logger,
	}
	s.httpServer = &http.Server{
		Handler:      s,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /readyz", s.handleReady)
	s.mux.Handle("GET /metrics", promhttp.Handler())

	s.mux.HandleFunc("GET /config", s.handleConfig)
	s.mux.HandleFunc("GET /weather", s.handleWeather)

	s.mux.HandleFunc("GET /measurements", s.handleListMeasurements)
	s.mux.HandleFunc("POST /measurements/refresh", s.handleRefreshMeasurements)
	s.mux.HandleFunc("DELETE /measurements/{id}", s.handleDeleteMeasurement)
	s.mux.HandleFunc("GET /photos/{key}", s.handleGetPhoto)

	s.mux.HandleFunc("POST /sessions", s.handleCreateSession)
	s.mux.HandleFunc("GET /sessions/{sid}", s.withSession(s.handleGetSession))
	s.mux.HandleFunc("DELETE /sessions/{sid}", s.handleDeleteSession)
	s.mux.HandleFunc("POST /sessions/{sid}/position", s.withSession(s.handleReportPosition))
	s.mux.HandleFunc("GET /sessions/{sid}/position/stream", s.withSession(s.handlePositionStream))
	s.mux.HandleFunc("POST /sessions/{sid}/aim", s.withSession(s.handleAim))
	s.mux.HandleFunc("POST /sessions/{sid}/confirm", s.withSession(s.handleConfirm))
	s.mux.HandleFunc("PUT /sessions/{sid}/thickness", s.withSession(s.handleSetThickness))
	s.mux.HandleFunc("POST /sessions/{sid}/photo", s.withSession(s.handleAttachPhoto))
	s.mux.HandleFunc("DELETE /sessions/{sid}/photo", s.withSession(s.handleRemovePhoto))
	s.mux.HandleFunc("POST /sessions/{sid}/save", s.withSession(s.handleSave))
	s.mux.HandleFunc("POST /sessions/{sid}/water-override", s.withSession(s.handleWaterOverride))
	s.mux.HandleFunc("POST /sessions/{sid}/cancel", s.withSession(s.handleCancel))
}

// securityHeaders adds defensive HTTP response headers to every response.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy", "default-src 'none'; img-src 'self'; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}

// statusRecorder wraps http.ResponseWriter to capture the written status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer, which the
// position stream needs for flushing and deadlines.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func requestLogger(logger *slog.Logger, metrics *observability.Metrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Observe(elapsed.Seconds())
		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", elapsed.Milliseconds(),
		)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestLogger(s.logger, s.metrics, securityHeaders(s.mux)).ServeHTTP(w, r)
}

// ListenAndServe blocks until the server stops. It returns
// http.ErrServerClosed after Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.logger.Info("starting server", "addr", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.ready.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone away
}

// decodeJSON reads a small JSON request body into v.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 64*1024))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
