// Package http exposes the service API: fetch triggers, listings, the
// correlation and comparison analyses, and the health/metrics endpoints.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/worldpulse/hazard-aqi-service/internal/config"
	"github.com/worldpulse/hazard-aqi-service/internal/correlate"
	"github.com/worldpulse/hazard-aqi-service/internal/domain"
	"github.com/worldpulse/hazard-aqi-service/internal/ingest"
	"github.com/worldpulse/hazard-aqi-service/internal/store"
)

// CycleRunner triggers fetch cycles and reports readiness. A non-positive
// lookback means the runner's configured default.
type CycleRunner interface {
	RunDisasters(ctx context.Context, lookback time.Duration) (ingest.CycleReport, error)
	RunAQI(ctx context.Context, lookback time.Duration) (ingest.CycleReport, error)
	CheckReadiness(ctx context.Context) error
}

// Correlator runs the analysis queries.
type Correlator interface {
	Correlate(ctx context.Context, p correlate.Params) (correlate.Report, error)
	CompareCities(ctx context.Context, latest correlate.LatestAQIReader, cityNames []string, before *time.Time) (correlate.Comparison, error)
}

// DisasterReader lists stored disasters.
type DisasterReader interface {
	List(ctx context.Context, f store.DisasterFilter) ([]domain.Disaster, error)
}

// AQIReader lists stored measurements and serves the comparison lookups.
type AQIReader interface {
	List(ctx context.Context, f store.AQIFilter) ([]domain.AQIMeasurement, error)
	LatestByCity(ctx context.Context, cityNames []string, before *time.Time) ([]domain.AQIMeasurement, error)
}

// CityReader lists the reference cities.
type CityReader interface {
	List(ctx context.Context, limit int) ([]domain.City, error)
}

// Server wires the API routes over the runner, engine, and repositories.
type Server struct {
	httpServer *http.Server
	runner     CycleRunner
	correlator Correlator
	disasters  DisasterReader
	aqi        AQIReader
	cities     CityReader
	defaults   config.CorrelationConfig
	logger     *slog.Logger
	validate   *validator.Validate
}

// NewServer creates the HTTP server with all API routes mounted.
func NewServer(addr string, runner CycleRunner, correlator Correlator, disasters DisasterReader, aqi AQIReader, cities CityReader, defaults config.CorrelationConfig, logger *slog.Logger) *Server {
	s := &Server{
		runner:     runner,
		correlator: correlator,
		disasters:  disasters,
		aqi:        aqi,
		cities:     cities,
		defaults:   defaults,
		logger:     logger,
		validate:   validator.New(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/disasters/fetch", s.handleFetchDisasters)
		r.Post("/aqi/fetch", s.handleFetchAQI)
		r.Get("/disasters", s.handleListDisasters)
		r.Get("/aqi", s.handleListAQI)
		r.Get("/cities", s.handleListCities)
		r.Get("/correlation/disaster-aqi", s.handleCorrelation)
		r.Get("/comparison/aqi", s.handleComparison)
	})

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // fetch cycles poll slow upstreams
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.runner.CheckReadiness(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleFetchDisasters(w http.ResponseWriter, r *http.Request) {
	lookback, ok := s.lookbackParam(w, r)
	if !ok {
		return
	}
	report, err := s.runner.RunDisasters(r.Context(), lookback)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleFetchAQI(w http.ResponseWriter, r *http.Request) {
	lookback, ok := s.lookbackParam(w, r)
	if !ok {
		return
	}
	report, err := s.runner.RunAQI(r.Context(), lookback)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// lookbackParam reads the optional days= override for a fetch trigger. Zero
// means the configured default window.
func (s *Server) lookbackParam(w http.ResponseWriter, r *http.Request) (time.Duration, bool) {
	days, err := intParam(r.URL.Query().Get("days"), 0)
	if err != nil || days < 0 || days > 365 {
		writeJSON(w, http.StatusBadRequest, errorBody("days must be an integer between 1 and 365"))
		return 0, false
	}
	return time.Duration(days) * 24 * time.Hour, true
}

func (s *Server) handleListDisasters(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.DisasterFilter{
		Kind:     domain.DisasterKind(q.Get("type")),
		Source:   q.Get("source"),
		Severity: domain.Severity(q.Get("severity")),
	}
	if f.Kind != "" && !knownKind(f.Kind) {
		writeJSON(w, http.StatusBadRequest, errorBody("unknown disaster type: "+string(f.Kind)))
		return
	}
	var err error
	if f.Limit, err = intParam(q.Get("limit"), 0); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("malformed limit"))
		return
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("malformed since, want RFC3339"))
			return
		}
		f.Since = &t
	}
	if v := q.Get("min_magnitude"); v != "" {
		m, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("malformed min_magnitude"))
			return
		}
		f.MinMagnitude = &m
	}
	if v := q.Get("bbox"); v != "" {
		box, err := parseBBox(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
			return
		}
		f.Bounds = box
	}

	disasters, err := s.disasters.List(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"disasters": disasters, "count": len(disasters)})
}

func (s *Server) handleListAQI(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.AQIFilter{
		CityName: q.Get("city"),
		Source:   q.Get("source"),
	}
	var err error
	if f.Limit, err = intParam(q.Get("limit"), 0); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("malformed limit"))
		return
	}

	measurements, err := s.aqi.List(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"measurements": measurements, "count": len(measurements)})
}

func (s *Server) handleListCities(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"), 0)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("malformed limit"))
		return
	}
	cities, err := s.cities.List(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cities": cities, "count": len(cities)})
}

// correlationQuery carries the validated correlation request parameters.
type correlationQuery struct {
	DisasterID   int64   `validate:"gte=0"`
	Kind         string  `validate:"omitempty,oneof=earthquake flood hurricane tsunami volcano wildfire"`
	Severity     string  `validate:"omitempty"`
	RadiusKm     float64 `validate:"gt=0,lte=5000"`
	PreDays      int     `validate:"gte=1,lte=90"`
	PostDays     int     `validate:"gte=1,lte=90"`
	MaxDisasters int     `validate:"gte=0,lte=500"`
}

func (s *Server) handleCorrelation(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	cq := correlationQuery{
		Kind:     q.Get("disaster_type"),
		Severity: q.Get("severity"),
		RadiusKm: s.defaults.RadiusKm,
		PreDays:  s.defaults.PreWindowDays,
		PostDays: s.defaults.PostWindowDays,
	}
	var err error
	if v := q.Get("disaster_id"); v != "" {
		if cq.DisasterID, err = strconv.ParseInt(v, 10, 64); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("malformed disaster_id"))
			return
		}
	}
	if v := q.Get("radius_km"); v != "" {
		if cq.RadiusKm, err = strconv.ParseFloat(v, 64); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("malformed radius_km"))
			return
		}
	}
	if cq.PreDays, err = intParam(q.Get("pre_days"), cq.PreDays); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("malformed pre_days"))
		return
	}
	if cq.PostDays, err = intParam(q.Get("post_days"), cq.PostDays); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("malformed post_days"))
		return
	}
	if cq.MaxDisasters, err = intParam(q.Get("max_disasters"), 0); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("malformed max_disasters"))
		return
	}
	if err := s.validate.Struct(cq); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid parameters: "+err.Error()))
		return
	}

	report, err := s.correlator.Correlate(r.Context(), correlate.Params{
		DisasterID:         cq.DisasterID,
		Kind:               domain.DisasterKind(cq.Kind),
		Severity:           domain.Severity(cq.Severity),
		RadiusKm:           cq.RadiusKm,
		PreWindow:          time.Duration(cq.PreDays) * 24 * time.Hour,
		PostWindow:         time.Duration(cq.PostDays) * 24 * time.Hour,
		MaxDisasters:       cq.MaxDisasters,
		StrictCityGrouping: s.defaults.StrictCityGrouping,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleComparison(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("cities")
	var names []string
	for _, n := range strings.Split(raw, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	if len(names) < 2 {
		writeJSON(w, http.StatusBadRequest, errorBody("cities must list at least two comma-separated names"))
		return
	}

	var before *time.Time
	if v := r.URL.Query().Get("date"); v != "" {
		day, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("malformed date, want YYYY-MM-DD"))
			return
		}
		// End of the requested day: "latest reading as of that date".
		cutoff := day.Add(24 * time.Hour)
		before = &cutoff
	}

	cmp, err := s.correlator.CompareCities(r.Context(), s.aqi, names, before)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cmp)
}

// writeError maps domain errors onto status codes: a store outage is the only
// 503, an in-flight cycle is 409, validation problems are 400.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrStoreUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorBody("store unavailable"))
	case errors.Is(err, ingest.ErrCycleInFlight):
		writeJSON(w, http.StatusConflict, errorBody(err.Error()))
	case domain.IsValidation(err):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	default:
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

func knownKind(k domain.DisasterKind) bool {
	for _, known := range domain.KnownKinds {
		if k == known {
			return true
		}
	}
	return false
}

// parseBBox reads a "minLat,minLon,maxLat,maxLon" query value.
func parseBBox(v string) (*domain.BoundingBox, error) {
	parts := strings.Split(v, ",")
	if len(parts) != 4 {
		return nil, errors.New("malformed bbox, want minLat,minLon,maxLat,maxLon")
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, errors.New("malformed bbox, want minLat,minLon,maxLat,maxLon")
		}
		vals[i] = f
	}
	box := &domain.BoundingBox{MinLat: vals[0], MinLon: vals[1], MaxLat: vals[2], MaxLon: vals[3]}
	if box.MinLat > box.MaxLat || box.MinLon > box.MaxLon {
		return nil, errors.New("bbox minimums must not exceed maximums")
	}
	return box, nil
}

func intParam(v string, fallback int) (int, error) {
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
