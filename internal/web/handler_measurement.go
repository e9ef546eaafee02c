package web

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/vbonduro/icewatch/internal/domain"
	"github.com/vbonduro/icewatch/internal/i18n"
	"github.com/vbonduro/icewatch/internal/photostore"
)

type measurementJSON struct {
	ID        int64         `json:"id"`
	Lat       float64       `json:"lat"`
	Lng       float64       `json:"lng"`
	Thickness int           `json:"thickness"`
	ImageURL  *string       `json:"image_url"`
	CreatedAt time.Time     `json:"created_at"`
	Safety    domain.Safety `json:"safety"`
}

func toMeasurementJSON(m *domain.Measurement) measurementJSON {
	return measurementJSON{
		ID:        m.ID,
		Lat:       m.Lat,
		Lng:       m.Lng,
		Thickness: m.Thickness,
		ImageURL:  m.ImageURL,
		CreatedAt: m.CreatedAt,
		Safety:    m.Safety(),
	}
}

type measurementListResponse struct {
	Mode         domain.FilterMode `json:"mode"`
	Measurements []measurementJSON `json:"measurements"`
}

func (s *Server) handleListMeasurements(w http.ResponseWriter, r *http.Request) {
	mode, err := domain.ParseFilterMode(r.URL.Query().Get("mode"))
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid_request", i18n.InvalidRequest)
		return
	}

	ms := s.measurements.List(mode)
	out := make([]measurementJSON, 0, len(ms))
	for _, m := range ms {
		out = append(out, toMeasurementJSON(m))
	}
	writeJSON(w, http.StatusOK, measurementListResponse{Mode: mode, Measurements: out})
}

func (s *Server) handleRefreshMeasurements(w http.ResponseWriter, r *http.Request) {
	if err := s.measurements.Refresh(r.Context()); err != nil {
		s.logger.Error("refresh measurements failed", "error", err)
		s.writeError(w, r, http.StatusServiceUnavailable, "refresh_failed", i18n.InternalError)
		return
	}
	s.handleListMeasurements(w, r)
}

func (s *Server) handleDeleteMeasurement(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid_request", i18n.InvalidRequest)
		return
	}
	// Deletion is destructive; clients must ask the user first.
	if r.URL.Query().Get("confirm") != "true" {
		s.writeError(w, r, http.StatusPreconditionRequired, "confirmation_required", i18n.MeasurementDeleteConfirm)
		return
	}

	if err := s.measurements.Delete(r.Context(), id); err != nil {
		s.writeWorkflowError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": s.localizer(r).T(i18n.MeasurementDeleted)})
}

func (s *Server) handleGetPhoto(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	reader, mimeType, err := s.photos.Get(r.Context(), key)
	if err != nil {
		if !errors.Is(err, photostore.ErrNotFound) {
			s.logger.Warn("get photo failed", "key", key, "error", err)
		}
		http.NotFound(w, r)
		return
	}
	defer closeWithLog(reader, "photo reader", s.logger)

	w.Header().Set("Content-Type", mimeType)
	// Keys are unique upload names; content never changes.
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	if _, err := io.Copy(w, reader); err != nil {
		s.logger.Error("write photo failed", "key", key, "error", err)
	}
}

type configResponse struct {
	DefaultCenter         domain.Coordinate `json:"default_center"`
	DistanceThresholdM    float64           `json:"distance_threshold_m"`
	SafeThicknessCM       int               `json:"safe_thickness_cm"`
	RecentWindowHours     float64           `json:"recent_window_hours"`
	UnknownPositionPolicy string            `json:"unknown_position_policy"`
	DefaultLocale         string            `json:"default_locale"`
	Locales               []string          `json:"locales"`
}

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	tags := s.bundle.Tags()
	locales := make([]string, 0, len(tags))
	for _, t := range tags {
		locales = append(locales, t.String())
	}
	writeJSON(w, http.StatusOK, configResponse{
		DefaultCenter:         s.settings.DefaultCenter,
		DistanceThresholdM:    s.settings.DistanceThreshold,
		SafeThicknessCM:       domain.SafeThicknessCM,
		RecentWindowHours:     s.settings.RecentWindow.Hours(),
		UnknownPositionPolicy: s.settings.UnknownPositionPolicy,
		DefaultLocale:         s.settings.DefaultLocale,
		Locales:               locales,
	})
}

// handleWeather reports conditions at lat/lng, or at the default center when
// either is missing.
func (s *Server) handleWeather(w http.ResponseWriter, r *http.Request) {
	c := s.settings.DefaultCenter
	q := r.URL.Query()
	if q.Get("lat") != "" && q.Get("lng") != "" {
		lat, latErr := strconv.ParseFloat(q.Get("lat"), 64)
		lng, lngErr := strconv.ParseFloat(q.Get("lng"), 64)
		c = domain.Coordinate{Lat: lat, Lng: lng}
		if latErr != nil || lngErr != nil || c.Validate() != nil {
			s.writeError(w, r, http.StatusBadRequest, "invalid_request", i18n.InvalidRequest)
			return
		}
	}

	cond, err := s.weather.Current(r.Context(), c.Lat, c.Lng)
	if err != nil {
		s.logger.Warn("weather lookup failed", "lat", c.Lat, "lng", c.Lng, "error", err)
		s.writeError(w, r, http.StatusBadGateway, "weather_unavailable", i18n.WeatherUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, cond)
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}
