package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/vbonduro/icewatch/internal/domain"
	"github.com/vbonduro/icewatch/internal/observability"
	"github.com/vbonduro/icewatch/internal/photostore"
	"github.com/vbonduro/icewatch/internal/store"
)

var (
	// ErrNotFound is returned when deleting an id the store does not know.
	ErrNotFound = store.ErrNotFound
	// ErrRecordDelete wraps store failures during deletion.
	ErrRecordDelete = errors.New("failed to delete measurement record")
)

// measurementRepository is the subset of store.MeasurementStore that
// MeasurementService requires.
type measurementRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Measurement, error)
	List(ctx context.Context) ([]*domain.Measurement, error)
	Delete(ctx context.Context, id int64) error
}

type MeasurementService struct {
	repo         measurementRepository
	photos       photostore.PhotoStore
	list         *MeasurementList
	clock        clockwork.Clock
	recentWindow time.Duration
	metrics      *observability.Metrics
	logger       *slog.Logger
}

func NewMeasurementService(
	repo measurementRepository,
	photos photostore.PhotoStore,
	clock clockwork.Clock,
	recentWindow time.Duration,
	metrics *observability.Metrics,
	logger *slog.Logger,
) *MeasurementService {
	if recentWindow <= 0 {
		recentWindow = domain.DefaultRecentWindow
	}
	return &MeasurementService{
		repo:         repo,
		photos:       photos,
		list:         &MeasurementList{},
		clock:        clock,
		recentWindow: recentWindow,
		metrics:      metrics,
		logger:       logger,
	}
}

// Refresh reloads the in-memory list from the store. On error the previous
// list is kept.
func (s *MeasurementService) Refresh(ctx context.Context) error {
	ms, err := s.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load measurements: %w", err)
	}
	s.list.Replace(ms)
	s.metrics.MeasurementsLoaded.Set(float64(len(ms)))
	s.logger.Debug("measurements refreshed", "count", len(ms))
	return nil
}

// List projects the in-memory list through the filter mode. It does no I/O.
func (s *MeasurementService) List(mode domain.FilterMode) []*domain.Measurement {
	return domain.Filter(s.list.Snapshot(), mode, s.clock.Now(), s.recentWindow)
}

// Delete removes the measurement's photo, then its record, then the list
// entry. A failed photo removal is logged and does not stop the deletion.
func (s *MeasurementService) Delete(ctx context.Context, id int64) error {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRecordDelete, err)
	}
	if m == nil {
		return ErrNotFound
	}

	if m.ImageURL != nil {
		s.deletePhoto(ctx, id, *m.ImageURL)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.list.Remove(id)
			return ErrNotFound
		}
		return fmt.Errorf("%w: %w", ErrRecordDelete, err)
	}

	s.list.Remove(id)
	s.metrics.MeasurementsLoaded.Set(float64(s.list.Len()))
	s.logger.Info("measurement deleted", "id", id)
	return nil
}

func (s *MeasurementService) deletePhoto(ctx context.Context, id int64, imageURL string) {
	key, ok := photostore.KeyFromURL(imageURL)
	if !ok {
		s.metrics.PhotoDeleteFailures.Inc()
		s.logger.Warn("cannot derive photo key, skipping photo removal", "id", id, "image_url", imageURL)
		return
	}
	err := s.photos.Delete(ctx, key)
	if err == nil || errors.Is(err, photostore.ErrNotFound) {
		return
	}
	s.metrics.PhotoDeleteFailures.Inc()
	s.logger.Warn("failed to delete photo, continuing with record deletion",
		"id", id, "storage_key", key, "error", err)
}
