package service

import (
	"slices"
	"sync"

	"github.com/vbonduro/icewatch/internal/domain"
)

// MeasurementList is the in-memory copy of the measurements table that the
// map and list views read from. Readers get copies; the measurements
// themselves are never modified after loading.
type MeasurementList struct {
	mu    sync.RWMutex
	items []*domain.Measurement
}

func (l *MeasurementList) Replace(ms []*domain.Measurement) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = slices.Clone(ms)
}

func (l *MeasurementList) Snapshot() []*domain.Measurement {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.items)
}

// Remove drops the measurement with id and reports whether it was present.
func (l *MeasurementList) Remove(id int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := slices.IndexFunc(l.items, func(m *domain.Measurement) bool { return m.ID == id })
	if i < 0 {
		return false
	}
	l.items = slices.Delete(slices.Clone(l.items), i, i+1)
	return true
}

func (l *MeasurementList) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}
