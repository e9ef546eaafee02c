package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vbonduro/icewatch/internal/domain"
)

func TestMeasurementListSnapshotIsCopy(t *testing.T) {
	var l MeasurementList
	l.Replace([]*domain.Measurement{{ID: 1}, {ID: 2}})

	snap := l.Snapshot()
	snap[0] = &domain.Measurement{ID: 99}

	assert.Equal(t, []int64{1, 2}, ids(l.Snapshot()))
}

func TestMeasurementListRemove(t *testing.T) {
	var l MeasurementList
	l.Replace([]*domain.Measurement{{ID: 1}, {ID: 2}, {ID: 3}})
	before := l.Snapshot()

	assert.True(t, l.Remove(2))
	assert.False(t, l.Remove(2))
	assert.Equal(t, []int64{1, 3}, ids(l.Snapshot()))
	assert.Equal(t, []int64{1, 2, 3}, ids(before), "earlier snapshots are unaffected")
	assert.Equal(t, 2, l.Len())
}
