package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleMeasurements(now time.Time) []*Measurement {
	return []*Measurement{
		{ID: 1, Thickness: 20, CreatedAt: now},
		{ID: 2, Thickness: 8, CreatedAt: now.Add(-24 * time.Hour)},
		{ID: 3, Thickness: 12, CreatedAt: now.Add(-4 * 24 * time.Hour)},
	}
}

func ids(ms []*Measurement) []int64 {
	out := make([]int64, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.ID)
	}
	return out
}

func TestFilterRecentKeepsLastThreeDays(t *testing.T) {
	now := time.Date(2026, time.January, 20, 12, 0, 0, 0, time.UTC)
	ms := sampleMeasurements(now)

	got := Filter(ms, FilterRecent, now, DefaultRecentWindow)
	assert.Equal(t, []int64{1, 2}, ids(got))
}

func TestFilterAllKeepsEverythingInOrder(t *testing.T) {
	now := time.Date(2026, time.January, 20, 12, 0, 0, 0, time.UTC)
	ms := sampleMeasurements(now)

	got := Filter(ms, FilterAll, now, DefaultRecentWindow)
	assert.Equal(t, []int64{1, 2, 3}, ids(got))
}

func TestFilterDoesNotMutateInput(t *testing.T) {
	now := time.Date(2026, time.January, 20, 12, 0, 0, 0, time.UTC)
	ms := sampleMeasurements(now)

	first := Filter(ms, FilterRecent, now, DefaultRecentWindow)
	second := Filter(ms, FilterRecent, now, DefaultRecentWindow)

	assert.Equal(t, ids(first), ids(second))
	assert.Equal(t, []int64{1, 2, 3}, ids(ms))

	first[0] = &Measurement{ID: 99}
	assert.Equal(t, int64(1), ms[0].ID)
}

func TestFilterBoundaryIsInclusive(t *testing.T) {
	now := time.Date(2026, time.January, 20, 12, 0, 0, 0, time.UTC)
	ms := []*Measurement{{ID: 7, CreatedAt: now.Add(-DefaultRecentWindow)}}

	assert.Len(t, Filter(ms, FilterRecent, now, DefaultRecentWindow), 1)
}

func TestParseFilterMode(t *testing.T) {
	mode, err := ParseFilterMode("")
	require.NoError(t, err)
	assert.Equal(t, FilterRecent, mode)

	mode, err = ParseFilterMode("all")
	require.NoError(t, err)
	assert.Equal(t, FilterAll, mode)

	_, err = ParseFilterMode("week")
	assert.Error(t, err)
}

func TestMeasurementSafety(t *testing.T) {
	assert.Equal(t, SafetySafe, (&Measurement{Thickness: 15}).Safety())
	assert.Equal(t, SafetySafe, (&Measurement{Thickness: 30}).Safety())
	assert.Equal(t, SafetyDanger, (&Measurement{Thickness: 14}).Safety())
	assert.Equal(t, SafetyDanger, (&Measurement{Thickness: 0}).Safety())
}
