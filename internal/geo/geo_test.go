package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vbonduro/icewatch/internal/domain"
)

var lakeCenter = domain.Coordinate{Lat: 53.757, Lng: 21.735}

// north returns a point roughly meters north of c. One degree of latitude is
// about 111.2 km.
func north(c domain.Coordinate, meters float64) domain.Coordinate {
	return domain.Coordinate{Lat: c.Lat + meters/111195.0, Lng: c.Lng}
}

func TestDistanceSymmetricAndZero(t *testing.T) {
	points := []domain.Coordinate{
		lakeCenter,
		north(lakeCenter, 50),
		{Lat: 54.1, Lng: 21.5},
		{Lat: -33.86, Lng: 151.2},
		{Lat: 0, Lng: 0},
	}

	for _, a := range points {
		assert.Zero(t, Distance(a, a))
		for _, b := range points {
			assert.InDelta(t, Distance(a, b), Distance(b, a), 1e-6)
		}
	}
}

func TestDistanceMagnitude(t *testing.T) {
	assert.InDelta(t, 50, Distance(lakeCenter, north(lakeCenter, 50)), 1)
	assert.InDelta(t, 500, Distance(lakeCenter, north(lakeCenter, 500)), 2)
}

func TestDistanceMonotonic(t *testing.T) {
	prev := 0.0
	for _, m := range []float64{10, 100, 250, 1000, 5000} {
		d := Distance(lakeCenter, north(lakeCenter, m))
		assert.Greater(t, d, prev)
		prev = d
	}
}

func TestGuardCheck(t *testing.T) {
	g := NewGuard(200)

	tests := []struct {
		name      string
		user      *domain.Coordinate
		candidate domain.Coordinate
		want      Outcome
	}{
		{"same point", &lakeCenter, lakeCenter, Within},
		{"50m away", &lakeCenter, north(lakeCenter, 50), Within},
		{"500m away", &lakeCenter, north(lakeCenter, 500), DistanceExceeded},
		{"unknown position", nil, lakeCenter, PositionUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := g.Check(tt.user, tt.candidate)
			assert.Equal(t, tt.want, v.Outcome)
		})
	}
}

func TestGuardThresholdIsConfigurable(t *testing.T) {
	candidate := north(lakeCenter, 150)

	assert.Equal(t, DistanceExceeded, NewGuard(100).Check(&lakeCenter, candidate).Outcome)
	assert.Equal(t, Within, NewGuard(200).Check(&lakeCenter, candidate).Outcome)
	assert.Equal(t, DefaultThresholdMeters, NewGuard(0).Threshold)
}
