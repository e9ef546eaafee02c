// Package geo implements the distance check between a device's position and
// the point a user wants to submit a measurement for.
package geo

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/vbonduro/icewatch/internal/domain"
)

// DefaultThresholdMeters tolerates the poor location accuracy of in-app
// browsers.
const DefaultThresholdMeters = 200.0

// Distance returns the great-circle distance between a and b in meters.
func Distance(a, b domain.Coordinate) float64 {
	return geo.DistanceHaversine(point(a), point(b))
}

func point(c domain.Coordinate) orb.Point {
	return orb.Point{c.Lng, c.Lat}
}

type Outcome int

const (
	Within Outcome = iota
	DistanceExceeded
	PositionUnknown
)

func (o Outcome) String() string {
	switch o {
	case Within:
		return "within"
	case DistanceExceeded:
		return "distance_exceeded"
	case PositionUnknown:
		return "position_unknown"
	default:
		return "unknown"
	}
}

type Verdict struct {
	Outcome Outcome
	// Distance is zero when the outcome is PositionUnknown.
	Distance float64
}

type Guard struct {
	Threshold float64
}

func NewGuard(threshold float64) Guard {
	if threshold <= 0 {
		threshold = DefaultThresholdMeters
	}
	return Guard{Threshold: threshold}
}

// Check compares the device position against the candidate. A nil user
// position yields PositionUnknown; what to do with it is left to the caller.
func (g Guard) Check(user *domain.Coordinate, candidate domain.Coordinate) Verdict {
	if user == nil {
		return Verdict{Outcome: PositionUnknown}
	}
	d := Distance(*user, candidate)
	if d > g.Threshold {
		return Verdict{Outcome: DistanceExceeded, Distance: d}
	}
	return Verdict{Outcome: Within, Distance: d}
}
