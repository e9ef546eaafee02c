package domain

import (
	"fmt"
	"time"
)

// SafeThicknessCM is the thickness at which ice is reported as safe to walk on.
const SafeThicknessCM = 15

type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate rejects coordinates outside WGS84 bounds.
func (c Coordinate) Validate() error {
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("latitude %v out of range", c.Lat)
	}
	if c.Lng < -180 || c.Lng > 180 {
		return fmt.Errorf("longitude %v out of range", c.Lng)
	}
	return nil
}

type Measurement struct {
	ID        int64
	Lat       float64
	Lng       float64
	Thickness int
	ImageURL  *string
	CreatedAt time.Time
}

func (m *Measurement) Coordinate() Coordinate {
	return Coordinate{Lat: m.Lat, Lng: m.Lng}
}

type Safety string

const (
	SafetySafe   Safety = "safe"
	SafetyDanger Safety = "danger"
)

func (m *Measurement) Safety() Safety {
	if m.Thickness >= SafeThicknessCM {
		return SafetySafe
	}
	return SafetyDanger
}

// NewMeasurement holds the fields a client supplies; the store assigns the rest.
type NewMeasurement struct {
	Lat       float64
	Lng       float64
	Thickness int
	ImageURL  *string
}
