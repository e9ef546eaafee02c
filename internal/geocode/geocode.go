// Package geocode guesses whether a coordinate lies on open water by looking
// at reverse geocoding metadata. The result is advisory only: a land verdict
// asks the user to confirm, and a failed lookup counts as water.
package geocode

import (
	"context"
	"log/slog"
	"strings"
	"unicode"

	"github.com/vbonduro/icewatch/internal/domain"
	"github.com/vbonduro/icewatch/internal/observability"
)

// Place is the subset of a reverse geocoding result the classifier reads.
type Place struct {
	Category    string `json:"category"`
	Type        string `json:"type"`
	DisplayName string `json:"display_name"`
}

// Reverser resolves a coordinate to the place found there.
type Reverser interface {
	Reverse(ctx context.Context, lat, lng float64) (Place, error)
}

var waterTags = map[string]bool{
	"water":     true,
	"natural":   true,
	"wetland":   true,
	"bay":       true,
	"coastline": true,
	"lake":      true,
	"river":     true,
	"stream":    true,
	"pond":      true,
}

// Words naming a lake, reservoir or pond in Polish (with common inflected
// forms), English and German. Matched against whole words only, so place
// names such as Stawiguda or Tennessee do not count.
var waterWords = map[string]bool{
	"jezioro": true, "jeziora": true, "jeziorze": true, "jeziorem": true, "jezior": true,
	"zalew": true, "zalewu": true, "zalewie": true, "zalewem": true,
	"staw": true, "stawu": true, "stawie": true, "stawem": true, "stawy": true, "stawów": true,
	"zbiornik": true, "zbiornika": true, "zbiorniku": true, "zbiornikiem": true,
	"lake": true, "lakes": true, "reservoir": true, "pond": true, "ponds": true,
	"see": true, "teich": true, "stausee": true, "weiher": true,
}

// Classify reports whether p looks like a body of water.
func Classify(p Place) bool {
	if waterTags[strings.ToLower(p.Category)] || waterTags[strings.ToLower(p.Type)] {
		return true
	}
	words := strings.FieldsFunc(strings.ToLower(p.DisplayName), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, w := range words {
		if waterWords[w] {
			return true
		}
	}
	return false
}

// Verifier answers the water question for the submission workflow.
type Verifier struct {
	reverser Reverser
	metrics  *observability.Metrics
	logger   *slog.Logger
}

func NewVerifier(reverser Reverser, metrics *observability.Metrics, logger *slog.Logger) *Verifier {
	return &Verifier{reverser: reverser, metrics: metrics, logger: logger}
}

// IsWater fails open: when the lookup errors the coordinate is treated as
// water so an unreachable geocoder never blocks a submission.
func (v *Verifier) IsWater(ctx context.Context, c domain.Coordinate) bool {
	place, err := v.reverser.Reverse(ctx, c.Lat, c.Lng)
	if err != nil {
		v.metrics.WaterChecks.WithLabelValues("error").Inc()
		v.logger.Warn("water verification unavailable, allowing submission",
			"lat", c.Lat, "lng", c.Lng, "error", err)
		return true
	}

	water := Classify(place)
	result := "land"
	if water {
		result = "water"
	}
	v.metrics.WaterChecks.WithLabelValues(result).Inc()
	v.logger.Debug("water verification",
		"lat", c.Lat, "lng", c.Lng,
		"category", place.Category, "type", place.Type, "result", result)
	return water
}
