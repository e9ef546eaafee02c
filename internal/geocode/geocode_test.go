package geocode

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/vbonduro/icewatch/internal/domain"
	"github.com/vbonduro/icewatch/internal/observability"
)

type stubReverser struct {
	place Place
	err   error
	calls int
}

func (s *stubReverser) Reverse(_ context.Context, _, _ float64) (Place, error) {
	s.calls++
	return s.place, s.err
}

func testLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		place Place
		want  bool
	}{
		{"water category", Place{Category: "water"}, true},
		{"natural water", Place{Category: "natural", Type: "water"}, true},
		{"lake type", Place{Category: "place", Type: "lake"}, true},
		{"wetland upper case", Place{Category: "WETLAND"}, true},
		{"polish lake name", Place{Category: "boundary", Type: "administrative", DisplayName: "Jezioro Mamry, gmina Giżycko"}, true},
		{"polish reservoir name", Place{Category: "landuse", Type: "basin", DisplayName: "Zalew Zegrzyński"}, true},
		{"polish pond inflected", Place{Category: "highway", Type: "footway", DisplayName: "Przy stawie, Olsztyn"}, true},
		{"german lake name", Place{Category: "place", Type: "locality", DisplayName: "Großer See, Mecklenburg"}, true},
		{"english reservoir", Place{Category: "landuse", Type: "reservoir_watershed", DisplayName: "Kielder Reservoir, Northumberland"}, true},
		{"tennessee house", Place{Category: "building", Type: "house", DisplayName: "123 Main St, Nashville, Davidson County, Tennessee, 37201, United States"}, false},
		{"town named after a pond", Place{Category: "boundary", Type: "administrative", DisplayName: "Stawiguda, gmina Stawiguda, powiat olsztyński"}, false},
		{"street containing staw", Place{Category: "place", Type: "suburb", DisplayName: "Przystawka, Warszawa, Polska"}, false},
		{"town named after a lake", Place{Category: "boundary", Type: "administrative", DisplayName: "Jeziorany, powiat olsztyński"}, false},
		{"house", Place{Category: "building", Type: "house", DisplayName: "123 Main St"}, false},
		{"road", Place{Category: "highway", Type: "residential", DisplayName: "ulica Długa, Mikołajki"}, false},
		{"empty", Place{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.place))
		})
	}
}

func TestVerifierIsWater(t *testing.T) {
	c := domain.Coordinate{Lat: 53.757, Lng: 21.735}

	tests := []struct {
		name   string
		stub   *stubReverser
		want   bool
		result string
	}{
		{"water", &stubReverser{place: Place{Category: "water"}}, true, "water"},
		{"land", &stubReverser{place: Place{Category: "building", Type: "house", DisplayName: "123 Main St"}}, false, "land"},
		{"network error fails open", &stubReverser{err: errors.New("connection refused")}, true, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			m := observability.NewMetricsForTesting()
			v := NewVerifier(tt.stub, m, testLogger(&buf))

			assert.Equal(t, tt.want, v.IsWater(context.Background(), c))
			assert.Equal(t, 1, tt.stub.calls)
			assert.Equal(t, 1.0, testutil.ToFloat64(m.WaterChecks.WithLabelValues(tt.result)))
		})
	}
}

func TestVerifierLogsFailOpen(t *testing.T) {
	var buf bytes.Buffer
	v := NewVerifier(&stubReverser{err: errors.New("timeout")}, observability.NewMetricsForTesting(), testLogger(&buf))

	v.IsWater(context.Background(), domain.Coordinate{Lat: 1, Lng: 2})

	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "timeout")
}
