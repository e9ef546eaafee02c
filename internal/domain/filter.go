package domain

import (
	"fmt"
	"time"
)

type FilterMode string

const (
	FilterRecent FilterMode = "recent"
	FilterAll    FilterMode = "all"
)

// DefaultRecentWindow is how far back the recent filter looks.
const DefaultRecentWindow = 72 * time.Hour

func ParseFilterMode(s string) (FilterMode, error) {
	switch FilterMode(s) {
	case "", FilterRecent:
		return FilterRecent, nil
	case FilterAll:
		return FilterAll, nil
	default:
		return "", fmt.Errorf("unknown filter mode %q", s)
	}
}

// Filter returns a new slice holding the measurements visible under mode at
// time now. The input slice is never modified and order is preserved.
func Filter(ms []*Measurement, mode FilterMode, now time.Time, window time.Duration) []*Measurement {
	out := make([]*Measurement, 0, len(ms))
	if mode == FilterAll {
		return append(out, ms...)
	}

	cutoff := now.Add(-window)
	for _, m := range ms {
		if !m.CreatedAt.Before(cutoff) {
			out = append(out, m)
		}
	}
	return out
}
