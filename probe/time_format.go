package probe

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// timestampLayout is naive UTC ISO-8601 with microseconds, the format earlier experiment
// files were written with.
const timestampLayout = "2006-01-02T15:04:05.000000"

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timestampLayout)
}

// formatFloat writes the shortest round-trip form, keeping a ".0" on integral values so
// float columns stay recognisable as floats.
func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return s
	}
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
