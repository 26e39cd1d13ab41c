package survey

import (
	"fmt"
	"strconv"
)

// LogLine formats the station list entry for a leg, e.g.
// "St: A1-A2, Dist: 10.5m, Azi: 270°".
func LogLine(l Leg) string {
	return fmt.Sprintf("St: %s-%s, Dist: %sm, Azi: %s°", l.From, l.To, trimFloat(l.Distance), trimFloat(l.Azimuth))
}

// LogLines formats every leg in order.
func LogLines(legs []Leg) []string {
	lines := make([]string, len(legs))
	for i, l := range legs {
		lines[i] = LogLine(l)
	}
	return lines
}

func trimFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
