package youtube

import (
	"regexp"
	"strconv"
)

var iso8601DurationRe = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// ParseISO8601Duration converts a contentDetails duration like "PT1H2M3S"
// into seconds. Unparseable input yields 0.
func ParseISO8601Duration(raw string) int {
	m := iso8601DurationRe.FindStringSubmatch(raw)
	if m == nil {
		return 0
	}

	total := 0
	if m[1] != "" {
		h, _ := strconv.Atoi(m[1])
		total += h * 3600
	}
	if m[2] != "" {
		min, _ := strconv.Atoi(m[2])
		total += min * 60
	}
	if m[3] != "" {
		s, _ := strconv.Atoi(m[3])
		total += s
	}
	return total
}
