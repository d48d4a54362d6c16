package scheduler

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"grimm.is/tornet/internal/apperr"
)

// ParseInterval parses a rotation interval: a non-negative whole number of
// seconds ("60") or an inclusive range ("30-120") re-sampled on every cycle.
// Malformed input yields an apperr.KindInvalidInterval error.
func ParseInterval(s string) (Schedule, error) {
	s = strings.TrimSpace(s)
	if lo, hi, ok := strings.Cut(s, "-"); ok {
		min, err1 := parseSeconds(lo)
		max, err2 := parseSeconds(hi)
		if err1 != nil || err2 != nil {
			return nil, invalidInterval(s)
		}
		if min > max {
			return nil, apperr.Errorf(apperr.KindInvalidInterval,
				"invalid interval %q: lower bound exceeds upper bound", s)
		}
		return Between(min, max), nil
	}

	n, err := parseSeconds(s)
	if err != nil {
		return nil, invalidInterval(s)
	}
	return Every(time.Duration(n) * time.Second), nil
}

func invalidInterval(s string) error {
	return apperr.Errorf(apperr.KindInvalidInterval,
		"invalid interval %q: use a number of seconds or a range like 30-120", s)
}

func parseSeconds(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("not a number: %q", s)
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if !fits(n, time.Second) {
		return 0, fmt.Errorf("out of range: %q", s)
	}
	return n, nil
}

// fits reports whether n units can be represented as a time.Duration.
func fits(n int, unit time.Duration) bool {
	return int64(n) <= math.MaxInt64/int64(unit)
}

var durationUnits = map[byte]time.Duration{
	's': time.Second,
	'm': time.Minute,
	'h': time.Hour,
	'd': 24 * time.Hour,
}

// ParseDuration parses a duration literal of the form <int><unit>, where unit
// is one of s, m, h, d. Anything else yields apperr.KindInvalidDuration.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) < 2 {
		return 0, invalidDuration(s)
	}
	unit, ok := durationUnits[s[len(s)-1]]
	if !ok {
		return 0, invalidDuration(s)
	}
	n, err := parseSeconds(s[:len(s)-1])
	if err != nil || !fits(n, unit) {
		return 0, invalidDuration(s)
	}
	return time.Duration(n) * unit, nil
}

func invalidDuration(s string) error {
	return apperr.Errorf(apperr.KindInvalidDuration,
		"invalid duration %q: use a format like 30s, 5m, 2h or 1d", s)
}

// ParseCron wraps Cron so cron errors carry apperr.KindInvalidDuration.
func ParseCron(expr string) (Schedule, error) {
	s, err := Cron(expr)
	if err != nil {
		return nil, apperr.New(apperr.KindInvalidDuration, "parse cron", err)
	}
	return s, nil
}
