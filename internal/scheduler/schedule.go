// Package scheduler computes when the next rotation cycle should start.
package scheduler

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
)

// Schedule defines when the next cycle should run.
type Schedule interface {
	// Next returns the next run time after the given time.
	Next(after time.Time) time.Time
}

// Wait returns how long to sleep from now until s fires next.
// A schedule with no future match yields zero.
func Wait(s Schedule, now time.Time) time.Duration {
	next := s.Next(now)
	if next.IsZero() || !next.After(now) {
		return 0
	}
	return next.Sub(now)
}

// IntervalSchedule fires at a fixed interval.
type IntervalSchedule struct {
	Interval time.Duration
}

// Every creates an interval schedule.
func Every(d time.Duration) *IntervalSchedule {
	return &IntervalSchedule{Interval: d}
}

func (s *IntervalSchedule) Next(after time.Time) time.Time {
	return after.Add(s.Interval)
}

func (s *IntervalSchedule) String() string {
	return strconv.Itoa(int(s.Interval / time.Second))
}

// RangeSchedule fires after a whole number of seconds drawn uniformly from
// [Min, Max] on every call to Next.
type RangeSchedule struct {
	Min, Max int
	intn     func(n int) int
}

// Between creates a random range schedule. lo must not exceed hi.
func Between(lo, hi int) *RangeSchedule {
	return &RangeSchedule{Min: lo, Max: hi, intn: rand.IntN}
}

// Sample draws one interval in seconds.
func (s *RangeSchedule) Sample() int {
	intn := s.intn
	if intn == nil {
		intn = rand.IntN
	}
	return s.Min + intn(s.Max-s.Min+1)
}

func (s *RangeSchedule) Next(after time.Time) time.Time {
	return after.Add(time.Duration(s.Sample()) * time.Second)
}

func (s *RangeSchedule) String() string {
	return fmt.Sprintf("%d-%d", s.Min, s.Max)
}

// CronSchedule fires on a standard five-field cron expression:
// minute hour day-of-month month day-of-week.
// Fields accept * (any), */n (every n), n-m (range) and n,m,o (list).
type CronSchedule struct {
	Expr        string
	Minutes     []int // 0-59
	Hours       []int // 0-23
	DaysOfMonth []int // 1-31
	Months      []int // 1-12
	DaysOfWeek  []int // 0-6 (0=Sunday)
}

var cronFields = []struct {
	name     string
	min, max int
}{
	{"minute", 0, 59},
	{"hour", 0, 23},
	{"day-of-month", 1, 31},
	{"month", 1, 12},
	{"day-of-week", 0, 6},
}

// Cron parses a cron expression. Examples:
//   - "*/15 * * * *" - every 15 minutes
//   - "0 */2 * * *" - every two hours on the hour
//   - "30 9 * * 1-5" - weekdays at 9:30
func Cron(expr string) (*CronSchedule, error) {
	parts := strings.Fields(expr)
	if len(parts) != len(cronFields) {
		return nil, fmt.Errorf("invalid cron expression: expected %d fields, got %d", len(cronFields), len(parts))
	}

	parsed := make([][]int, len(parts))
	for i, f := range cronFields {
		vals, err := parseCronField(parts[i], f.min, f.max)
		if err != nil {
			return nil, fmt.Errorf("invalid %s field: %w", f.name, err)
		}
		parsed[i] = vals
	}

	return &CronSchedule{
		Expr:        strings.Join(parts, " "),
		Minutes:     parsed[0],
		Hours:       parsed[1],
		DaysOfMonth: parsed[2],
		Months:      parsed[3],
		DaysOfWeek:  parsed[4],
	}, nil
}

func (s *CronSchedule) String() string { return s.Expr }

// Next returns the first matching minute strictly after the given time,
// or the zero time if nothing matches within four years.
func (s *CronSchedule) Next(after time.Time) time.Time {
	t := after.Truncate(time.Minute).Add(time.Minute)
	limit := after.AddDate(4, 0, 0)
	loc := t.Location()

	for t.Before(limit) {
		switch {
		case !contains(s.Months, int(t.Month())):
			t = time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, loc)
		case !s.dayMatches(t):
			t = time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, loc)
		case !contains(s.Hours, t.Hour()):
			t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour()+1, 0, 0, 0, loc)
		case !contains(s.Minutes, t.Minute()):
			t = t.Add(time.Minute)
		default:
			return t
		}
	}
	return time.Time{}
}

// dayMatches applies the cron rule that when both day fields are restricted
// either may match.
func (s *CronSchedule) dayMatches(t time.Time) bool {
	anyDOM := len(s.DaysOfMonth) == 31
	anyDOW := len(s.DaysOfWeek) == 7
	dom := contains(s.DaysOfMonth, t.Day())
	dow := contains(s.DaysOfWeek, int(t.Weekday()))

	switch {
	case anyDOM && anyDOW:
		return true
	case anyDOM:
		return dow
	case anyDOW:
		return dom
	default:
		return dom || dow
	}
}

func parseCronField(field string, min, max int) ([]int, error) {
	var values []int

	for _, part := range strings.Split(field, ",") {
		part = strings.TrimSpace(part)

		step := 1
		if base, s, ok := strings.Cut(part, "/"); ok {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("invalid step: %s", part)
			}
			step = n
			part = base
		}

		lo, hi := min, max
		switch {
		case part == "*":
		case strings.Contains(part, "-"):
			a, b, _ := strings.Cut(part, "-")
			start, err1 := strconv.Atoi(a)
			end, err2 := strconv.Atoi(b)
			if err1 != nil || err2 != nil || start < min || end > max || start > end {
				return nil, fmt.Errorf("invalid range: %s", part)
			}
			lo, hi = start, end
		default:
			v, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("invalid value: %s", part)
			}
			if v < min || v > max {
				return nil, fmt.Errorf("value out of range: %d", v)
			}
			lo, hi = v, v
		}

		for i := lo; i <= hi; i += step {
			values = append(values, i)
		}
	}

	return values, nil
}

func contains(slice []int, val int) bool {
	for _, v := range slice {
		if v == val {
			return true
		}
	}
	return false
}
