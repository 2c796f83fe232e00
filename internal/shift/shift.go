package shift

import (
	"fmt"
	"strings"
	"time"
)

// Labels attached to ledger records by Classify.
const (
	Morning      = "morning"
	Evening      = "evening"
	Unclassified = "unclassified"
)

// Range is an inclusive time-of-day window. Start after End means the
// window wraps past midnight.
type Range struct {
	start int
	end   int
}

// NewRange parses "HH:MM" or "HH:MM:SS" bounds into a window.
func NewRange(start, end string) (Range, error) {
	s, err := parseClock(start)
	if err != nil {
		return Range{}, fmt.Errorf("start: %w", err)
	}
	e, err := parseClock(end)
	if err != nil {
		return Range{}, fmt.Errorf("end: %w", err)
	}
	return Range{start: s, end: e}, nil
}

func (r Range) contains(sec int) bool {
	if r.start <= r.end {
		return sec >= r.start && sec <= r.end
	}
	return sec >= r.start || sec <= r.end
}

// Boundaries holds the morning and evening windows for one processing run.
type Boundaries struct {
	Morning Range
	Evening Range
}

// Default splits the day at noon: morning before, evening after.
func Default() Boundaries {
	m, _ := NewRange("00:00:00", "11:59:59")
	e, _ := NewRange("12:00:00", "23:59:59")
	return Boundaries{Morning: m, Evening: e}
}

// Classify maps a timestamp to its shift label. Times outside both
// windows classify as Unclassified; morning wins when windows overlap.
func (b Boundaries) Classify(t time.Time) string {
	sec := t.Hour()*3600 + t.Minute()*60 + t.Second()
	switch {
	case b.Morning.contains(sec):
		return Morning
	case b.Evening.contains(sec):
		return Evening
	}
	return Unclassified
}

func parseClock(s string) (int, error) {
	v := strings.TrimSpace(s)
	layout := "15:04:05"
	if strings.Count(v, ":") == 1 {
		layout = "15:04"
	}
	t, err := time.Parse(layout, v)
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q", v)
	}
	return t.Hour()*3600 + t.Minute()*60 + t.Second(), nil
}
