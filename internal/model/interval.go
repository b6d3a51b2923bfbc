package model

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// DateLayout is the wire format for reservation dates.
const DateLayout = "2006-01-02"

// ErrInvalidInterval is returned when an interval does not satisfy start < end.
var ErrInvalidInterval = errors.New("start date must be before end date")

// Interval is a half-open range of calendar days [Start, End).  The end day
// itself is not occupied, so a stay ending on day N and another starting on
// day N do not collide.  Both bounds are kept at UTC midnight.
type Interval struct {
	Start time.Time `json:"start_date"`
	End   time.Time `json:"end_date"`
}

// NewInterval normalizes start and end to UTC calendar days and validates
// that start < end.
func NewInterval(start, end time.Time) (Interval, error) {
	iv := Interval{Start: truncateDay(start), End: truncateDay(end)}
	if !iv.Start.Before(iv.End) {
		return Interval{}, ErrInvalidInterval
	}
	return iv, nil
}

// ParseInterval parses both bounds with ParseDate and builds the interval.
func ParseInterval(start, end string) (Interval, error) {
	s, err := ParseDate(start)
	if err != nil {
		return Interval{}, err
	}
	e, err := ParseDate(end)
	if err != nil {
		return Interval{}, err
	}
	return NewInterval(s, e)
}

// ParseDate accepts YYYY-MM-DD or an RFC3339 timestamp.  Timestamps are
// reduced to their UTC calendar day.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return truncateDay(t), nil
}

// Overlaps reports whether a and b share at least one occupied day.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// Overlaps is the method form of the package-level Overlaps.
func (iv Interval) Overlaps(other Interval) bool { return Overlaps(iv, other) }

// Nights returns the number of nights covered by the interval.
func (iv Interval) Nights() int {
	return int(iv.End.Sub(iv.Start).Hours() / 24)
}

// Valid reports whether the interval satisfies start < end.
func (iv Interval) Valid() bool { return iv.Start.Before(iv.End) }

func (iv Interval) String() string {
	return "[" + iv.Start.Format(DateLayout) + ", " + iv.End.Format(DateLayout) + ")"
}

type intervalJSON struct {
	Start string `json:"start_date"`
	End   string `json:"end_date"`
}

// MarshalJSON renders both bounds as YYYY-MM-DD.
func (iv Interval) MarshalJSON() ([]byte, error) {
	return json.Marshal(intervalJSON{Start: iv.Start.Format(DateLayout), End: iv.End.Format(DateLayout)})
}

// UnmarshalJSON parses bounds with ParseDate.  It does not enforce start < end;
// callers validate with Valid or NewInterval.
func (iv *Interval) UnmarshalJSON(b []byte) error {
	var raw intervalJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	s, err := ParseDate(raw.Start)
	if err != nil {
		return err
	}
	e, err := ParseDate(raw.End)
	if err != nil {
		return err
	}
	iv.Start, iv.End = s, e
	return nil
}

func truncateDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
