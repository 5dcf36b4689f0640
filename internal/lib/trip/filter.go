package trip

import (
	"fmt"
	"sort"
)

// IsZero reports whether neither bound is set
func (r DateRange) IsZero() bool {
	return r.Start == "" && r.End == ""
}

// Validate checks bound formats and ordering
func (r DateRange) Validate() error {
	if r.Start != "" && !IsISODate(r.Start) {
		return fmt.Errorf("%w: range start %q is not YYYY-MM-DD", ErrInvalid, r.Start)
	}
	if r.End != "" && !IsISODate(r.End) {
		return fmt.Errorf("%w: range end %q is not YYYY-MM-DD", ErrInvalid, r.End)
	}
	if r.Start != "" && r.End != "" && r.Start > r.End {
		return fmt.Errorf("%w: range start %s is after end %s", ErrInvalid, r.Start, r.End)
	}
	return nil
}

// Contains reports whether the trip's start date falls in the range.
// An empty range contains every trip; otherwise undated trips never match.
func (r DateRange) Contains(t *Trip) bool {
	if r.IsZero() {
		return true
	}
	if t.DateStart == "" {
		return false
	}
	if r.Start != "" && t.DateStart < r.Start {
		return false
	}
	if r.End != "" && t.DateStart > r.End {
		return false
	}
	return true
}

// Filter returns the trips inside the range, preserving order
func Filter(trips []Trip, r DateRange) []Trip {
	if r.IsZero() {
		return trips
	}
	out := make([]Trip, 0, len(trips))
	for i := range trips {
		if r.Contains(&trips[i]) {
			out = append(out, trips[i])
		}
	}
	return out
}

// SpanText describes the start dates covered by trips as "first ~ last".
// It returns "any date" when no trip has a start date and "" for no trips.
func SpanText(trips []Trip) string {
	if len(trips) == 0 {
		return ""
	}
	var dates []string
	for i := range trips {
		if trips[i].DateStart != "" {
			dates = append(dates, trips[i].DateStart)
		}
	}
	if len(dates) == 0 {
		return "any date"
	}
	sort.Strings(dates)
	return dates[0] + " ~ " + dates[len(dates)-1]
}
