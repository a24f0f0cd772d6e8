// Package timeengine parses HH:MM wall-clock times and builds the
// half-open minute intervals the rest of the scheduler reasons about.
package timeengine

import (
	"strconv"
	"strings"

	"github.com/radsched/radsched/pkg/errors"
)

// MinutesPerDay is the length of a calendar day in minutes.
const MinutesPerDay = 24 * 60

// ParseHHMM parses "HH:MM" into minutes-since-midnight in [0, 1440). It
// fails with a TimeParseError-coded *errors.AppError on malformed input.
func ParseHHMM(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, errors.New(errors.CodeTimeParseError, "malformed HH:MM value").WithField("value", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeTimeParseError, "malformed hour component").WithField("value", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeTimeParseError, "malformed minute component").WithField("value", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, errors.New(errors.CodeTimeParseError, "HH:MM out of range").WithField("value", s)
	}
	return h*60 + m, nil
}

// Interval is a half-open minute range [Start, End) anchored at minute 0 of
// some reference date. Minutes beyond 1440 fall on the following day(s).
type Interval struct {
	Start int
	End   int
}

// Overlaps reports whether two intervals intersect. Touching intervals
// (a.End == b.Start) never overlap.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start < other.End && other.Start < iv.End
}

// Duration returns the interval's length in minutes.
func (iv Interval) Duration() int {
	return iv.End - iv.Start
}

// BuildInterval constructs the half-open interval for a slot's start/end
// time plus its endDayOffset, per the duration rule:
// duration = endMin - startMin + endDayOffset*1440; if endDayOffset == 0
// and endMin < startMin the shift is treated as crossing midnight (add
// 1440 once).
func BuildInterval(startHHMM, endHHMM string, endDayOffset int) (Interval, error) {
	startMin, err := ParseHHMM(startHHMM)
	if err != nil {
		return Interval{}, err
	}
	endMin, err := ParseHHMM(endHHMM)
	if err != nil {
		return Interval{}, err
	}

	duration := endMin - startMin + endDayOffset*MinutesPerDay
	if endDayOffset == 0 && endMin < startMin {
		duration += MinutesPerDay
	}

	return Interval{Start: startMin, End: startMin + duration}, nil
}

// Offset returns iv shifted by dayIndex whole days, for comparing intervals
// that live on different calendar dates in one absolute minute axis.
func (iv Interval) Offset(dayIndex int) Interval {
	shift := dayIndex * MinutesPerDay
	return Interval{Start: iv.Start + shift, End: iv.End + shift}
}
