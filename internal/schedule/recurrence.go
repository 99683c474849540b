package schedule

import (
	"fmt"
	"strings"
	"time"
)

// Kind is an investigation recurrence cadence.
type Kind string

const (
	KindDaily    Kind = "daily"
	KindWeekly   Kind = "weekly"
	KindBiweekly Kind = "biweekly"
	KindMonthly  Kind = "monthly"
	KindCustom   Kind = "custom"
)

// customEpsilon is the smallest schedulable increment used when a one-shot
// anchor is already in the past.
const customEpsilon = time.Second

func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindDaily:
		return KindDaily, nil
	case KindWeekly:
		return KindWeekly, nil
	case KindBiweekly:
		return KindBiweekly, nil
	case KindMonthly:
		return KindMonthly, nil
	case KindCustom:
		return KindCustom, nil
	}
	return "", fmt.Errorf("unknown schedule kind %q", s)
}

// Recurring reports whether the kind reschedules itself after a completed
// run. Custom fires once unless manually reset.
func (k Kind) Recurring() bool { return k != KindCustom }

// NextRun computes the next fire time strictly after now. All arithmetic is
// done in UTC; inputs in other zones are converted first. The result
// preserves the anchor's time of day (and, for weekly kinds, its weekday;
// for monthly, its day of month clamped to month end).
func NextRun(anchor time.Time, kind Kind, now time.Time) time.Time {
	anchor = anchor.UTC()
	now = now.UTC()

	switch kind {
	case KindDaily:
		return advanceByDays(anchor, now, 1)
	case KindWeekly:
		return advanceByDays(anchor, now, 7)
	case KindBiweekly:
		// Biweekly anchors to the original start, not the last fire:
		// candidates are anchor + n*14d.
		return advanceByDays(anchor, now, 14)
	case KindMonthly:
		return advanceByMonths(anchor, now)
	case KindCustom:
		if anchor.After(now) {
			return anchor
		}
		return now.Add(customEpsilon)
	}
	// Unknown kinds behave like custom so the invariant next > now holds.
	if anchor.After(now) {
		return anchor
	}
	return now.Add(customEpsilon)
}

func advanceByDays(anchor, now time.Time, step int) time.Time {
	if anchor.After(now) {
		return anchor
	}
	stepDur := time.Duration(step) * 24 * time.Hour
	// Jump close to now in one shot, then walk the remainder. The walk also
	// absorbs any leap-second/era oddities the division missed.
	n := int64(now.Sub(anchor) / stepDur)
	candidate := anchor.AddDate(0, 0, int(n)*step)
	for !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, step)
	}
	return candidate
}

func advanceByMonths(anchor, now time.Time) time.Time {
	if anchor.After(now) {
		return anchor
	}
	months := (now.Year()-anchor.Year())*12 + int(now.Month()-anchor.Month())
	if months < 0 {
		months = 0
	}
	candidate := addMonthsClamped(anchor, months)
	for !candidate.After(now) {
		months++
		candidate = addMonthsClamped(anchor, months)
	}
	return candidate
}

// addMonthsClamped advances by calendar months keeping the anchor's day of
// month, clamping to the target month's last day (Jan 31 + 1mo = Feb 28/29).
func addMonthsClamped(anchor time.Time, months int) time.Time {
	year, month, day := anchor.Date()
	targetMonth := time.Month(int(month) + months)
	first := time.Date(year, targetMonth, 1, anchor.Hour(), anchor.Minute(), anchor.Second(), anchor.Nanosecond(), time.UTC)
	last := daysIn(first.Year(), first.Month())
	if day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, anchor.Hour(), anchor.Minute(), anchor.Second(), anchor.Nanosecond(), time.UTC)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
