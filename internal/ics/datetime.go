package ics

import (
	"strings"
	"time"
)

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04"
)

// ResolveDateTime converts one ICS date-time value plus its property-key
// parameters into a (date, clock) pair in the viewer's wall-clock frame.
//
// Resolution order:
//  1. VALUE=DATE parameter or a bare 8-digit value → date-only (all-day),
//     clock "00:00".
//  2. YYYYMMDDTHHMMSS ending in Z → UTC instant, projected into loc.
//  3. Otherwise the digits are treated as already-local floating wall clock.
//
// Named-timezone (TZID=) offsets are deliberately not applied; only UTC vs.
// floating is distinguished. This mirrors the upstream behavior and is a
// documented simplification, not a bug.
//
// The function never fails on malformed digit strings — it slices
// defensively and reports ok=false only when there are not even enough
// digits for a calendar day.
func ResolveDateTime(key, value string, loc *time.Location) (date, clock string, ok bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", "", false
	}

	dateOnly := strings.Contains(key, "VALUE=DATE") || isAllDigits(value) && len(value) == 8

	datePart, timePart, hasTime := strings.Cut(value, "T")
	if len(datePart) < 8 || !isAllDigits(datePart[:8]) {
		return "", "", false
	}

	y, m, d := atoi(datePart[0:4]), atoi(datePart[4:6]), atoi(datePart[6:8])

	if dateOnly || !hasTime {
		return time.Date(y, time.Month(m), d, 0, 0, 0, 0, loc).Format(dateLayout), "00:00", true
	}

	utc := strings.HasSuffix(timePart, "Z")
	timePart = strings.TrimSuffix(timePart, "Z")
	// Defensive slicing: short or junk-padded time parts degrade to zeros.
	hh, mm := 0, 0
	if len(timePart) >= 2 && isAllDigits(timePart[:2]) {
		hh = atoi(timePart[:2])
	}
	if len(timePart) >= 4 && isAllDigits(timePart[2:4]) {
		mm = atoi(timePart[2:4])
	}

	if utc {
		t := time.Date(y, time.Month(m), d, hh, mm, 0, 0, time.UTC).In(loc)
		return t.Format(dateLayout), t.Format(clockLayout), true
	}

	// Floating local wall clock: use the digits directly, no conversion.
	t := time.Date(y, time.Month(m), d, hh, mm, 0, 0, loc)
	return t.Format(dateLayout), t.Format(clockLayout), true
}

// resolveDay resolves a value to its calendar day alone, for EXDATE matching
// and UNTIL bounds (both compare by day, never by instant).
func resolveDay(key, value string, loc *time.Location) (time.Time, bool) {
	date, _, ok := ResolveDateTime(key, value, loc)
	if !ok {
		return time.Time{}, false
	}
	day, err := time.ParseInLocation(dateLayout, date, loc)
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// atoi parses a known-digits slice; callers have already validated input.
func atoi(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		n = n*10 + int(s[i]-'0')
	}
	return n
}
