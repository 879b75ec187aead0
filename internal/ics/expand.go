package ics

import (
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"plannersync/internal/model"
)

const (
	// windowBefore/windowAfter define the fixed expansion window around "now".
	windowBefore = 7 * 24 * time.Hour
	windowAfter  = 90 * 24 * time.Hour

	// maxIterations bounds unbounded or misconfigured rules; it stands in for
	// COUNT when the rule does not carry one.
	maxIterations = 1000
)

// Window is the inclusive day range occurrences are emitted into.
type Window struct {
	Start time.Time
	End   time.Time
}

// DefaultWindow is the fixed policy: 7 days before now through 90 days after.
func DefaultWindow(now time.Time) Window {
	return Window{Start: now.Add(-windowBefore), End: now.Add(windowAfter)}
}

// rule is the parsed subset of RRULE the expander honors.
type rule struct {
	freq     string
	interval int
	count    int // 0 = absent
	until    time.Time
	hasUntil bool
	byDay    time.Weekday
	hasByDay bool
	setPos   int // 0 = absent
}

var weekdays = map[string]time.Weekday{
	"SU": time.Sunday, "MO": time.Monday, "TU": time.Tuesday, "WE": time.Wednesday,
	"TH": time.Thursday, "FR": time.Friday, "SA": time.Saturday,
}

func parseRule(raw string, loc *time.Location) rule {
	r := rule{interval: 1}
	for _, part := range strings.Split(raw, ";") {
		key, value, found := strings.Cut(part, "=")
		if !found {
			continue
		}
		switch strings.ToUpper(strings.TrimSpace(key)) {
		case "FREQ":
			r.freq = strings.ToUpper(strings.TrimSpace(value))
		case "INTERVAL":
			if n, err := strconv.Atoi(value); err == nil && n > 0 {
				r.interval = n
			}
		case "COUNT":
			if n, err := strconv.Atoi(value); err == nil && n > 0 {
				r.count = n
			}
		case "UNTIL":
			if day, ok := resolveDay("", value, loc); ok {
				r.until = day
				r.hasUntil = true
			}
		case "BYDAY":
			// Only the bare two-letter form is honored; the Nth-weekday
			// position comes from BYSETPOS.
			if wd, ok := weekdays[strings.ToUpper(strings.TrimSpace(value))]; ok {
				r.byDay = wd
				r.hasByDay = true
			}
		case "BYSETPOS":
			if n, err := strconv.Atoi(value); err == nil {
				r.setPos = n
			}
		}
	}
	return r
}

// Expand enumerates concrete occurrence skeletons for one recurring
// component, bounded by the window. The skeletons copy title, time, location
// and description from the parent and do not yet carry identity.
//
// A malformed or unrecognized FREQ yields no occurrences: the engine fails
// closed. EXDATE matches by calendar day only.
func Expand(c RawComponent, w Window, loc *time.Location) []model.Occurrence {
	if c.RRule == "" {
		return nil
	}
	r := parseRule(c.RRule, loc)

	startDay, ok := resolveDay(c.Start.Key, c.Start.Value, loc)
	if !ok {
		return nil
	}
	_, startClock, _ := ResolveDateTime(c.Start.Key, c.Start.Value, loc)
	endClock := ""
	if c.End.Value != "" {
		if _, clk, ok := ResolveDateTime(c.End.Key, c.End.Value, loc); ok {
			endClock = clk
		}
	}

	excluded := make(map[string]struct{}, len(c.ExDates))
	for _, ex := range c.ExDates {
		if day, ok := resolveDay("", ex, loc); ok {
			excluded[day.Format(dateLayout)] = struct{}{}
		}
	}

	limit := r.count
	if limit <= 0 || limit > maxIterations {
		limit = maxIterations
	}

	emit := func(out []model.Occurrence, day time.Time) []model.Occurrence {
		date := day.Format(dateLayout)
		if _, skip := excluded[date]; skip {
			return out
		}
		if day.Before(truncateDay(w.Start, loc)) {
			return out
		}
		return append(out, model.Occurrence{
			Title:       c.Summary,
			Date:        date,
			StartTime:   startClock,
			EndTime:     endClock,
			Location:    c.Location,
			Description: c.Description,
		})
	}

	windowEnd := truncateDay(w.End, loc)
	pastBounds := func(day time.Time) bool {
		if day.After(windowEnd) {
			return true
		}
		return r.hasUntil && day.After(r.until)
	}

	var out []model.Occurrence

	if r.freq == "MONTHLY" && r.hasByDay && r.setPos != 0 {
		// Nth (or last) weekday of each candidate month.
		month := time.Date(startDay.Year(), startDay.Month(), 1, 0, 0, 0, 0, loc)
		for i := 0; i < limit; i++ {
			day, exists := nthWeekdayOfMonth(month, r.byDay, r.setPos, loc)
			month = month.AddDate(0, r.interval, 0)
			if !exists {
				continue
			}
			if day.Before(startDay) {
				continue
			}
			if pastBounds(day) {
				break
			}
			out = emit(out, day)
		}
		return out
	}

	step := func(day time.Time) time.Time {
		switch r.freq {
		case "DAILY":
			return day.AddDate(0, 0, r.interval)
		case "WEEKLY":
			return day.AddDate(0, 0, 7*r.interval)
		case "MONTHLY":
			return day.AddDate(0, r.interval, 0)
		case "YEARLY":
			return day.AddDate(r.interval, 0, 0)
		}
		return day
	}

	switch r.freq {
	case "DAILY", "WEEKLY", "MONTHLY", "YEARLY":
	default:
		log.Debug().Str("rrule", c.RRule).Msg("unrecognized FREQ, skipping expansion")
		return nil
	}

	day := startDay
	for i := 0; i < limit; i++ {
		if pastBounds(day) {
			break
		}
		out = emit(out, day)
		day = step(day)
	}
	return out
}

// nthWeekdayOfMonth returns the pos-th occurrence of wd inside the month that
// contains monthStart (pos = -1 means the last one). exists is false when the
// month has no such day.
func nthWeekdayOfMonth(monthStart time.Time, wd time.Weekday, pos int, loc *time.Location) (time.Time, bool) {
	first := time.Date(monthStart.Year(), monthStart.Month(), 1, 0, 0, 0, 0, loc)
	nextMonth := first.AddDate(0, 1, 0)

	if pos == -1 {
		for day := nextMonth.AddDate(0, 0, -1); !day.Before(first); day = day.AddDate(0, 0, -1) {
			if day.Weekday() == wd {
				return day, true
			}
		}
		return time.Time{}, false
	}
	if pos < 1 {
		return time.Time{}, false
	}

	n := 0
	for day := first; day.Before(nextMonth); day = day.AddDate(0, 0, 1) {
		if day.Weekday() == wd {
			n++
			if n == pos {
				return day, true
			}
		}
	}
	return time.Time{}, false
}

func truncateDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
