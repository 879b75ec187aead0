package ics

import (
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// RawComponent is the intermediate parse result of one VEVENT block. It is
// owned by the parse/expand pipeline and never persisted.
type RawComponent struct {
	Summary     string
	Description string
	Location    string
	RRule       string

	// Start/End keep the full property name (including parameters such as
	// ;VALUE=DATE or ;TZID=...) next to the raw value so date/time resolution
	// can see the value typing.
	Start RawValue
	End   RawValue

	// ExDates holds the raw excluded date values, one per entry.
	ExDates []string
}

// RawValue is one property occurrence: its key as written (with parameters)
// and its unfolded value.
type RawValue struct {
	Key   string
	Value string
}

// Parse turns raw feed text into a list of raw VEVENT components. The input
// is untrusted and possibly malformed: the parser never fails, it degrades to
// partial or empty output. A component is kept only if it carries a summary
// and a resolvable start date; everything else is silently discarded.
//
// loc is the viewer's wall-clock frame used to check start-date resolvability
// (and later by expansion); pass time.Local outside of tests.
func Parse(text string, loc *time.Location) []RawComponent {
	lines := unfold(text)

	var out []RawComponent
	var cur *RawComponent

	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "BEGIN:VEVENT"):
			cur = &RawComponent{}
		case strings.HasPrefix(line, "END:VEVENT"):
			if cur == nil {
				continue
			}
			if cur.Summary != "" {
				if _, _, ok := ResolveDateTime(cur.Start.Key, cur.Start.Value, loc); ok {
					out = append(out, *cur)
				}
			}
			cur = nil
		case cur == nil:
			// Outside any VEVENT; calendar-level properties are ignored.
		default:
			applyProperty(cur, line)
		}
	}

	log.Debug().Int("components", len(out)).Msg("ics parse completed")
	return out
}

// applyProperty matches recognized properties by prefix so parameter suffixes
// like ";VALUE=DATE" or ";TZID=..." are tolerated. Unrecognized properties
// are ignored.
func applyProperty(c *RawComponent, line string) {
	key, value, found := strings.Cut(line, ":")
	if !found {
		return
	}
	switch {
	case strings.HasPrefix(key, "SUMMARY"):
		c.Summary = unescapeText(value)
	case strings.HasPrefix(key, "DTSTART"):
		c.Start = RawValue{Key: key, Value: strings.TrimSpace(value)}
	case strings.HasPrefix(key, "DTEND"):
		c.End = RawValue{Key: key, Value: strings.TrimSpace(value)}
	case strings.HasPrefix(key, "RRULE"):
		c.RRule = strings.TrimSpace(value)
	case strings.HasPrefix(key, "EXDATE"):
		// EXDATE may carry several comma-separated values per line and may
		// appear on multiple lines.
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				c.ExDates = append(c.ExDates, part)
			}
		}
	case strings.HasPrefix(key, "LOCATION"):
		c.Location = unescapeText(value)
	case strings.HasPrefix(key, "DESCRIPTION"):
		c.Description = unescapeText(value)
	}
}

// unfold splits the feed into logical lines: any physical line beginning with
// a space or tab continues the previous line and is concatenated after
// stripping the leading whitespace character.
func unfold(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(raw))
	for _, line := range raw {
		if len(line) > 0 && (line[0] == ' ' || line[0] == '\t') && len(out) > 0 {
			out[len(out)-1] += line[1:]
			continue
		}
		line = strings.TrimRight(line, "\r")
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// unescapeText resolves the text-field escapes defined by the format.
func unescapeText(s string) string {
	r := strings.NewReplacer(`\n`, "\n", `\N`, "\n", `\,`, ",", `\;`, ";", `\\`, `\`)
	return r.Replace(s)
}
