package ics

import (
	"time"

	"github.com/rs/zerolog/log"

	"plannersync/internal/model"
)

// Ingest runs the full pipeline over one raw feed: parse, expand recurrences
// into the default window around now, and assign stable identities. The
// result is the flat occurrence list for this feed — a full-replace view, not
// an append log. Malformed input degrades to fewer or no occurrences, never
// to an error.
func Ingest(text string, now time.Time, loc *time.Location) []model.Occurrence {
	window := DefaultWindow(now)

	var out []model.Occurrence
	for _, comp := range Parse(text, loc) {
		if comp.RRule != "" {
			out = append(out, Expand(comp, window, loc)...)
			continue
		}
		date, clock, ok := ResolveDateTime(comp.Start.Key, comp.Start.Value, loc)
		if !ok {
			continue
		}
		endClock := ""
		if comp.End.Value != "" {
			if _, clk, ok := ResolveDateTime(comp.End.Key, comp.End.Value, loc); ok {
				endClock = clk
			}
		}
		out = append(out, model.Occurrence{
			Title:       comp.Summary,
			Date:        date,
			StartTime:   clock,
			EndTime:     endClock,
			Location:    comp.Location,
			Description: comp.Description,
		})
	}

	for i := range out {
		o := &out[i]
		o.ID = OccurrenceID(o.Title, o.Date, o.StartTime, o.EndTime, o.Location)
	}

	log.Debug().Int("occurrences", len(out)).Msg("feed ingestion completed")
	return out
}
