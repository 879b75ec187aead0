package merge

import (
	"github.com/rs/zerolog/log"

	"plannersync/internal/model"
)

// Aggregates reconciles the local and remote copies of the document. The side
// with the later lastModified is the base for everything that is not
// field-merged; week notes and self-care are always merged from both sides
// because those areas are append/never-lose by design. Inputs are not
// mutated.
func Aggregates(local, remote *model.Aggregate) *model.Aggregate {
	if local == nil {
		return remote.Clone()
	}
	if remote == nil {
		return local.Clone()
	}

	base, other := local, remote
	if remote.LastModified > local.LastModified {
		base, other = remote, local
	}

	out := base.Clone()
	out.WeekNotes = AllWeekNotes(local.WeekNotes, remote.WeekNotes)
	out.SelfCare = SelfCare(local.SelfCare, remote.SelfCare)

	log.Debug().
		Int64("base", base.LastModified).
		Int64("other", other.LastModified).
		Int("weeks", len(out.WeekNotes)).
		Msg("aggregates merged")
	return out
}

// AllWeekNotes unions the two week-note collections week by week.
func AllWeekNotes(a, b map[string]model.WeekNotes) map[string]model.WeekNotes {
	out := make(map[string]model.WeekNotes, len(a)+len(b))
	for week, wn := range a {
		out[week] = wn.Clone()
	}
	for week, wn := range b {
		if existing, ok := out[week]; ok {
			out[week] = WeekNotes(existing, wn)
			continue
		}
		out[week] = wn.Clone()
	}
	return out
}

// WeekNotes merges two bundles for the same week, class by class. Nothing
// present on either side is ever lost.
func WeekNotes(a, b model.WeekNotes) model.WeekNotes {
	out := make(model.WeekNotes, len(a)+len(b))
	for class, cn := range a {
		out[class] = cn.Clone()
	}
	for class, cn := range b {
		if existing, ok := out[class]; ok {
			out[class] = classNotes(existing, cn)
			continue
		}
		out[class] = cn.Clone()
	}
	return out
}

// classNotes merges one class bundle: notes are unioned with same-id
// later-timestamp wins; plan text, media lists and the workflow flags use
// prefer-richer rules instead of last-write-wins.
func classNotes(a, b *model.ClassNotes) *model.ClassNotes {
	if a == nil {
		return b.Clone()
	}
	if b == nil {
		return a.Clone()
	}

	out := &model.ClassNotes{
		Plan:            richerText(a.Plan, b.Plan),
		Media:           unionStrings(a.Media, b.Media),
		Organized:       a.Organized || b.Organized,
		AttendanceTaken: a.AttendanceTaken || b.AttendanceTaken,
		Notes:           make(map[string]model.Note, len(a.Notes)+len(b.Notes)),
	}
	for id, n := range a.Notes {
		out.Notes[id] = n
	}
	for id, n := range b.Notes {
		if existing, ok := out.Notes[id]; ok && existing.Timestamp >= n.Timestamp {
			continue
		}
		out.Notes[id] = n
	}
	return out
}

// SelfCare merges per field: whichever side recorded the more recent stamp
// wins for that field alone.
func SelfCare(a, b model.SelfCare) model.SelfCare {
	out := a
	if b.WaterCups.UpdatedAt > a.WaterCups.UpdatedAt {
		out.WaterCups = b.WaterCups
	}
	if b.MedsTaken.UpdatedAt > a.MedsTaken.UpdatedAt {
		out.MedsTaken = b.MedsTaken
	}
	if b.Mood.UpdatedAt > a.Mood.UpdatedAt {
		out.Mood = b.Mood
	}
	return out
}

// richerText prefers the non-empty side; when both carry text the longer one
// is kept (ties go to the first argument, the local side).
func richerText(a, b string) string {
	if len(b) > len(a) {
		return b
	}
	return a
}

// unionStrings keeps a's order and appends anything from b not already seen.
func unionStrings(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(a))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range a {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	for _, s := range b {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
