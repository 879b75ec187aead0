package model

import (
	"encoding/json"
	"time"
)

// Occurrence is one concrete, non-recurring calendar event instance produced
// by the feed ingestion pipeline. The ID is derived purely from content so the
// same logical event keeps the same identity across repeated syncs; see
// internal/ics for the derivation. LinkedAnnotationIDs is the only field the
// rest of the application may write — it must survive re-ingestion unchanged
// for the same ID.
type Occurrence struct {
	ID                  string   `json:"id"`
	Title               string   `json:"title"`
	Date                string   `json:"date"` // calendar day, YYYY-MM-DD, no timezone
	StartTime           string   `json:"startTime"`
	EndTime             string   `json:"endTime,omitempty"`
	Location            string   `json:"location,omitempty"`
	Description         string   `json:"description,omitempty"`
	LinkedAnnotationIDs []string `json:"linkedAnnotationIds,omitempty"`
}

// Note is one timestamped entry inside a class note bundle. Notes are
// append-only: merges never drop a note present on either side.
type Note struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"` // unix ms
}

// UnmarshalJSON accepts the legacy "ts" field name used by older snapshots.
// Alias normalization happens here, at the ingestion boundary, so the merge
// logic only ever sees the canonical shape.
func (n *Note) UnmarshalJSON(data []byte) error {
	type noteAlias Note
	aux := struct {
		*noteAlias
		LegacyTS int64 `json:"ts"`
	}{noteAlias: (*noteAlias)(n)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if n.Timestamp == 0 && aux.LegacyTS != 0 {
		n.Timestamp = aux.LegacyTS
	}
	return nil
}

// ClassNotes is the per-class bundle inside a week: free-form plan text, an
// attached media list, a couple of workflow flags and the append-only notes
// keyed by note id.
type ClassNotes struct {
	Plan            string          `json:"plan,omitempty"`
	Media           []string        `json:"media,omitempty"`
	Organized       bool            `json:"organized,omitempty"`
	AttendanceTaken bool            `json:"attendanceTaken,omitempty"`
	Notes           map[string]Note `json:"notes,omitempty"`
}

// WeekNotes maps class name to its bundle for one week.
type WeekNotes map[string]*ClassNotes

// StampedCount and StampedFlag carry a per-field modification time so merges
// can prefer whichever side recorded the more recent value, independently of
// the aggregate-level lastModified.
type StampedCount struct {
	Count     int   `json:"count"`
	UpdatedAt int64 `json:"updatedAt"` // unix ms
}

type StampedFlag struct {
	Set       bool  `json:"set"`
	UpdatedAt int64 `json:"updatedAt"`
}

type StampedText struct {
	Text      string `json:"text"`
	UpdatedAt int64  `json:"updatedAt"`
}

// SelfCare is the dose/wellness tracking state. Every field is individually
// stamped; the aggregate-level lastModified never decides these.
type SelfCare struct {
	WaterCups StampedCount `json:"waterCups"`
	MedsTaken StampedFlag  `json:"medsTaken"`
	Mood      StampedText  `json:"mood"`
}

// Settings holds the small, last-write-wins preference block.
type Settings struct {
	Theme     string `json:"theme,omitempty"`
	WeekStart string `json:"weekStart,omitempty"`
}

// Aggregate is the full user-data document exchanged whole with the remote
// store and persisted whole locally. LastModified is the coarse
// conflict-resolution signal for everything that is not field-merged
// explicitly (week notes and self-care are).
type Aggregate struct {
	WeekNotes map[string]WeekNotes `json:"weekNotes,omitempty"` // keyed by week-start date YYYY-MM-DD
	SelfCare  SelfCare             `json:"selfCare"`
	Settings  Settings             `json:"settings"`
	Events    []Occurrence         `json:"calendarEvents,omitempty"`

	LastModified int64 `json:"lastModified"` // unix ms; bumped on every local write
}

// UnmarshalJSON accepts the legacy lowercase "selfcare" key written by older
// snapshots alongside the canonical "selfCare".
func (a *Aggregate) UnmarshalJSON(data []byte) error {
	type aggAlias Aggregate
	aux := struct {
		*aggAlias
		LegacySelfCare *SelfCare `json:"selfcare"`
	}{aggAlias: (*aggAlias)(a)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.LegacySelfCare != nil && a.SelfCare == (SelfCare{}) {
		a.SelfCare = *aux.LegacySelfCare
	}
	return nil
}

// NewAggregate returns an empty document stamped with the given time.
func NewAggregate(now time.Time) *Aggregate {
	return &Aggregate{
		WeekNotes:    make(map[string]WeekNotes),
		LastModified: now.UnixMilli(),
	}
}

// Touch bumps the document's modification stamp. Callers must do this before
// any network call so the pull-merge base selection sees the local write.
func (a *Aggregate) Touch(now time.Time) {
	a.LastModified = now.UnixMilli()
}

// Clone returns a deep copy. Merge results are built on clones so the inputs
// stay untouched.
func (a *Aggregate) Clone() *Aggregate {
	if a == nil {
		return nil
	}
	out := *a
	out.WeekNotes = make(map[string]WeekNotes, len(a.WeekNotes))
	for week, wn := range a.WeekNotes {
		out.WeekNotes[week] = wn.Clone()
	}
	out.Events = make([]Occurrence, len(a.Events))
	for i, ev := range a.Events {
		out.Events[i] = ev
		if ev.LinkedAnnotationIDs != nil {
			out.Events[i].LinkedAnnotationIDs = append([]string(nil), ev.LinkedAnnotationIDs...)
		}
	}
	return &out
}

// Clone deep-copies one week's bundles.
func (w WeekNotes) Clone() WeekNotes {
	out := make(WeekNotes, len(w))
	for class, cn := range w {
		out[class] = cn.Clone()
	}
	return out
}

// Clone deep-copies one class bundle.
func (c *ClassNotes) Clone() *ClassNotes {
	if c == nil {
		return nil
	}
	out := *c
	if c.Media != nil {
		out.Media = append([]string(nil), c.Media...)
	}
	if c.Notes != nil {
		out.Notes = make(map[string]Note, len(c.Notes))
		for id, n := range c.Notes {
			out.Notes[id] = n
		}
	}
	return &out
}
