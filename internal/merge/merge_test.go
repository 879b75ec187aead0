package merge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plannersync/internal/model"
)

func aggregateWithNote(lastModified int64, noteID, text string, ts int64) *model.Aggregate {
	agg := model.NewAggregate(time.UnixMilli(lastModified))
	agg.WeekNotes["2024-01-01"] = model.WeekNotes{
		"math": &model.ClassNotes{
			Notes: map[string]model.Note{
				noteID: {ID: noteID, Text: text, Timestamp: ts},
			},
		},
	}
	return agg
}

func TestMergeIdempotent(t *testing.T) {
	agg := aggregateWithNote(1000, "n1", "hello", 900)
	agg.SelfCare.WaterCups = model.StampedCount{Count: 3, UpdatedAt: 800}

	out := Aggregates(agg, agg.Clone())

	assert.Equal(t, agg.WeekNotes, out.WeekNotes)
	assert.Equal(t, agg.SelfCare, out.SelfCare)
	assert.Equal(t, agg.LastModified, out.LastModified)
}

func TestMergeNeverLosesNotes(t *testing.T) {
	local := aggregateWithNote(1000, "a", "local only", 900)
	cloud := aggregateWithNote(2000, "b", "cloud only", 950)

	out := Aggregates(local, cloud)

	notes := out.WeekNotes["2024-01-01"]["math"].Notes
	require.Len(t, notes, 2)
	assert.Equal(t, "local only", notes["a"].Text)
	assert.Equal(t, "cloud only", notes["b"].Text)
}

func TestMergeSameNoteLaterTimestampWins(t *testing.T) {
	local := aggregateWithNote(1000, "n1", "older", 900)
	cloud := aggregateWithNote(500, "n1", "newer", 1200)

	out := Aggregates(local, cloud)
	assert.Equal(t, "newer", out.WeekNotes["2024-01-01"]["math"].Notes["n1"].Text)

	// Direction must not matter.
	out = Aggregates(cloud, local)
	assert.Equal(t, "newer", out.WeekNotes["2024-01-01"]["math"].Notes["n1"].Text)
}

func TestMergePrefersRicherBundleFields(t *testing.T) {
	a := &model.ClassNotes{Plan: "short", Media: []string{"a.jpg"}, Organized: true}
	b := &model.ClassNotes{Plan: "a much longer plan", Media: []string{"a.jpg", "b.jpg"}, AttendanceTaken: true}

	out := classNotes(a, b)
	assert.Equal(t, "a much longer plan", out.Plan)
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, out.Media)
	assert.True(t, out.Organized)
	assert.True(t, out.AttendanceTaken)

	// Non-empty beats empty regardless of side.
	out = classNotes(&model.ClassNotes{}, &model.ClassNotes{Plan: "only side"})
	assert.Equal(t, "only side", out.Plan)
}

func TestMergeSelfCarePerField(t *testing.T) {
	a := model.SelfCare{
		WaterCups: model.StampedCount{Count: 5, UpdatedAt: 2000},
		MedsTaken: model.StampedFlag{Set: false, UpdatedAt: 1000},
	}
	b := model.SelfCare{
		WaterCups: model.StampedCount{Count: 2, UpdatedAt: 1500},
		MedsTaken: model.StampedFlag{Set: true, UpdatedAt: 1800},
		Mood:      model.StampedText{Text: "fine", UpdatedAt: 100},
	}

	out := SelfCare(a, b)
	assert.Equal(t, 5, out.WaterCups.Count)   // a is newer for this field
	assert.True(t, out.MedsTaken.Set)         // b is newer for this field
	assert.Equal(t, "fine", out.Mood.Text)    // only b ever set it
}

func TestMergeBaseSelectionByLastModified(t *testing.T) {
	local := model.NewAggregate(time.UnixMilli(1000))
	local.Settings = model.Settings{Theme: "dark"}
	cloud := model.NewAggregate(time.UnixMilli(2000))
	cloud.Settings = model.Settings{Theme: "light"}
	cloud.Events = []model.Occurrence{{ID: "e1", Title: "From cloud", Date: "2024-01-02", StartTime: "10:00"}}

	out := Aggregates(local, cloud)
	assert.Equal(t, "light", out.Settings.Theme)
	require.Len(t, out.Events, 1)

	// Flip recency: the local side becomes the base.
	local.LastModified = 3000
	out = Aggregates(local, cloud)
	assert.Equal(t, "dark", out.Settings.Theme)
}

func TestMergeInputsUntouched(t *testing.T) {
	local := aggregateWithNote(1000, "a", "local", 900)
	cloud := aggregateWithNote(2000, "b", "cloud", 950)

	_ = Aggregates(local, cloud)

	assert.Len(t, local.WeekNotes["2024-01-01"]["math"].Notes, 1)
	assert.Len(t, cloud.WeekNotes["2024-01-01"]["math"].Notes, 1)
}

func TestMergeNilSides(t *testing.T) {
	agg := aggregateWithNote(1000, "a", "x", 900)
	assert.Equal(t, agg.WeekNotes, Aggregates(nil, agg).WeekNotes)
	assert.Equal(t, agg.WeekNotes, Aggregates(agg, nil).WeekNotes)
}
