package ics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOccurrenceIDDeterministic(t *testing.T) {
	a := OccurrenceID("Math class", "2024-01-02", "10:00", "11:00", "Room 12")
	b := OccurrenceID("Math class", "2024-01-02", "10:00", "11:00", "Room 12")
	assert.Equal(t, a, b)
}

func TestOccurrenceIDSensitiveToEveryField(t *testing.T) {
	base := OccurrenceID("Math class", "2024-01-02", "10:00", "11:00", "Room 12")
	variants := []string{
		OccurrenceID("Art class", "2024-01-02", "10:00", "11:00", "Room 12"),
		OccurrenceID("Math class", "2024-01-09", "10:00", "11:00", "Room 12"),
		OccurrenceID("Math class", "2024-01-02", "10:30", "11:00", "Room 12"),
		OccurrenceID("Math class", "2024-01-02", "10:00", "11:30", "Room 12"),
		OccurrenceID("Math class", "2024-01-02", "10:00", "11:00", "Room 13"),
	}
	seen := map[string]struct{}{base: {}}
	for _, v := range variants {
		_, dup := seen[v]
		assert.False(t, dup, "collision for %s", v)
		seen[v] = struct{}{}
	}
}

func TestIngestAssignsStableIDs(t *testing.T) {
	text := "BEGIN:VEVENT\nSUMMARY:One off\nDTSTART:20240102T100000\nEND:VEVENT"

	now := day(2024, 1, 1)
	first := Ingest(text, now, testLoc)
	second := Ingest(text, now, testLoc)

	assert.Len(t, first, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.NotEmpty(t, first[0].ID)
}
