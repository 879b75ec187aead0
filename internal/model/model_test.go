package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoteLegacyTimestampAlias(t *testing.T) {
	var n Note
	require.NoError(t, json.Unmarshal([]byte(`{"id":"n1","text":"x","ts":123}`), &n))
	assert.Equal(t, int64(123), n.Timestamp)

	// Canonical field wins when both are present.
	require.NoError(t, json.Unmarshal([]byte(`{"id":"n1","text":"x","ts":123,"timestamp":456}`), &n))
	assert.Equal(t, int64(456), n.Timestamp)
}

func TestAggregateLegacySelfCareAlias(t *testing.T) {
	var agg Aggregate
	raw := `{"lastModified":1,"selfcare":{"waterCups":{"count":4,"updatedAt":9}}}`
	require.NoError(t, json.Unmarshal([]byte(raw), &agg))
	assert.Equal(t, 4, agg.SelfCare.WaterCups.Count)

	// Canonical key wins over the legacy one.
	raw = `{"lastModified":1,"selfCare":{"waterCups":{"count":7,"updatedAt":9}},"selfcare":{"waterCups":{"count":4,"updatedAt":9}}}`
	agg = Aggregate{}
	require.NoError(t, json.Unmarshal([]byte(raw), &agg))
	assert.Equal(t, 7, agg.SelfCare.WaterCups.Count)
}

func TestAggregateRoundTrip(t *testing.T) {
	agg := NewAggregate(time.UnixMilli(42))
	agg.WeekNotes["2024-01-01"] = WeekNotes{
		"math": &ClassNotes{
			Plan:  "fractions",
			Notes: map[string]Note{"n1": {ID: "n1", Text: "went well", Timestamp: 40}},
		},
	}
	agg.Events = []Occurrence{{
		ID: "evt-1", Title: "Assembly", Date: "2024-01-02", StartTime: "09:00",
		LinkedAnnotationIDs: []string{"n1"},
	}}

	data, err := json.Marshal(agg)
	require.NoError(t, err)

	var back Aggregate
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, *agg, back)
}

func TestCloneIsDeep(t *testing.T) {
	agg := NewAggregate(time.UnixMilli(1))
	agg.WeekNotes["w"] = WeekNotes{"c": &ClassNotes{Media: []string{"a"}, Notes: map[string]Note{}}}
	agg.Events = []Occurrence{{ID: "e", LinkedAnnotationIDs: []string{"x"}}}

	cp := agg.Clone()
	cp.WeekNotes["w"]["c"].Media[0] = "changed"
	cp.WeekNotes["w"]["c"].Notes["new"] = Note{ID: "new"}
	cp.Events[0].LinkedAnnotationIDs[0] = "changed"

	assert.Equal(t, "a", agg.WeekNotes["w"]["c"].Media[0])
	assert.Empty(t, agg.WeekNotes["w"]["c"].Notes)
	assert.Equal(t, "x", agg.Events[0].LinkedAnnotationIDs[0])
}
