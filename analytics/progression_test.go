package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"funnelboard/api/models"
)

func threeStages() []models.Stage {
	return []models.Stage{
		{Order: 1, Name: "View Pin", EventType: "pin_view"},
		{Order: 2, Name: "Save Pin", EventType: "save"},
		{Order: 3, Name: "Visit Site", EventType: "outbound_click"},
	}
}

func ev(userID, eventType string, attrs map[string]string) models.Event {
	return models.Event{
		UserID:     userID,
		EventType:  eventType,
		Timestamp:  time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Attributes: attrs,
	}
}

func TestStageReachEmptyCohort(t *testing.T) {
	reached := StageReach(nil, threeStages())
	assert.Empty(t, reached)
}

func TestStageReachFullProgression(t *testing.T) {
	events := []models.Event{
		ev("u1", "pin_view", nil),
		ev("u1", "save", nil),
		ev("u1", "outbound_click", nil),
	}
	reached := StageReach(events, threeStages())
	require.Len(t, reached, 1)
	assert.Equal(t, 3, reached["u1"])
}

func TestStageReachPartialProgression(t *testing.T) {
	events := []models.Event{
		ev("u1", "pin_view", nil),
		ev("u1", "save", nil),
		ev("u2", "pin_view", nil),
	}
	reached := StageReach(events, threeStages())
	assert.Equal(t, map[string]int{"u1": 2, "u2": 1}, reached)
}

func TestStageReachRequiresEarlierStages(t *testing.T) {
	// u1 fires the stage-3 event without stage 1 and 2: excluded entirely.
	// u2 fires stages 1 and 3 but skips stage 2: counts for stage 1 only.
	events := []models.Event{
		ev("u1", "outbound_click", nil),
		ev("u2", "pin_view", nil),
		ev("u2", "outbound_click", nil),
	}
	reached := StageReach(events, threeStages())
	assert.Equal(t, map[string]int{"u2": 1}, reached)
}

func TestStageReachIgnoresEventOrder(t *testing.T) {
	// Set semantics only: a save recorded before the pin view still counts.
	events := []models.Event{
		ev("u1", "save", nil),
		ev("u1", "pin_view", nil),
	}
	reached := StageReach(events, threeStages())
	assert.Equal(t, 2, reached["u1"])
}

func TestStageReachDuplicateEventsAdvanceOnce(t *testing.T) {
	events := []models.Event{
		ev("u1", "pin_view", nil),
		ev("u1", "pin_view", nil),
		ev("u1", "pin_view", nil),
	}
	reached := StageReach(events, threeStages())
	assert.Equal(t, 1, reached["u1"])
}

func TestStageReachRepeatedEventTypeAcrossStages(t *testing.T) {
	// Stage event types need not be distinct; one matching event satisfies
	// every stage bound to that type.
	stages := []models.Stage{
		{Order: 1, Name: "First Look", EventType: "pin_view"},
		{Order: 2, Name: "Second Look", EventType: "pin_view"},
	}
	events := []models.Event{ev("u1", "pin_view", nil)}
	reached := StageReach(events, stages)
	assert.Equal(t, 2, reached["u1"])
}

func TestStageReachMonotonicity(t *testing.T) {
	stages := threeStages()
	events := []models.Event{
		ev("u1", "pin_view", nil), ev("u1", "save", nil), ev("u1", "outbound_click", nil),
		ev("u2", "pin_view", nil), ev("u2", "save", nil),
		ev("u3", "pin_view", nil),
		ev("u4", "save", nil), ev("u4", "outbound_click", nil),
	}
	metrics := Aggregate(StageReach(events, stages), stages)
	for i := 1; i < len(metrics.Stages); i++ {
		assert.GreaterOrEqual(t, metrics.Stages[i-1].Users, metrics.Stages[i].Users,
			"users at stage %d must not exceed stage %d", i+1, i)
	}
}
