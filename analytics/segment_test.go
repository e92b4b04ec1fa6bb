package analytics

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"funnelboard/api/models"
)

// plannerActorCohort builds the literal segmented scenario: 100 Planner
// users (60 save) and 100 Actor users (40 save).
func plannerActorCohort() []models.Event {
	var events []models.Event
	add := func(prefix, intent string, total, saves int) {
		for i := 1; i <= total; i++ {
			user := fmt.Sprintf("%s%d", prefix, i)
			attrs := map[string]string{models.AttrUserIntent: intent}
			events = append(events, ev(user, "pin_view", attrs))
			if i <= saves {
				events = append(events, ev(user, "save", attrs))
			}
		}
	}
	add("p", "Planner", 100, 60)
	add("a", "Actor", 100, 40)
	return events
}

func TestSegmentBreakdownReferenceScenario(t *testing.T) {
	segments, total := SegmentBreakdown(plannerActorCohort(), twoStages(), models.AttrUserIntent, SegmentOptions{})

	require.Len(t, segments, 2)
	assert.Equal(t, 60.0, segments["Planner"].OverallConversionRate)
	assert.Equal(t, 40.0, segments["Actor"].OverallConversionRate)

	assert.Equal(t, 200, total.TotalUsers)
	assert.Equal(t, 100, total.CompletedUsers)
	assert.Equal(t, 50.0, total.OverallConversionRate)
}

func TestSegmentBreakdownDropsMissingAttributeByDefault(t *testing.T) {
	events := []models.Event{
		ev("u1", "pin_view", map[string]string{models.AttrUserIntent: "Planner"}),
		ev("u2", "pin_view", nil),
		ev("u3", "pin_view", map[string]string{models.AttrSurface: "Home"}),
	}
	segments, total := SegmentBreakdown(events, twoStages(), models.AttrUserIntent, SegmentOptions{})

	require.Len(t, segments, 1)
	assert.Equal(t, 1, segments["Planner"].TotalUsers)
	// The total rollup still covers untagged users.
	assert.Equal(t, 3, total.TotalUsers)
}

func TestSegmentBreakdownUnknownBucketOption(t *testing.T) {
	events := []models.Event{
		ev("u1", "pin_view", map[string]string{models.AttrUserIntent: "Planner"}),
		ev("u2", "pin_view", nil),
	}
	segments, _ := SegmentBreakdown(events, twoStages(), models.AttrUserIntent, SegmentOptions{IncludeUnknown: true})

	require.Len(t, segments, 2)
	assert.Equal(t, 1, segments[UnknownSegment].TotalUsers)
}

// A literal "Unknown" attribute value follows the missing-attribute policy:
// dropped by default, merged into the shared bucket with IncludeUnknown.
func TestSegmentBreakdownLiteralUnknownValue(t *testing.T) {
	events := []models.Event{
		ev("u1", "pin_view", map[string]string{models.AttrUserIntent: "Planner"}),
		ev("u2", "pin_view", map[string]string{models.AttrUserIntent: UnknownSegment}),
		ev("u3", "pin_view", nil),
	}

	segments, _ := SegmentBreakdown(events, twoStages(), models.AttrUserIntent, SegmentOptions{})
	require.Len(t, segments, 1)
	assert.NotContains(t, segments, UnknownSegment)

	segments, _ = SegmentBreakdown(events, twoStages(), models.AttrUserIntent, SegmentOptions{IncludeUnknown: true})
	require.Len(t, segments, 2)
	assert.Equal(t, 2, segments[UnknownSegment].TotalUsers)
}

// Guard against "fixing" the segment/total relationship: with partial
// attribute coverage the total must NOT equal the sum across segments.
func TestSegmentTotalsNeedNotReconcile(t *testing.T) {
	events := []models.Event{
		ev("u1", "pin_view", map[string]string{models.AttrUserIntent: "Planner"}),
		ev("u2", "pin_view", nil), // untagged: counted in the total only
		ev("u3", "pin_view", map[string]string{models.AttrUserIntent: "Planner"}),
	}
	segments, total := SegmentBreakdown(events, twoStages(), models.AttrUserIntent, SegmentOptions{})

	segmentSum := 0
	for _, seg := range segments {
		segmentSum += seg.TotalUsers
	}
	assert.Equal(t, 2, segmentSum)
	assert.Equal(t, 3, total.TotalUsers)
	assert.NotEqual(t, segmentSum, total.TotalUsers)
}

func TestSegmentBreakdownUnknownAttributeKey(t *testing.T) {
	events := []models.Event{
		ev("u1", "pin_view", map[string]string{models.AttrUserIntent: "Planner"}),
	}
	segments, total := SegmentBreakdown(events, twoStages(), "nonexistent_key", SegmentOptions{})

	assert.Empty(t, segments)
	assert.Equal(t, 1, total.TotalUsers)
}

func TestSegmentCohortsAreIndependent(t *testing.T) {
	// u1 views as Planner but saves as Actor: neither segment alone sees a
	// complete funnel, though the total does.
	events := []models.Event{
		ev("u1", "pin_view", map[string]string{models.AttrUserIntent: "Planner"}),
		ev("u1", "save", map[string]string{models.AttrUserIntent: "Actor"}),
	}
	segments, total := SegmentBreakdown(events, twoStages(), models.AttrUserIntent, SegmentOptions{})

	assert.Equal(t, 0, segments["Planner"].CompletedUsers)
	assert.Equal(t, 0, segments["Actor"].TotalUsers) // no pin_view tagged Actor
	assert.Equal(t, 1, total.CompletedUsers)
}
