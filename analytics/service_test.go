package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"funnelboard/api/models"
)

type fakeEventSource struct {
	events     []models.Event
	err        error
	fetchCalls int

	lastEventTypes []string
	lastFilters    map[string][]string
}

func (f *fakeEventSource) FetchFunnelEvents(ctx context.Context, projectID string, eventTypes []string, start, end time.Time, filters map[string][]string) ([]models.Event, error) {
	f.fetchCalls++
	f.lastEventTypes = eventTypes
	f.lastFilters = filters
	if f.err != nil {
		return nil, f.err
	}
	return f.events, nil
}

func testFunnel() *models.Funnel {
	return &models.Funnel{
		ID:        "funnel-1",
		ProjectID: "project-1",
		Name:      "Pin to Save",
		Stages: []models.Stage{
			{Order: 1, Name: "View Pin", EventType: "pin_view"},
			{Order: 2, Name: "Save Pin", EventType: "save"},
		},
	}
}

func testQuery() Query {
	return Query{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	}
}

func TestComputeInvalidDateRangeSkipsFetch(t *testing.T) {
	source := &fakeEventSource{}
	svc := NewService(source)

	q := Query{
		Start: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	_, err := svc.Compute(context.Background(), testFunnel(), q)

	require.ErrorIs(t, err, ErrInvalidDateRange)
	assert.Zero(t, source.fetchCalls, "no fetch may happen for an invalid range")
}

func TestComputeInvalidFunnelSkipsFetch(t *testing.T) {
	source := &fakeEventSource{}
	svc := NewService(source)

	funnel := testFunnel()
	funnel.Stages = nil
	_, err := svc.Compute(context.Background(), funnel, testQuery())

	require.ErrorIs(t, err, models.ErrInvalidFunnelDefinition)
	assert.Zero(t, source.fetchCalls)
}

func TestComputeFetchFailurePropagated(t *testing.T) {
	upstream := errors.New("clickhouse unreachable")
	svc := NewService(&fakeEventSource{err: upstream})

	_, err := svc.Compute(context.Background(), testFunnel(), testQuery())
	require.ErrorIs(t, err, upstream)
}

func TestComputeAggregateResult(t *testing.T) {
	source := &fakeEventSource{events: []models.Event{
		ev("u1", "pin_view", nil),
		ev("u1", "save", nil),
		ev("u2", "pin_view", nil),
	}}
	svc := NewService(source)

	result, err := svc.Compute(context.Background(), testFunnel(), testQuery())
	require.NoError(t, err)

	agg, ok := result.(models.AggregateResult)
	require.True(t, ok, "expected AggregateResult, got %T", result)
	assert.Equal(t, "funnel-1", agg.FunnelID)
	assert.Equal(t, "Pin to Save", agg.FunnelName)
	assert.Equal(t, models.DateRange{Start: "2024-01-01", End: "2024-01-31"}, agg.DateRange)
	assert.Equal(t, 2, agg.TotalUsers)
	assert.Equal(t, 1, agg.CompletedUsers)
	assert.Equal(t, 50.0, agg.OverallConversionRate)
	assert.Equal(t, []string{"pin_view", "save"}, source.lastEventTypes)
}

func TestComputeSegmentedResult(t *testing.T) {
	source := &fakeEventSource{events: []models.Event{
		ev("u1", "pin_view", map[string]string{models.AttrUserIntent: "Planner"}),
		ev("u1", "save", map[string]string{models.AttrUserIntent: "Planner"}),
		ev("u2", "pin_view", map[string]string{models.AttrUserIntent: "Actor"}),
	}}
	svc := NewService(source)

	q := testQuery()
	q.SegmentBy = models.AttrUserIntent
	result, err := svc.Compute(context.Background(), testFunnel(), q)
	require.NoError(t, err)

	seg, ok := result.(models.SegmentedResult)
	require.True(t, ok, "expected SegmentedResult, got %T", result)
	assert.Equal(t, models.AttrUserIntent, seg.SegmentBy)
	require.Len(t, seg.Segments, 2)
	assert.Equal(t, 100.0, seg.Segments["Planner"].OverallConversionRate)
	assert.Equal(t, 0.0, seg.Segments["Actor"].OverallConversionRate)
	assert.Equal(t, 2, seg.Total.TotalUsers)
}

func TestComputeUnknownSegmentKeyYieldsEmptySegments(t *testing.T) {
	source := &fakeEventSource{events: []models.Event{
		ev("u1", "pin_view", nil),
	}}
	svc := NewService(source)

	q := testQuery()
	q.SegmentBy = "no_such_attribute"
	result, err := svc.Compute(context.Background(), testFunnel(), q)
	require.NoError(t, err)

	seg := result.(models.SegmentedResult)
	assert.Empty(t, seg.Segments)
	assert.Equal(t, 1, seg.Total.TotalUsers)
}

func TestComputeEmptyCohortYieldsZeroMetrics(t *testing.T) {
	svc := NewService(&fakeEventSource{})

	result, err := svc.Compute(context.Background(), testFunnel(), testQuery())
	require.NoError(t, err)

	agg := result.(models.AggregateResult)
	assert.Equal(t, 0, agg.TotalUsers)
	assert.Equal(t, 0, agg.CompletedUsers)
	assert.Equal(t, 0.0, agg.OverallConversionRate)
	require.Len(t, agg.Stages, 2)
	for _, stage := range agg.Stages {
		assert.Equal(t, 0, stage.Users)
	}
}

func TestComputeIdempotent(t *testing.T) {
	source := &fakeEventSource{events: plannerActorCohort()}
	svc := NewService(source)

	q := testQuery()
	q.SegmentBy = models.AttrUserIntent

	first, err := svc.Compute(context.Background(), testFunnel(), q)
	require.NoError(t, err)
	second, err := svc.Compute(context.Background(), testFunnel(), q)
	require.NoError(t, err)

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(firstJSON), string(secondJSON))
}
