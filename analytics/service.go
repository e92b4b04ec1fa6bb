package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"funnelboard/api/models"
)

// ErrInvalidDateRange is surfaced before any fetch or compute work begins.
// Funnel definition problems carry models.ErrInvalidFunnelDefinition.
var ErrInvalidDateRange = errors.New("start date must not be after end date")

// EventSource fetches the raw events relevant to one computation: all events
// of the given types within the date range (calendar-date inclusive on both
// ends) matching the attribute filters. Filter semantics: OR within one
// attribute key, AND across keys.
type EventSource interface {
	FetchFunnelEvents(ctx context.Context, projectID string, eventTypes []string, start, end time.Time, filters map[string][]string) ([]models.Event, error)
}

// Query describes one analytics computation.
type Query struct {
	Start   time.Time
	End     time.Time
	Filters map[string][]string

	// SegmentBy, when non-empty, requests a per-attribute-value breakdown.
	SegmentBy string
	Segment   SegmentOptions
}

// Service is the analytics entry point. It holds no mutable state: every
// Compute call is a pure function of its inputs and the event store's
// contents at query time, and is safe to run concurrently.
type Service struct {
	events EventSource
}

func NewService(events EventSource) *Service {
	return &Service{events: events}
}

// Compute validates the funnel and date range, fetches the cohort, and
// returns either an AggregateResult or, when q.SegmentBy is set, a
// SegmentedResult. A cohort with no matching events yields zero-valued
// metrics, not an error. Fetch failures are propagated unchanged.
func (s *Service) Compute(ctx context.Context, funnel *models.Funnel, q Query) (models.AnalyticsResult, error) {
	if err := funnel.Validate(); err != nil {
		return nil, err
	}
	if q.Start.After(q.End) {
		return nil, ErrInvalidDateRange
	}

	stages := funnel.OrderedStages()
	events, err := s.events.FetchFunnelEvents(ctx, funnel.ProjectID, funnel.EventTypes(), q.Start, q.End, q.Filters)
	if err != nil {
		return nil, fmt.Errorf("fetch funnel events: %w", err)
	}

	header := models.ResultHeader{
		FunnelID:   funnel.ID,
		FunnelName: funnel.Name,
		DateRange: models.DateRange{
			Start: q.Start.Format("2006-01-02"),
			End:   q.End.Format("2006-01-02"),
		},
	}

	if q.SegmentBy == "" {
		return models.AggregateResult{
			ResultHeader:  header,
			CohortMetrics: Aggregate(StageReach(events, stages), stages),
		}, nil
	}

	segments, total := SegmentBreakdown(events, stages, q.SegmentBy, q.Segment)
	return models.SegmentedResult{
		ResultHeader: header,
		SegmentBy:    q.SegmentBy,
		Segments:     segments,
		Total:        total,
	}, nil
}
