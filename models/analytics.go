// api/models/analytics.go
package models

import "time"

// DateRange is a calendar-date range, inclusive on both ends.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// StageMetrics holds the computed metrics for one funnel stage within one
// cohort. ConversionRate is relative to stage 1; DropOffRate is the
// percentage lost transitioning from the previous stage (0 for stage 1 by
// convention). Both are clamped to [0, 100].
type StageMetrics struct {
	StageName      string  `json:"stage_name"`
	StageOrder     int     `json:"stage_order"`
	Users          int     `json:"users"`
	ConversionRate float64 `json:"conversion_rate"`
	DropOffRate    float64 `json:"drop_off_rate"`
}

// CohortMetrics is the full metrics set for one cohort (the whole funnel
// population, or one segment of it).
type CohortMetrics struct {
	Stages                []StageMetrics `json:"stages"`
	TotalUsers            int            `json:"total_users"`
	CompletedUsers        int            `json:"completed_users"`
	OverallConversionRate float64        `json:"overall_conversion_rate"`
}

// ResultHeader carries the fields common to both analytics result variants.
type ResultHeader struct {
	FunnelID   string    `json:"funnel_id"`
	FunnelName string    `json:"funnel_name"`
	DateRange  DateRange `json:"date_range"`
}

// AnalyticsResult is the tagged variant returned by the analytics service:
// either an AggregateResult or a SegmentedResult.
type AnalyticsResult interface {
	isAnalyticsResult()
}

// AggregateResult is the unsegmented analytics shape.
type AggregateResult struct {
	ResultHeader
	CohortMetrics
}

// SegmentedResult is the segment-breakdown analytics shape. Segments maps
// each observed attribute value to its independently computed cohort metrics;
// Total covers the full cohort regardless of attribute coverage, so its
// counts need not equal the sum across segments.
type SegmentedResult struct {
	ResultHeader
	SegmentBy string                   `json:"segment_by"`
	Segments  map[string]CohortMetrics `json:"segments"`
	Total     CohortMetrics            `json:"total"`
}

func (AggregateResult) isAnalyticsResult() {}
func (SegmentedResult) isAnalyticsResult() {}

// ParseDate parses a YYYY-MM-DD calendar date in UTC.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", s, time.UTC)
}
