package analytics

import (
	"funnelboard/api/models"
)

// UnknownSegment is the bucket label used for events missing the requested
// segment attribute when SegmentOptions.IncludeUnknown is set.
const UnknownSegment = "Unknown"

// SegmentOptions controls how events missing the segmentation attribute are
// treated. By default they are excluded from every segment bucket (they
// still count toward the total rollup); with IncludeUnknown they form an
// explicit "Unknown" bucket instead. An attribute value that is literally
// "Unknown" is folded into the same policy: it never forms a segment of its
// own, and with IncludeUnknown it lands in the shared bucket.
type SegmentOptions struct {
	IncludeUnknown bool
}

// SegmentBreakdown partitions the cohort by the distinct values observed for
// the segmentBy attribute and computes funnel metrics independently per
// segment, plus a total rollup over the full cohort.
//
// Segment cohorts share no progression state: a user whose events carry two
// different attribute values legitimately appears in both buckets, and the
// total's counts need not equal the sum across segments when attribute
// coverage is partial. An attribute key with no observed values yields an
// empty segments map, not an error.
func SegmentBreakdown(events []models.Event, stages []models.Stage, segmentBy string, opts SegmentOptions) (map[string]models.CohortMetrics, models.CohortMetrics) {
	buckets := make(map[string][]models.Event)
	for _, ev := range events {
		value := ev.Attributes[segmentBy]
		if value == "" || value == UnknownSegment {
			if !opts.IncludeUnknown {
				continue
			}
			value = UnknownSegment
		}
		buckets[value] = append(buckets[value], ev)
	}

	segments := make(map[string]models.CohortMetrics, len(buckets))
	for value, cohort := range buckets {
		segments[value] = Aggregate(StageReach(cohort, stages), stages)
	}

	total := Aggregate(StageReach(events, stages), stages)
	return segments, total
}
