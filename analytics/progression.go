// Package analytics implements the funnel conversion and segmentation
// engine: given a cohort of tracked events and an ordered stage list, it
// computes per-stage user counts, conversion and drop-off rates, optionally
// broken down by a segment attribute.
package analytics

import (
	"funnelboard/api/models"
)

// StageReach determines, for every user who satisfies at least stage 1, the
// highest stage index reached (1-based).
//
// Funnel semantics are strict monotone-prefix over sets: a user has reached
// stage i only if they have at least one event matching every stage j <= i's
// event type. A user who fires a stage-3 event without the stage-1 and
// stage-2 events does not count toward stage 3. Only set membership is
// checked; the chronological order of a user's events is irrelevant.
//
// This guarantees users-at-stage[i] >= users-at-stage[i+1], which the rate
// math in Aggregate assumes.
func StageReach(events []models.Event, stages []models.Stage) map[string]int {
	reached := make(map[string]int)
	if len(stages) == 0 {
		return reached
	}

	// Per-user set of event types observed in the cohort.
	userTypes := make(map[string]map[string]bool)
	for _, ev := range events {
		if ev.UserID == "" {
			continue
		}
		types := userTypes[ev.UserID]
		if types == nil {
			types = make(map[string]bool)
			userTypes[ev.UserID] = types
		}
		types[ev.EventType] = true
	}

	for userID, types := range userTypes {
		highest := 0
		for i, stage := range stages {
			if !types[stage.EventType] {
				break
			}
			highest = i + 1
		}
		if highest >= 1 {
			reached[userID] = highest
		}
	}
	return reached
}
