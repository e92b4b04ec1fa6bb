package analytics

import (
	"math"

	"funnelboard/api/models"
)

// Aggregate turns a reached-index mapping (see StageReach) into per-stage
// metrics for one cohort.
//
// Rates are percentages rounded to 2 decimals and clamped to [0, 100]:
// conversion is relative to stage 1, drop-off to the previous stage. A zero
// denominator yields 0 rather than NaN, so an empty cohort renders as "no
// data" downstream instead of failing.
func Aggregate(reached map[string]int, stages []models.Stage) models.CohortMetrics {
	metrics := models.CohortMetrics{
		Stages: make([]models.StageMetrics, 0, len(stages)),
	}
	if len(stages) == 0 {
		return metrics
	}

	usersAt := make([]int, len(stages))
	for _, highest := range reached {
		for i := 0; i < highest && i < len(stages); i++ {
			usersAt[i]++
		}
	}

	firstCount := usersAt[0]
	for i, stage := range stages {
		users := usersAt[i]

		var conversion float64
		if firstCount > 0 {
			conversion = float64(users) / float64(firstCount) * 100
		}

		var dropOff float64
		if i > 0 && usersAt[i-1] > 0 {
			dropOff = float64(usersAt[i-1]-users) / float64(usersAt[i-1]) * 100
		}

		metrics.Stages = append(metrics.Stages, models.StageMetrics{
			StageName:      stage.Name,
			StageOrder:     stage.Order,
			Users:          users,
			ConversionRate: clampRate(conversion),
			DropOffRate:    clampRate(dropOff),
		})
	}

	metrics.TotalUsers = usersAt[0]
	metrics.CompletedUsers = usersAt[len(stages)-1]
	metrics.OverallConversionRate = metrics.Stages[len(stages)-1].ConversionRate
	return metrics
}

// clampRate rounds to 2 decimals and clamps to [0, 100]. Monotone-prefix
// semantics keep raw rates in range already; the clamp guards against data
// anomalies producing an out-of-range percentage.
func clampRate(rate float64) float64 {
	rate = math.Round(rate*100) / 100
	if rate < 0 {
		return 0
	}
	if rate > 100 {
		return 100
	}
	return rate
}
