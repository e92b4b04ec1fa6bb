package insights

import (
	"crypto/md5"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"funnelboard/api/models"
)

// buildPrompt renders a computed analytics result into the generation
// prompt. The instructed JSON structure must stay in sync with Insights.
func buildPrompt(result models.AnalyticsResult) string {
	return fmt.Sprintf(`Analyze this funnel data. Be CONCISE and ACTIONABLE.

DATA:
%s

Return JSON with this EXACT structure:

{
  "insights": [
    "Max 4 insights. Each = 1 sentence with a NUMBER. Example: 'Save stage has 49%% drop-off, highest in funnel'"
  ],
  "recommendations": [
    {
      "priority": "High",
      "title": "5 words max - verb first",
      "action": "One specific action to take",
      "impact": "+X%% metric (be specific)",
      "effort": "Low/Med/High"
    }
  ],
  "guardrails": [
    {
      "metric": "What to protect",
      "threshold": "Alert if X drops below Y%%",
      "why": "One sentence risk"
    }
  ],
  "experiment": {
    "hypothesis": "If [change] then [outcome] by [amount]",
    "test": "Control: X, Treatment: Y",
    "metric": "Primary success metric"
  },
  "summary": "2 sentences max: biggest problem + top action"
}

RULES:
- Max 4 insights (1 sentence each, must include numbers)
- Max 3 recommendations (verb-first titles)
- Max 2 guardrails
- 1 experiment suggestion
- Every claim needs data
- No filler words

JSON only:`, formatFunnelData(result))
}

func formatFunnelData(result models.AnalyticsResult) string {
	var b strings.Builder

	switch r := result.(type) {
	case models.AggregateResult:
		writeHeader(&b, r.ResultHeader)
		writeCohort(&b, r.CohortMetrics, "")
	case models.SegmentedResult:
		writeHeader(&b, r.ResultHeader)
		fmt.Fprintf(&b, "Segmented by: %s\n\n", r.SegmentBy)
		writeCohort(&b, r.Total, "")

		b.WriteString("Segment Breakdown:\n")
		values := make([]string, 0, len(r.Segments))
		for v := range r.Segments {
			values = append(values, v)
		}
		sort.Strings(values)
		for _, v := range values {
			seg := r.Segments[v]
			fmt.Fprintf(&b, "  %s:\n", v)
			fmt.Fprintf(&b, "    - Total Users: %d\n", seg.TotalUsers)
			fmt.Fprintf(&b, "    - Completed Users: %d\n", seg.CompletedUsers)
			fmt.Fprintf(&b, "    - Conversion Rate: %.2f%%\n", seg.OverallConversionRate)
		}
	}

	return b.String()
}

func writeHeader(b *strings.Builder, h models.ResultHeader) {
	fmt.Fprintf(b, "Funnel: %s\n", h.FunnelName)
	fmt.Fprintf(b, "Date Range: %s to %s\n\n", h.DateRange.Start, h.DateRange.End)
}

func writeCohort(b *strings.Builder, m models.CohortMetrics, indent string) {
	b.WriteString(indent + "Stage Metrics:\n")
	for _, stage := range m.Stages {
		fmt.Fprintf(b, "%s  - %s: %d users, %.1f%% conversion, %.1f%% drop-off\n",
			indent, stage.StageName, stage.Users, stage.ConversionRate, stage.DropOffRate)
	}
	fmt.Fprintf(b, "%sTotal Users: %d\n", indent, m.TotalUsers)
	fmt.Fprintf(b, "%sCompleted Users: %d\n", indent, m.CompletedUsers)
	fmt.Fprintf(b, "%sOverall Conversion Rate: %.2f%%\n\n", indent, m.OverallConversionRate)
}

// cacheKey derives a stable key from the computed result and the filters
// that produced it. Hashing the marshaled result means every input that
// changes the computation (segmentation options included) changes the key,
// not just the funnel/range identity. json.Marshal sorts map keys, so equal
// filter sets and segment maps hash equally.
func cacheKey(result models.AnalyticsResult, filters map[string][]string) string {
	resultJSON, _ := json.Marshal(result)
	filtersJSON, _ := json.Marshal(filters)
	raw := append(append(resultJSON, '|'), filtersJSON...)
	return fmt.Sprintf("%x", md5.Sum(raw))
}
