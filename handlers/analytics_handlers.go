// api/handlers/analytics_handlers.go
package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"funnelboard/api/analytics"
	"funnelboard/api/insights"
	"funnelboard/api/models"
	"funnelboard/api/store"
	"funnelboard/api/utils"
)

// MaxRangeDays caps the analytics window. An API policy rather than an
// engine invariant: longer windows make the POC's full-cohort fetch too
// expensive and the charts unreadable.
const MaxRangeDays = 90

// segmentFilterKeys are the well-known attribute filters exposed as query
// parameters. Segmentation itself accepts any identifier key.
var segmentFilterKeys = []string{
	models.AttrUserIntent,
	models.AttrContentCategory,
	models.AttrSurface,
	models.AttrUserTenure,
}

type AnalyticsHandlers struct {
	FunnelStore *store.FunnelStore
	Service     *analytics.Service
	Insights    *insights.Client
}

func NewAnalyticsHandlers(funnels *store.FunnelStore, service *analytics.Service, insightsClient *insights.Client) *AnalyticsHandlers {
	return &AnalyticsHandlers{
		FunnelStore: funnels,
		Service:     service,
		Insights:    insightsClient,
	}
}

// GetFunnelAnalytics computes conversion metrics for one funnel over a date
// range, optionally filtered by segment attributes and broken down by one of
// them.
func (h *AnalyticsHandlers) GetFunnelAnalytics(c *gin.Context) {
	result, ok := h.computeAnalytics(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetFunnelInsights computes analytics for the funnel and generates a
// narrative summary with recommendations from them.
func (h *AnalyticsHandlers) GetFunnelInsights(c *gin.Context) {
	result, ok := h.computeAnalytics(c)
	if !ok {
		return
	}

	generated, err := h.Insights.Generate(c.Request.Context(), result, parseFilters(c))
	if err != nil {
		if errors.Is(err, insights.ErrNotConfigured) {
			c.JSON(http.StatusOK, gin.H{
				"error":           "Insights API key not configured",
				"insights":        []string{},
				"recommendations": []insights.Recommendation{},
				"guardrails":      []insights.Guardrail{},
			})
			return
		}
		log.Printf("Error generating insights: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to generate insights"})
		return
	}

	c.JSON(http.StatusOK, generated)
}

// computeAnalytics parses and validates the request, loads the funnel, and
// runs the engine. On failure it writes the error response and returns
// ok=false.
func (h *AnalyticsHandlers) computeAnalytics(c *gin.Context) (models.AnalyticsResult, bool) {
	funnelID := c.Param("funnel_id")

	start, end, ok := parseDateRange(c)
	if !ok {
		return nil, false
	}

	segmentBy := c.Query("segment_by")
	if segmentBy != "" && !utils.IsValidAttributeKey(segmentBy) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "segment_by must be a plain identifier (letters, digits, underscores)"})
		return nil, false
	}

	funnel, err := h.FunnelStore.GetFunnel(c.Request.Context(), funnelID)
	if err != nil {
		if errors.Is(err, store.ErrFunnelNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Funnel not found"})
			return nil, false
		}
		log.Printf("Error loading funnel %s: %v", funnelID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load funnel"})
		return nil, false
	}

	query := analytics.Query{
		Start:     start,
		End:       end,
		Filters:   parseFilters(c),
		SegmentBy: segmentBy,
		Segment: analytics.SegmentOptions{
			IncludeUnknown: c.Query("include_unknown") == "true",
		},
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	result, err := h.Service.Compute(ctx, funnel, query)
	if err != nil {
		switch {
		case errors.Is(err, analytics.ErrInvalidDateRange), errors.Is(err, models.ErrInvalidFunnelDefinition):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			log.Printf("Error computing analytics for funnel %s: %v", funnelID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute funnel analytics"})
		}
		return nil, false
	}

	return result, true
}

// parseDateRange reads start/end as YYYY-MM-DD calendar dates (inclusive on
// both ends) and enforces ordering and the window cap. The ordering check
// duplicates the engine's so no funnel fetch happens for a bad range.
func parseDateRange(c *gin.Context) (time.Time, time.Time, bool) {
	startParam := c.Query("start_date")
	endParam := c.Query("end_date")
	if startParam == "" || endParam == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start_date and end_date query parameters are required (YYYY-MM-DD)"})
		return time.Time{}, time.Time{}, false
	}

	start, err := models.ParseDate(startParam)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'start_date' format. Use YYYY-MM-DD"})
		return time.Time{}, time.Time{}, false
	}
	end, err := models.ParseDate(endParam)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'end_date' format. Use YYYY-MM-DD"})
		return time.Time{}, time.Time{}, false
	}

	if start.After(end) {
		c.JSON(http.StatusBadRequest, gin.H{"error": analytics.ErrInvalidDateRange.Error()})
		return time.Time{}, time.Time{}, false
	}
	if end.Sub(start) > MaxRangeDays*24*time.Hour {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Date range cannot exceed 90 days"})
		return time.Time{}, time.Time{}, false
	}

	return start, end, true
}

// parseFilters collects the well-known segment filters from comma-separated
// query parameters. OR within one key, AND across keys.
func parseFilters(c *gin.Context) map[string][]string {
	filters := make(map[string][]string)
	for _, key := range segmentFilterKeys {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		var values []string
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				values = append(values, v)
			}
		}
		if len(values) > 0 {
			filters[key] = values
		}
	}
	return filters
}
