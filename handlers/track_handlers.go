// api/handlers/track_handlers.go
package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"funnelboard/api/models"
	"funnelboard/api/store"
)

// DefaultProjectID is the POC fallback used when a tracking request carries
// no (or an unknown) API key, so demos keep working without setup.
const DefaultProjectID = "poc-project-001"

type TrackHandlers struct {
	EventStore   *store.EventStore
	ProjectStore *store.ProjectStore
}

func NewTrackHandlers(events *store.EventStore, projects *store.ProjectStore) *TrackHandlers {
	return &TrackHandlers{
		EventStore:   events,
		ProjectStore: projects,
	}
}

// resolveProjectID maps the X-API-KEY header to a project, falling back to
// the default POC project when the key is absent or unknown.
func (h *TrackHandlers) resolveProjectID(c *gin.Context) string {
	apiKey := c.GetHeader("X-API-KEY")
	if apiKey == "" {
		return DefaultProjectID
	}

	project, err := h.ProjectStore.GetProjectByAPIKey(c.Request.Context(), apiKey)
	if err != nil {
		if !errors.Is(err, store.ErrProjectNotFound) {
			log.Printf("Error resolving API key to project: %v", err)
		}
		return DefaultProjectID
	}
	return project.ID
}

// TrackEvent ingests a single event.
func (h *TrackHandlers) TrackEvent(c *gin.Context) {
	var req models.TrackEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("Error binding incoming event JSON: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	projectID := h.resolveProjectID(c)
	event := req.Normalize(projectID)
	event.EventID = uuid.New().String()
	event.IPAddress = c.ClientIP()
	if event.UserAgent == "" {
		event.UserAgent = c.Request.UserAgent()
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	if err := h.EventStore.InsertEvents(ctx, []models.Event{event}); err != nil {
		log.Printf("Error inserting event into ClickHouse: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record event"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"event_id": event.EventID})
}

// TrackBatch ingests multiple events in one request.
func (h *TrackHandlers) TrackBatch(c *gin.Context) {
	var req models.BatchTrackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("Error binding incoming batch JSON: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if len(req.Events) == 0 {
		c.JSON(http.StatusOK, gin.H{"event_ids": []string{}})
		return
	}

	projectID := h.resolveProjectID(c)
	clientIP := c.ClientIP()

	eventsToInsert := make([]models.Event, 0, len(req.Events))
	eventIDs := make([]string, 0, len(req.Events))
	for i := range req.Events {
		event := req.Events[i].Normalize(projectID)
		event.EventID = uuid.New().String()
		event.IPAddress = clientIP

		eventsToInsert = append(eventsToInsert, event)
		eventIDs = append(eventIDs, event.EventID)
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	if err := h.EventStore.InsertEvents(ctx, eventsToInsert); err != nil {
		log.Printf("Error inserting batch events into ClickHouse: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record events"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"event_ids": eventIDs})
}

// GetEventTypes lists the distinct event types observed for a project, for
// the funnel-builder UI.
func (h *TrackHandlers) GetEventTypes(c *gin.Context) {
	projectID := c.Query("project_id")
	if projectID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "project_id query parameter is required"})
		return
	}

	if _, err := h.ProjectStore.GetProjectByID(c.Request.Context(), projectID); err != nil {
		if errors.Is(err, store.ErrProjectNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
			return
		}
		log.Printf("Error loading project %s: %v", projectID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load project"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	types, err := h.EventStore.ListEventTypes(ctx, projectID)
	if err != nil {
		log.Printf("Error listing event types for project %s: %v", projectID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve event types"})
		return
	}
	if types == nil {
		types = []string{}
	}

	c.JSON(http.StatusOK, types)
}
