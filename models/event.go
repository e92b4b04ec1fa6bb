// api/models/event.go
package models

import (
	"encoding/json"
	"time"
)

// Well-known segment attribute keys. Events may carry arbitrary additional
// attribute keys; these are the ones the frontend SDK sends as top-level
// fields.
const (
	AttrUserIntent      = "user_intent"
	AttrSurface         = "surface"
	AttrUserTenure      = "user_tenure"
	AttrContentCategory = "content_category"
)

// Event represents a single tracked event.
type Event struct {
	EventID    string            `json:"event_id"`
	ProjectID  string            `json:"project_id"`
	EventType  string            `json:"event_type"`
	UserID     string            `json:"user_id"`
	SessionID  string            `json:"session_id"`
	Timestamp  time.Time         `json:"timestamp"`
	URL        string            `json:"url"`
	Referrer   string            `json:"referrer"`
	UserAgent  string            `json:"user_agent"`
	IPAddress  string            `json:"ip_address"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Properties json.RawMessage   `json:"properties,omitempty"`
}

// TrackEventRequest is the ingestion payload. Segment dimensions may arrive
// either top-level (SDK convenience fields) or inside Attributes; Normalize
// folds the top-level ones into the attributes map.
type TrackEventRequest struct {
	EventType  string            `json:"event_type" binding:"required"`
	UserID     string            `json:"user_id" binding:"required"`
	SessionID  string            `json:"session_id"`
	Timestamp  *time.Time        `json:"timestamp"`
	URL        string            `json:"url"`
	Referrer   string            `json:"referrer"`
	UserAgent  string            `json:"user_agent"`
	Attributes map[string]string `json:"attributes"`
	Properties json.RawMessage   `json:"properties,omitempty"`

	UserIntent      string `json:"user_intent"`
	Surface         string `json:"surface"`
	UserTenure      string `json:"user_tenure"`
	ContentCategory string `json:"content_category"`
}

// Normalize builds an Event from the request, folding the well-known
// top-level segment fields into the attributes map. Explicit attributes win
// over the convenience fields.
func (r *TrackEventRequest) Normalize(projectID string) Event {
	attrs := make(map[string]string, len(r.Attributes)+4)
	for _, kv := range [...]struct{ key, val string }{
		{AttrUserIntent, r.UserIntent},
		{AttrSurface, r.Surface},
		{AttrUserTenure, r.UserTenure},
		{AttrContentCategory, r.ContentCategory},
	} {
		if kv.val != "" {
			attrs[kv.key] = kv.val
		}
	}
	for k, v := range r.Attributes {
		if k != "" && v != "" {
			attrs[k] = v
		}
	}

	ts := time.Now().UTC()
	if r.Timestamp != nil {
		ts = r.Timestamp.UTC()
	}

	return Event{
		ProjectID:  projectID,
		EventType:  r.EventType,
		UserID:     r.UserID,
		SessionID:  r.SessionID,
		Timestamp:  ts,
		URL:        r.URL,
		Referrer:   r.Referrer,
		UserAgent:  r.UserAgent,
		Attributes: attrs,
		Properties: r.Properties,
	}
}

// BatchTrackRequest is the payload of the batch ingestion endpoint.
type BatchTrackRequest struct {
	Events []TrackEventRequest `json:"events" binding:"required"`
}
