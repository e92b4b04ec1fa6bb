// api/store/event_store.go
package store

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"funnelboard/api/database"
	"funnelboard/api/models"
)

// EventStore reads and writes tracked events in ClickHouse. The events table
// carries identity columns plus an open-ended attributes Map(String, String)
// for segmentation keys:
//
//	CREATE TABLE events (
//	    event_id String, project_id String, event_type String,
//	    user_id String, session_id String, timestamp DateTime64(3, 'UTC'),
//	    url String, referrer String, user_agent String, ip_address String,
//	    attributes Map(String, String), properties String
//	) ENGINE = MergeTree ORDER BY (project_id, event_type, timestamp)
type EventStore struct {
	DB *database.ClickHouseClient
}

func NewEventStore(chClient *database.ClickHouseClient) *EventStore {
	return &EventStore{
		DB: chClient,
	}
}

func (s *EventStore) InsertEvents(ctx context.Context, events []models.Event) error {
	if len(events) == 0 {
		return nil
	}

	// Column names and order must exactly match the ClickHouse table schema.
	batch, err := s.DB.Conn.PrepareBatch(ctx, `
		INSERT INTO events (
			event_id, project_id, event_type, user_id, session_id, timestamp,
			url, referrer, user_agent, ip_address, attributes, properties
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch insert: %w", err)
	}

	for _, event := range events {
		err := batch.Append(
			event.EventID,
			event.ProjectID,
			event.EventType,
			event.UserID,
			event.SessionID,
			event.Timestamp,
			event.URL,
			event.Referrer,
			event.UserAgent,
			event.IPAddress,
			event.Attributes,
			string(event.Properties),
		)
		if err != nil {
			log.Printf("Error appending event to batch (EventID: %s): %v", event.EventID, err)
		}
	}

	err = batch.Send()
	if err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	log.Printf("Successfully inserted %d events.", len(events))
	return nil
}

// FetchFunnelEvents returns the events relevant to one funnel computation:
// events of the given types within the date range, restricted by the
// attribute filters. The range is calendar-date inclusive on both ends
// (toDate comparison). Filters are OR within one key, AND across keys.
//
// Implements analytics.EventSource.
func (s *EventStore) FetchFunnelEvents(ctx context.Context, projectID string, eventTypes []string, start, end time.Time, filters map[string][]string) ([]models.Event, error) {
	if len(eventTypes) == 0 {
		return nil, nil
	}

	var args []interface{}
	whereClauses := []string{
		"project_id = ?",
		fmt.Sprintf("event_type IN (%s)", placeholders(len(eventTypes))),
		"toDate(timestamp) >= toDate(?)",
		"toDate(timestamp) <= toDate(?)",
	}
	args = append(args, projectID)
	for _, t := range eventTypes {
		args = append(args, t)
	}
	args = append(args, start, end)

	// Deterministic clause order so identical queries build identical SQL.
	filterKeys := make([]string, 0, len(filters))
	for key := range filters {
		filterKeys = append(filterKeys, key)
	}
	sort.Strings(filterKeys)
	for _, key := range filterKeys {
		values := filters[key]
		if len(values) == 0 {
			continue
		}
		whereClauses = append(whereClauses, fmt.Sprintf("attributes[?] IN (%s)", placeholders(len(values))))
		args = append(args, key)
		for _, v := range values {
			args = append(args, v)
		}
	}

	query := fmt.Sprintf(`
		SELECT event_id, event_type, user_id, timestamp, attributes
		FROM events
		WHERE %s
		ORDER BY user_id, timestamp
	`, strings.Join(whereClauses, " AND "))

	rows, err := s.DB.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query funnel events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var ev models.Event
		if err := rows.Scan(&ev.EventID, &ev.EventType, &ev.UserID, &ev.Timestamp, &ev.Attributes); err != nil {
			log.Printf("Error scanning event row: %v", err)
			continue
		}
		ev.ProjectID = projectID
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row error during funnel events query: %w", err)
	}

	return events, nil
}

// ListEventTypes returns the distinct event types observed for a project,
// for the funnel-builder UI.
func (s *EventStore) ListEventTypes(ctx context.Context, projectID string) ([]string, error) {
	query := `
		SELECT DISTINCT event_type
		FROM events
		WHERE project_id = ?
		ORDER BY event_type ASC
	`
	rows, err := s.DB.Conn.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query event types: %w", err)
	}
	defer rows.Close()

	var types []string
	for rows.Next() {
		var eventType string
		if err := rows.Scan(&eventType); err != nil {
			log.Printf("Error scanning event type row: %v", err)
			continue
		}
		types = append(types, eventType)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows for event types: %w", err)
	}

	return types, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
