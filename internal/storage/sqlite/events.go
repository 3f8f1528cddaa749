package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/steveyegge/elab/internal/events"
)

// StoreEvent stores a new pipeline event in the database
func (s *SQLiteStorage) StoreEvent(ctx context.Context, event *events.PipelineEvent) error {
	dataJSON, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pipeline_events (
			id, type, timestamp, story_id, run_id, phase,
			severity, message, data
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		event.ID,
		string(event.Type),
		formatTime(event.Timestamp),
		event.StoryID,
		event.RunID,
		event.Phase,
		string(event.Severity),
		event.Message,
		string(dataJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to store pipeline event (type=%s, story=%s): %w", event.Type, event.StoryID, err)
	}
	return nil
}

// GetEvents retrieves events matching the given filter, most recent first
func (s *SQLiteStorage) GetEvents(ctx context.Context, filter events.EventFilter) ([]*events.PipelineEvent, error) {
	query := `
		SELECT id, type, timestamp, story_id, run_id, phase,
		       severity, message, data
		FROM pipeline_events
		WHERE 1=1
	`
	args := []interface{}{}

	if filter.StoryID != "" {
		query += " AND story_id = ?"
		args = append(args, filter.StoryID)
	}
	if filter.RunID != "" {
		query += " AND run_id = ?"
		args = append(args, filter.RunID)
	}
	if filter.Type != "" {
		query += " AND type = ?"
		args = append(args, string(filter.Type))
	}
	if filter.Severity != "" {
		query += " AND severity = ?"
		args = append(args, string(filter.Severity))
	}
	if !filter.AfterTime.IsZero() {
		query += " AND timestamp > ?"
		args = append(args, formatTime(filter.AfterTime))
	}

	// rowid breaks ties between events stored within the same instant
	query += " ORDER BY timestamp DESC, rowid DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pipeline events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]*events.PipelineEvent, error) {
	var result []*events.PipelineEvent

	for rows.Next() {
		var event events.PipelineEvent
		var eventType, severity, timestamp string
		var dataJSON sql.NullString

		if err := rows.Scan(
			&event.ID,
			&eventType,
			&timestamp,
			&event.StoryID,
			&event.RunID,
			&event.Phase,
			&severity,
			&event.Message,
			&dataJSON,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		ts, err := parseTime(timestamp)
		if err != nil {
			return nil, err
		}
		event.Timestamp = ts
		event.Type = events.EventType(eventType)
		event.Severity = events.EventSeverity(severity)

		if dataJSON.Valid && dataJSON.String != "" && dataJSON.String != "null" {
			if err := json.Unmarshal([]byte(dataJSON.String), &event.Data); err != nil {
				return nil, fmt.Errorf("failed to unmarshal event data for %s: %w", event.ID, err)
			}
		}

		result = append(result, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return result, nil
}
