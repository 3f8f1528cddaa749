package sqlite

import (
	"context"
	"fmt"
	"time"
)

// EventCounts holds event count statistics
type EventCounts struct {
	TotalEvents      int
	EventsByStory    map[string]int
	EventsBySeverity map[string]int
	EventsByType     map[string]int
}

// CleanupEventsByAge deletes events older than the retention period.
// Regular events are deleted after retentionDays, error and critical events
// after criticalRetentionDays. Deletions run in batches of batchSize.
func (s *SQLiteStorage) CleanupEventsByAge(ctx context.Context, retentionDays, criticalRetentionDays, batchSize int) (int, error) {
	if retentionDays < 0 || criticalRetentionDays < 0 {
		return 0, fmt.Errorf("retention days cannot be negative")
	}
	if batchSize < 1 {
		return 0, fmt.Errorf("batch size must be at least 1")
	}

	now := time.Now()
	total := 0

	deleted, err := s.deleteBatches(ctx, `
		DELETE FROM pipeline_events
		WHERE id IN (
			SELECT id FROM pipeline_events
			WHERE timestamp < ? AND severity IN ('info', 'warning')
			ORDER BY timestamp ASC
			LIMIT ?
		)
	`, -1, batchSize, formatTime(now.AddDate(0, 0, -retentionDays)))
	total += deleted
	if err != nil {
		return total, fmt.Errorf("failed to delete old regular events: %w", err)
	}

	deleted, err = s.deleteBatches(ctx, `
		DELETE FROM pipeline_events
		WHERE id IN (
			SELECT id FROM pipeline_events
			WHERE timestamp < ? AND severity IN ('error', 'critical')
			ORDER BY timestamp ASC
			LIMIT ?
		)
	`, -1, batchSize, formatTime(now.AddDate(0, 0, -criticalRetentionDays)))
	total += deleted
	if err != nil {
		return total, fmt.Errorf("failed to delete old critical events: %w", err)
	}

	return total, nil
}

// CleanupEventsByStoryLimit keeps at most perStoryLimit events per story,
// deleting the oldest regular events first. Error and critical events are
// never deleted by this limit. A limit of 0 means unlimited.
func (s *SQLiteStorage) CleanupEventsByStoryLimit(ctx context.Context, perStoryLimit, batchSize int) (int, error) {
	if perStoryLimit < 0 {
		return 0, fmt.Errorf("per-story limit cannot be negative")
	}
	if perStoryLimit == 0 {
		return 0, nil
	}
	if batchSize < 1 {
		return 0, fmt.Errorf("batch size must be at least 1")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT story_id, COUNT(*) AS event_count
		FROM pipeline_events
		GROUP BY story_id
		HAVING event_count > ?
	`, perStoryLimit)
	if err != nil {
		return 0, fmt.Errorf("failed to query story event counts: %w", err)
	}

	excess := make(map[string]int)
	for rows.Next() {
		var storyID string
		var count int
		if err := rows.Scan(&storyID, &count); err != nil {
			_ = rows.Close()
			return 0, fmt.Errorf("failed to scan story count: %w", err)
		}
		excess[storyID] = count - perStoryLimit
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return 0, fmt.Errorf("error iterating story counts: %w", err)
	}
	_ = rows.Close()

	total := 0
	for storyID, n := range excess {
		deleted, err := s.deleteBatches(ctx, `
			DELETE FROM pipeline_events
			WHERE id IN (
				SELECT id FROM pipeline_events
				WHERE story_id = ? AND severity NOT IN ('error', 'critical')
				ORDER BY timestamp ASC
				LIMIT ?
			)
		`, n, batchSize, storyID)
		total += deleted
		if err != nil {
			return total, fmt.Errorf("failed to delete events for story %s: %w", storyID, err)
		}
	}
	return total, nil
}

// deleteBatches runs a DELETE whose last parameter is a LIMIT until it
// removes fewer rows than requested or max rows are gone. A negative max
// means no cap.
func (s *SQLiteStorage) deleteBatches(ctx context.Context, query string, max, batchSize int, args ...interface{}) (int, error) {
	total := 0
	for max < 0 || total < max {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		limit := batchSize
		if max >= 0 && max-total < limit {
			limit = max - total
		}

		result, err := s.db.ExecContext(ctx, query, append(args, limit)...)
		if err != nil {
			return total, fmt.Errorf("failed to execute delete: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("failed to get rows affected: %w", err)
		}

		total += int(affected)
		if affected < int64(limit) {
			break
		}
	}
	return total, nil
}

// GetEventCounts returns event count statistics
func (s *SQLiteStorage) GetEventCounts(ctx context.Context) (*EventCounts, error) {
	counts := &EventCounts{}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM pipeline_events").Scan(&counts.TotalEvents); err != nil {
		return nil, fmt.Errorf("failed to get total event count: %w", err)
	}

	var err error
	if counts.EventsByStory, err = s.countBy(ctx, "story_id"); err != nil {
		return nil, err
	}
	if counts.EventsBySeverity, err = s.countBy(ctx, "severity"); err != nil {
		return nil, err
	}
	if counts.EventsByType, err = s.countBy(ctx, "type"); err != nil {
		return nil, err
	}
	return counts, nil
}

// countBy groups events by a column. column is never user input.
func (s *SQLiteStorage) countBy(ctx context.Context, column string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		"SELECT %s, COUNT(*) FROM pipeline_events GROUP BY %s", column, column))
	if err != nil {
		return nil, fmt.Errorf("failed to query events by %s: %w", column, err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return nil, fmt.Errorf("failed to scan %s count: %w", column, err)
		}
		out[key] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s counts: %w", column, err)
	}
	return out, nil
}

// VacuumDatabase reclaims disk space after large deletions. It locks the
// database while it runs.
func (s *SQLiteStorage) VacuumDatabase(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("failed to vacuum database: %w", err)
	}
	return nil
}
