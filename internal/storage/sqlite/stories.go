package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/steveyegge/elab/internal/elaboration"
	"github.com/steveyegge/elab/internal/types"
)

// SaveSnapshot records a version of a story under an iteration number,
// replacing any snapshot already stored for that iteration
func (s *SQLiteStorage) SaveSnapshot(ctx context.Context, story *types.Story, iteration int) error {
	return saveSnapshot(ctx, s.db, story, iteration)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func saveSnapshot(ctx context.Context, db execer, story *types.Story, iteration int) error {
	if story == nil || story.ID == "" {
		return fmt.Errorf("story with an id is required")
	}
	storyJSON, err := json.Marshal(story)
	if err != nil {
		return fmt.Errorf("failed to marshal story %s: %w", story.ID, err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO story_snapshots (story_id, iteration, story_json, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (story_id, iteration) DO UPDATE SET
			story_json = excluded.story_json,
			created_at = excluded.created_at
	`, story.ID, iteration, string(storyJSON), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to save snapshot (story=%s, iteration=%d): %w", story.ID, iteration, err)
	}
	return nil
}

// LatestSnapshot returns the highest-iteration snapshot of a story. It
// returns a nil story and no error when none exists.
func (s *SQLiteStorage) LatestSnapshot(ctx context.Context, storyID string) (*types.Story, int, error) {
	var storyJSON string
	var iteration int
	err := s.db.QueryRowContext(ctx, `
		SELECT story_json, iteration FROM story_snapshots
		WHERE story_id = ?
		ORDER BY iteration DESC
		LIMIT 1
	`, storyID).Scan(&storyJSON, &iteration)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query snapshot for %s: %w", storyID, err)
	}

	var story types.Story
	if err := json.Unmarshal([]byte(storyJSON), &story); err != nil {
		return nil, 0, fmt.Errorf("failed to unmarshal snapshot for %s: %w", storyID, err)
	}
	return &story, iteration, nil
}

// SaveElaboration records a completed run. The analyzed story becomes the
// snapshot for the run's current iteration and a recalculated readiness
// score is appended to the story's readiness history, all in one
// transaction.
func (s *SQLiteStorage) SaveElaboration(ctx context.Context, res *elaboration.Result, story *types.Story) error {
	if res == nil {
		return fmt.Errorf("elaboration result is required")
	}
	resultJSON, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to marshal elaboration result: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if story != nil {
		if err := saveSnapshot(ctx, tx, story, res.CurrentIteration); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO elaborations (
			run_id, story_id, phase, success, previous_iteration,
			current_iteration, result_json, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		res.RunID,
		res.StoryID,
		string(res.Phase),
		boolToInt(res.Success),
		res.PreviousIteration,
		res.CurrentIteration,
		string(resultJSON),
		formatTime(res.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save elaboration (run=%s, story=%s): %w", res.RunID, res.StoryID, err)
	}

	if res.Readiness != nil && res.Readiness.Analyzed {
		if err := saveReadiness(ctx, tx, res.Readiness); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit elaboration: %w", err)
	}
	s.logger.Debug("saved elaboration", "run", res.RunID, "story", res.StoryID, "success", res.Success)
	return nil
}

// ListElaborations returns the recorded runs for a story, newest first. A
// limit of 0 or less returns every run.
func (s *SQLiteStorage) ListElaborations(ctx context.Context, storyID string, limit int) ([]*elaboration.Result, error) {
	query := `
		SELECT result_json FROM elaborations
		WHERE story_id = ?
		ORDER BY completed_at DESC
	`
	args := []interface{}{storyID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query elaborations: %w", err)
	}
	defer rows.Close()

	var results []*elaboration.Result
	for rows.Next() {
		var resultJSON string
		if err := rows.Scan(&resultJSON); err != nil {
			return nil, fmt.Errorf("failed to scan elaboration: %w", err)
		}
		var res elaboration.Result
		if err := json.Unmarshal([]byte(resultJSON), &res); err != nil {
			return nil, fmt.Errorf("failed to unmarshal elaboration: %w", err)
		}
		results = append(results, &res)
	}
	return results, rows.Err()
}

// SetStoryState records the workflow state of a story
func (s *SQLiteStorage) SetStoryState(ctx context.Context, storyID string, state types.WorkflowState, reason string) error {
	if !state.IsValid() {
		return fmt.Errorf("invalid workflow state: %s", state)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO story_states (story_id, state, reason, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (story_id) DO UPDATE SET
			state = excluded.state,
			reason = excluded.reason,
			updated_at = excluded.updated_at
	`, storyID, string(state), reason, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to set state of %s: %w", storyID, err)
	}
	return nil
}

// GetStoryState returns the recorded workflow state of a story, or nil
// when the story has never been elaborated
func (s *SQLiteStorage) GetStoryState(ctx context.Context, storyID string) (*types.StoryState, error) {
	var state, reason, updatedAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT state, reason, updated_at FROM story_states WHERE story_id = ?",
		storyID).Scan(&state, &reason, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query state of %s: %w", storyID, err)
	}

	ts, err := parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	return &types.StoryState{
		StoryID:   storyID,
		State:     types.WorkflowState(state),
		Reason:    reason,
		UpdatedAt: ts,
	}, nil
}
