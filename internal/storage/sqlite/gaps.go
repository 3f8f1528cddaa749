package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/steveyegge/elab/internal/readiness"
	"github.com/steveyegge/elab/internal/types"
)

// SaveRankedGaps appends a hygiene run's output to the story's ranked gap
// history. The latest entry is what the next run passes as Previous.
func (s *SQLiteStorage) SaveRankedGaps(ctx context.Context, storyID, runID string, gaps []types.RankedGap) error {
	if gaps == nil {
		gaps = []types.RankedGap{}
	}
	gapsJSON, err := json.Marshal(gaps)
	if err != nil {
		return fmt.Errorf("failed to marshal ranked gaps: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ranked_gaps (story_id, run_id, gap_count, gaps_json, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, storyID, runID, len(gaps), string(gapsJSON), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to save ranked gaps for %s: %w", storyID, err)
	}

	s.gapCache.Add(storyID, cloneGaps(gaps))
	return nil
}

// GetRankedGaps returns the most recent ranked gaps of a story. It returns
// nil when hygiene has never run for the story.
func (s *SQLiteStorage) GetRankedGaps(ctx context.Context, storyID string) ([]types.RankedGap, error) {
	if cached, ok := s.gapCache.Get(storyID); ok {
		return cloneGaps(cached), nil
	}

	var gapsJSON string
	err := s.db.QueryRowContext(ctx, `
		SELECT gaps_json FROM ranked_gaps
		WHERE story_id = ?
		ORDER BY id DESC
		LIMIT 1
	`, storyID).Scan(&gapsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query ranked gaps for %s: %w", storyID, err)
	}

	var gaps []types.RankedGap
	if err := json.Unmarshal([]byte(gapsJSON), &gaps); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ranked gaps for %s: %w", storyID, err)
	}
	if gaps == nil {
		gaps = []types.RankedGap{}
	}
	s.gapCache.Add(storyID, gaps)
	return cloneGaps(gaps), nil
}

// cloneGaps copies the slice and each gap's history so callers cannot
// mutate cached values
func cloneGaps(gaps []types.RankedGap) []types.RankedGap {
	out := make([]types.RankedGap, len(gaps))
	for i, g := range gaps {
		g.History = append([]types.HistoryEntry(nil), g.History...)
		g.RelatedACs = append([]string(nil), g.RelatedACs...)
		g.MergedFrom = append([]string(nil), g.MergedFrom...)
		out[i] = g
	}
	return out
}

// SaveReadiness appends a readiness result to the story's score history
func (s *SQLiteStorage) SaveReadiness(ctx context.Context, res *readiness.Result) error {
	return saveReadiness(ctx, s.db, res)
}

func saveReadiness(ctx context.Context, db execer, res *readiness.Result) error {
	if res == nil || res.StoryID == "" {
		return fmt.Errorf("readiness result with a story id is required")
	}
	resultJSON, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to marshal readiness result: %w", err)
	}
	analyzedAt := res.AnalyzedAt
	if analyzedAt.IsZero() {
		analyzedAt = time.Now()
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO readiness_scores (story_id, score, ready, result_json, analyzed_at)
		VALUES (?, ?, ?, ?, ?)
	`, res.StoryID, res.Score, boolToInt(res.Ready), string(resultJSON), formatTime(analyzedAt))
	if err != nil {
		return fmt.Errorf("failed to save readiness for %s: %w", res.StoryID, err)
	}
	return nil
}

// GetLatestReadiness returns the most recent readiness result of a story,
// or nil when it has never been scored
func (s *SQLiteStorage) GetLatestReadiness(ctx context.Context, storyID string) (*readiness.Result, error) {
	var resultJSON string
	err := s.db.QueryRowContext(ctx, `
		SELECT result_json FROM readiness_scores
		WHERE story_id = ?
		ORDER BY id DESC
		LIMIT 1
	`, storyID).Scan(&resultJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query readiness for %s: %w", storyID, err)
	}

	var res readiness.Result
	if err := json.Unmarshal([]byte(resultJSON), &res); err != nil {
		return nil, fmt.Errorf("failed to unmarshal readiness for %s: %w", storyID, err)
	}
	return &res, nil
}
