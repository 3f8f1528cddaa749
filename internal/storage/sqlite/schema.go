package sqlite

import "github.com/steveyegge/elab/internal/storage/migrations"

// Timestamps are stored as fixed-width UTC text so that string order is
// time order.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

var schemaMigrations = []migrations.Migration{
	{
		Version:     1,
		Description: "Story snapshots and elaboration runs",
		Up: `
			CREATE TABLE story_snapshots (
				story_id TEXT NOT NULL,
				iteration INTEGER NOT NULL,
				story_json TEXT NOT NULL,
				created_at TEXT NOT NULL,
				PRIMARY KEY (story_id, iteration)
			);

			CREATE TABLE elaborations (
				run_id TEXT PRIMARY KEY,
				story_id TEXT NOT NULL,
				phase TEXT NOT NULL,
				success INTEGER NOT NULL DEFAULT 0,
				previous_iteration INTEGER NOT NULL,
				current_iteration INTEGER NOT NULL,
				result_json TEXT NOT NULL,
				completed_at TEXT NOT NULL
			);
			CREATE INDEX idx_elaborations_story ON elaborations(story_id, completed_at);

			CREATE TABLE story_states (
				story_id TEXT PRIMARY KEY,
				state TEXT NOT NULL CHECK (state IN ('ready-to-work', 'backlog')),
				reason TEXT NOT NULL DEFAULT '',
				updated_at TEXT NOT NULL
			);
		`,
		Down: `
			DROP TABLE IF EXISTS story_states;
			DROP TABLE IF EXISTS elaborations;
			DROP TABLE IF EXISTS story_snapshots;
		`,
	},
	{
		Version:     2,
		Description: "Ranked gap history and readiness scores",
		Up: `
			CREATE TABLE ranked_gaps (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				story_id TEXT NOT NULL,
				run_id TEXT NOT NULL DEFAULT '',
				gap_count INTEGER NOT NULL,
				gaps_json TEXT NOT NULL,
				created_at TEXT NOT NULL
			);
			CREATE INDEX idx_ranked_gaps_story ON ranked_gaps(story_id, id);

			CREATE TABLE readiness_scores (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				story_id TEXT NOT NULL,
				score INTEGER NOT NULL,
				ready INTEGER NOT NULL DEFAULT 0,
				result_json TEXT NOT NULL,
				analyzed_at TEXT NOT NULL
			);
			CREATE INDEX idx_readiness_story ON readiness_scores(story_id, id);
		`,
		Down: `
			DROP TABLE IF EXISTS readiness_scores;
			DROP TABLE IF EXISTS ranked_gaps;
		`,
	},
	{
		Version:     3,
		Description: "Pipeline events",
		Up: `
			CREATE TABLE pipeline_events (
				id TEXT PRIMARY KEY,
				type TEXT NOT NULL,
				timestamp TEXT NOT NULL,
				story_id TEXT NOT NULL DEFAULT '',
				run_id TEXT NOT NULL DEFAULT '',
				phase TEXT NOT NULL DEFAULT '',
				severity TEXT NOT NULL,
				message TEXT NOT NULL,
				data TEXT
			);
			CREATE INDEX idx_pipeline_events_story ON pipeline_events(story_id, timestamp);
			CREATE INDEX idx_pipeline_events_run ON pipeline_events(run_id);
			CREATE INDEX idx_pipeline_events_timestamp ON pipeline_events(timestamp);
		`,
		Down: `DROP TABLE IF EXISTS pipeline_events;`,
	},
}
