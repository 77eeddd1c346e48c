package sqlite

import (
	"context"
	"fmt"
)

// schema holds one versioned row per (identity, snapshot date). The
// is_latest flag marks the current row for each identity; commits flip
// it off for retired rows in the same transaction that inserts the new
// snapshot.
const schema = `
CREATE TABLE IF NOT EXISTS hierarchy (
	id TEXT NOT NULL,
	kind TEXT NOT NULL,
	container INTEGER NOT NULL,
	iid INTEGER NOT NULL,

	parent_id TEXT,
	root_id TEXT NOT NULL,
	depth INTEGER NOT NULL,
	hierarchy_path TEXT NOT NULL,
	sibling_position INTEGER NOT NULL,
	is_leaf INTEGER NOT NULL DEFAULT 0,
	child_count INTEGER NOT NULL DEFAULT 0,
	descendant_count INTEGER NOT NULL DEFAULT 0,

	title TEXT NOT NULL,
	state TEXT NOT NULL,

	labels_raw TEXT,
	label_priority TEXT,
	label_type TEXT,
	label_status TEXT,
	label_team TEXT,
	label_component TEXT,
	label_custom_1 TEXT,
	label_custom_2 TEXT,
	label_custom_3 TEXT,

	created_at TEXT,
	updated_at TEXT,
	closed_at TEXT,
	start_date TEXT,
	due_date TEXT,

	days_open INTEGER,
	days_to_close INTEGER,
	is_overdue INTEGER NOT NULL DEFAULT 0,
	days_overdue INTEGER,
	completion_pct REAL,

	attrs TEXT,

	snapshot_date TEXT NOT NULL,
	is_latest INTEGER NOT NULL DEFAULT 1,

	PRIMARY KEY (id, snapshot_date)
);

CREATE INDEX IF NOT EXISTS idx_hierarchy_parent ON hierarchy(parent_id, is_latest);
CREATE INDEX IF NOT EXISTS idx_hierarchy_root ON hierarchy(root_id, is_latest);
CREATE INDEX IF NOT EXISTS idx_hierarchy_depth ON hierarchy(depth, is_latest);
CREATE INDEX IF NOT EXISTS idx_hierarchy_snapshot ON hierarchy(snapshot_date);
CREATE INDEX IF NOT EXISTS idx_hierarchy_latest ON hierarchy(is_latest);
CREATE INDEX IF NOT EXISTS idx_hierarchy_state ON hierarchy(state, is_latest);

CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	root_id TEXT NOT NULL,
	snapshot_date TEXT NOT NULL,
	finished_at TEXT NOT NULL,
	total_items INTEGER NOT NULL DEFAULT 0,
	orphan_count INTEGER NOT NULL DEFAULT 0,
	cycle_count INTEGER NOT NULL DEFAULT 0,
	warning_count INTEGER NOT NULL DEFAULT 0,
	inserted INTEGER NOT NULL DEFAULT 0,
	superseded INTEGER NOT NULL DEFAULT 0,
	elapsed_seconds REAL NOT NULL DEFAULT 0
);
`

func (s *Store) ensureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
