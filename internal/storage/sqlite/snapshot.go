package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uschtwill/hiersnap/internal/debug"
	"github.com/uschtwill/hiersnap/internal/storage"
	"github.com/uschtwill/hiersnap/internal/types"
)

const insertNodeSQL = `
INSERT OR REPLACE INTO hierarchy (
	id, kind, container, iid,
	parent_id, root_id, depth, hierarchy_path, sibling_position,
	is_leaf, child_count, descendant_count,
	title, state,
	labels_raw, label_priority, label_type, label_status, label_team,
	label_component, label_custom_1, label_custom_2, label_custom_3,
	created_at, updated_at, closed_at, start_date, due_date,
	days_open, days_to_close, is_overdue, days_overdue, completion_pct,
	attrs, snapshot_date, is_latest
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
`

// CommitSnapshot writes the assembled tree under snapshotDate. The flag
// flip and the inserts share one IMMEDIATE transaction: readers never
// observe a state with two latest rows for an identity, and a failed
// commit leaves the previous snapshot fully intact.
func (s *Store) CommitSnapshot(ctx context.Context, nodes []*types.AssembledNode, snapshotDate string) (*storage.CommitResult, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("commit snapshot: empty tree")
	}
	if _, err := time.Parse(storage.SnapshotDateLayout, snapshotDate); err != nil {
		return nil, fmt.Errorf("commit snapshot: bad snapshot date %q: %w", snapshotDate, err)
	}
	rootID := nodes[0].RootID

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("commit snapshot: acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if err := beginImmediateWithRetry(ctx, conn, 5, 10*time.Millisecond); err != nil {
		return nil, fmt.Errorf("commit snapshot: begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	// Retire the previous latest rows for this root. Rows from the same
	// snapshot date are left alone so re-running a day is idempotent.
	flip, err := conn.ExecContext(ctx, `
		UPDATE hierarchy SET is_latest = 0
		WHERE is_latest = 1 AND root_id = ? AND snapshot_date <> ?
	`, rootID.String(), snapshotDate)
	if err != nil {
		return nil, wrapDBError("retire previous snapshot", err)
	}
	superseded, err := flip.RowsAffected()
	if err != nil {
		return nil, wrapDBError("retire previous snapshot", err)
	}

	stmt, err := conn.PrepareContext(ctx, insertNodeSQL)
	if err != nil {
		return nil, wrapDBError("prepare insert", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, node := range nodes {
		if _, err := stmt.ExecContext(ctx, insertArgs(node, snapshotDate)...); err != nil {
			return nil, wrapDBError(fmt.Sprintf("insert %s", node.ID), err)
		}
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return nil, fmt.Errorf("commit snapshot: %w", err)
	}
	committed = true

	debug.Logf("sqlite: committed %d rows for %s at %s, %d retired",
		len(nodes), rootID, snapshotDate, superseded)
	return &storage.CommitResult{
		SnapshotDate: snapshotDate,
		Inserted:     len(nodes),
		Superseded:   int(superseded),
	}, nil
}

func insertArgs(node *types.AssembledNode, snapshotDate string) []any {
	var parentID any
	if node.ParentID != nil {
		parentID = node.ParentID.String()
	}
	lf := node.LabelFields
	return []any{
		node.ID.String(), string(node.Kind), node.ID.Container, node.ID.IID,
		parentID, node.RootID.String(), node.Depth, node.PathString(), node.SiblingPosition,
		boolInt(node.IsLeaf), node.DirectChildCount, node.DescendantCount,
		node.Title, string(node.State),
		jsonText(node.Labels), nullStr(lf.Priority), nullStr(lf.TypeLabel), nullStr(lf.Status), nullStr(lf.Team),
		nullStr(lf.Component), nullStr(lf.Custom1), nullStr(lf.Custom2), nullStr(lf.Custom3),
		timeText(node.CreatedAt), timeText(node.UpdatedAt), timePtrText(node.ClosedAt),
		datePtrText(node.StartDate), datePtrText(node.DueDate),
		intPtr(node.DaysOpen), intPtr(node.DaysToClose), boolInt(node.IsOverdue), intPtr(node.DaysOverdue), floatPtr(node.CompletionPct),
		jsonText(node.Attrs), snapshotDate,
	}
}

// RecordRun stores the outcome summary of one extraction run.
func (s *Store) RecordRun(ctx context.Context, summary *types.Summary) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (
			run_id, root_id, snapshot_date, finished_at,
			total_items, orphan_count, cycle_count, warning_count,
			inserted, superseded, elapsed_seconds
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, summary.RunID, summary.RootID.String(),
		summary.SnapshotDate.Format(storage.SnapshotDateLayout),
		time.Now().UTC().Format(time.RFC3339),
		summary.TotalItems, summary.OrphanCount, summary.CycleCount, len(summary.Warnings),
		summary.Inserted, summary.Superseded, summary.ElapsedSeconds)
	return wrapDBError("record run", err)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func timeText(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func timePtrText(t *time.Time) any {
	if t == nil {
		return nil
	}
	return timeText(*t)
}

func datePtrText(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.Format(storage.SnapshotDateLayout)
}

func intPtr(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func floatPtr(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func jsonText(v any) any {
	switch t := v.(type) {
	case []string:
		if len(t) == 0 {
			return nil
		}
	case types.AttrMap:
		if len(t) == 0 {
			return nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return string(data)
}
