package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/uschtwill/hiersnap/internal/storage"
	"github.com/uschtwill/hiersnap/internal/types"
)

const selectCols = `
	id, kind, container, iid,
	parent_id, root_id, depth, hierarchy_path, sibling_position,
	is_leaf, child_count, descendant_count,
	title, state,
	labels_raw, label_priority, label_type, label_status, label_team,
	label_component, label_custom_1, label_custom_2, label_custom_3,
	created_at, updated_at, closed_at, start_date, due_date,
	days_open, days_to_close, is_overdue, days_overdue, completion_pct,
	attrs, snapshot_date, is_latest
`

// GetItem returns the latest record for the identity.
func (s *Store) GetItem(ctx context.Context, id types.ItemID) (*storage.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+selectCols+` FROM hierarchy
		WHERE id = ? AND is_latest = 1
	`, id.String())
	rec, err := scanRecord(row)
	if err != nil {
		return nil, rowNotFound(fmt.Sprintf("get item %s", id), err)
	}
	return rec, nil
}

// GetChildren returns the latest direct children, in sibling order.
func (s *Store) GetChildren(ctx context.Context, id types.ItemID) ([]*storage.Record, error) {
	return s.queryRecords(ctx, "get children", `
		SELECT `+selectCols+` FROM hierarchy
		WHERE parent_id = ? AND is_latest = 1
		ORDER BY sibling_position, iid
	`, id.String())
}

// GetRoots returns the latest depth-zero records.
func (s *Store) GetRoots(ctx context.Context) ([]*storage.Record, error) {
	return s.queryRecords(ctx, "get roots", `
		SELECT `+selectCols+` FROM hierarchy
		WHERE depth = 0 AND is_latest = 1
		ORDER BY id
	`)
}

// GetSubtree returns the latest records at and under the identity,
// ordered by depth then sibling position. Identity strings never contain
// the path separator, so prefix matching on the stored path is exact.
func (s *Store) GetSubtree(ctx context.Context, id types.ItemID) ([]*storage.Record, error) {
	root, err := s.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.queryRecords(ctx, "get subtree", `
		SELECT `+selectCols+` FROM hierarchy
		WHERE is_latest = 1 AND (id = ? OR hierarchy_path LIKE ?)
		ORDER BY depth, sibling_position, iid
	`, id.String(), root.Path+"/%")
}

// ListSnapshots returns the distinct snapshot dates, newest first.
func (s *Store) ListSnapshots(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT snapshot_date FROM hierarchy ORDER BY snapshot_date DESC
	`)
	if err != nil {
		return nil, wrapDBError("list snapshots", err)
	}
	defer func() { _ = rows.Close() }()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, wrapDBError("scan snapshot date", err)
		}
		dates = append(dates, d)
	}
	return dates, wrapDBError("iterate snapshot dates", rows.Err())
}

// Stats aggregates over the latest snapshot rows.
func (s *Store) Stats(ctx context.Context) (*types.Stats, error) {
	st := &types.Stats{}
	var avgDepth sql.NullFloat64
	var maxDepth sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN kind = 'epic' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN kind = 'issue' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN state = 'opened' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN state = 'closed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(is_leaf), 0),
			COALESCE(SUM(CASE WHEN depth = 0 THEN 1 ELSE 0 END), 0),
			MAX(depth),
			AVG(depth)
		FROM hierarchy WHERE is_latest = 1
	`).Scan(&st.TotalItems, &st.EpicCount, &st.IssueCount, &st.OpenCount,
		&st.ClosedCount, &st.LeafCount, &st.RootCount, &maxDepth, &avgDepth)
	if err != nil {
		return nil, wrapDBError("stats", err)
	}
	if maxDepth.Valid {
		st.MaxDepth = int(maxDepth.Int64)
	}
	if avgDepth.Valid {
		st.AvgDepth = avgDepth.Float64
	}

	var first, last sql.NullString
	err = s.db.QueryRowContext(ctx, `
		SELECT MIN(snapshot_date), MAX(snapshot_date) FROM hierarchy
	`).Scan(&first, &last)
	if err != nil {
		return nil, wrapDBError("stats snapshot range", err)
	}
	st.FirstSnapshot = parseDateNull(first)
	st.LastSnapshot = parseDateNull(last)
	return st, nil
}

// CleanupSnapshots deletes superseded rows with snapshot dates older
// than keepDays. Latest rows survive regardless of age.
func (s *Store) CleanupSnapshots(ctx context.Context, keepDays int) (int, error) {
	if keepDays < 0 {
		return 0, fmt.Errorf("cleanup snapshots: negative retention %d", keepDays)
	}
	cutoff := time.Now().AddDate(0, 0, -keepDays).Format(storage.SnapshotDateLayout)
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM hierarchy WHERE snapshot_date < ? AND is_latest = 0
	`, cutoff)
	if err != nil {
		return 0, wrapDBError("cleanup snapshots", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrapDBError("cleanup snapshots", err)
	}
	return int(n), nil
}

// Query runs an ad hoc read-only statement and returns column-keyed rows.
func (s *Store) Query(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	head := strings.ToUpper(strings.TrimSpace(query))
	if !strings.HasPrefix(head, "SELECT") && !strings.HasPrefix(head, "WITH") {
		return nil, fmt.Errorf("query: only SELECT statements are allowed")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("query", err)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, wrapDBError("query columns", err)
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, wrapDBError("query scan", err)
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = values[i]
		}
		out = append(out, row)
	}
	return out, wrapDBError("query rows", rows.Err())
}

func (s *Store) queryRecords(ctx context.Context, op, query string, args ...any) ([]*storage.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError(op, err)
	}
	defer func() { _ = rows.Close() }()

	var out []*storage.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, wrapDBError(op, err)
		}
		out = append(out, rec)
	}
	return out, wrapDBError(op, rows.Err())
}

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (*storage.Record, error) {
	var (
		idStr, kind, title, state, rootStr, path string
		container, iid, depth, sibling           int
		isLeaf, childCount, descCount, isOverdue int
		parentStr                                sql.NullString
		labelsRaw, attrs                         sql.NullString
		prio, typ, status, team, comp            sql.NullString
		cust1, cust2, cust3                      sql.NullString
		createdAt, updatedAt, closedAt           sql.NullString
		startDate, dueDate                       sql.NullString
		daysOpen, daysToClose, daysOverdue       sql.NullInt64
		completion                               sql.NullFloat64
		snapshotDate                             string
		isLatest                                 int
	)

	err := sc.Scan(
		&idStr, &kind, &container, &iid,
		&parentStr, &rootStr, &depth, &path, &sibling,
		&isLeaf, &childCount, &descCount,
		&title, &state,
		&labelsRaw, &prio, &typ, &status, &team,
		&comp, &cust1, &cust2, &cust3,
		&createdAt, &updatedAt, &closedAt, &startDate, &dueDate,
		&daysOpen, &daysToClose, &isOverdue, &daysOverdue, &completion,
		&attrs, &snapshotDate, &isLatest,
	)
	if err != nil {
		return nil, err
	}

	id, err := types.ParseItemID(idStr)
	if err != nil {
		return nil, fmt.Errorf("stored id: %w", err)
	}
	rootID, err := types.ParseItemID(rootStr)
	if err != nil {
		return nil, fmt.Errorf("stored root id: %w", err)
	}

	rec := &storage.Record{
		ID:              id,
		Kind:            types.ItemKind(kind),
		RootID:          rootID,
		Depth:           depth,
		Path:            path,
		SiblingPosition: sibling,
		IsLeaf:          isLeaf != 0,
		ChildCount:      childCount,
		DescendantCount: descCount,
		Title:           title,
		State:           types.ItemState(state),
		LabelFields: types.LabelFields{
			Priority:  prio.String,
			TypeLabel: typ.String,
			Status:    status.String,
			Team:      team.String,
			Component: comp.String,
			Custom1:   cust1.String,
			Custom2:   cust2.String,
			Custom3:   cust3.String,
		},
		CreatedAt:    parseTimeNull(createdAt),
		UpdatedAt:    parseTimeNull(updatedAt),
		ClosedAt:     parseTimePtr(closedAt),
		StartDate:    parseDateNull(startDate),
		DueDate:      parseDateNull(dueDate),
		IsOverdue:    isOverdue != 0,
		SnapshotDate: snapshotDate,
		IsLatest:     isLatest != 0,
	}
	if parentStr.Valid {
		pid, err := types.ParseItemID(parentStr.String)
		if err != nil {
			return nil, fmt.Errorf("stored parent id: %w", err)
		}
		rec.ParentID = &pid
	}
	if labelsRaw.Valid && labelsRaw.String != "" {
		_ = json.Unmarshal([]byte(labelsRaw.String), &rec.Labels)
	}
	if attrs.Valid && attrs.String != "" {
		_ = json.Unmarshal([]byte(attrs.String), &rec.Attrs)
	}
	if daysOpen.Valid {
		v := int(daysOpen.Int64)
		rec.DaysOpen = &v
	}
	if daysToClose.Valid {
		v := int(daysToClose.Int64)
		rec.DaysToClose = &v
	}
	if daysOverdue.Valid {
		v := int(daysOverdue.Int64)
		rec.DaysOverdue = &v
	}
	if completion.Valid {
		v := completion.Float64
		rec.CompletionPct = &v
	}
	return rec, nil
}

// parseTimeNull parses a TEXT timestamp column. The driver only
// auto-converts declared DATETIME columns, so TEXT parsing is explicit.
func parseTimeNull(ns sql.NullString) time.Time {
	if !ns.Valid || ns.String == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, ns.String); err == nil {
			return t
		}
	}
	return time.Time{}
}

func parseTimePtr(ns sql.NullString) *time.Time {
	t := parseTimeNull(ns)
	if t.IsZero() {
		return nil
	}
	return &t
}

func parseDateNull(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := time.Parse(storage.SnapshotDateLayout, ns.String)
	if err != nil {
		return nil
	}
	return &t
}
