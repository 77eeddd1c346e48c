package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/uschtwill/hiersnap/internal/storage"
	"github.com/uschtwill/hiersnap/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func epicID(group, iid int) types.ItemID {
	return types.ItemID{Kind: types.KindEpic, Container: group, IID: iid}
}

func issueID(project, iid int) types.ItemID {
	return types.ItemID{Kind: types.KindIssue, Container: project, IID: iid}
}

// testTree builds root -> (a, b), a -> issue. Titles carry the tag so
// successive snapshots are distinguishable.
func testTree(tag string) []*types.AssembledNode {
	root := epicID(1, 1)
	a, b := epicID(1, 2), epicID(1, 3)
	x := issueID(9, 1)

	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mk := func(id types.ItemID, parent *types.ItemID, depth, pos int, path []types.ItemID, leaf bool) *types.AssembledNode {
		return &types.AssembledNode{
			WorkItem: &types.WorkItem{
				ID:        id,
				Kind:      id.Kind,
				Title:     id.String() + " " + tag,
				State:     types.StateOpened,
				CreatedAt: created,
				UpdatedAt: created,
				Labels:    []string{"priority:high"},
			},
			ParentID:        parent,
			RootID:          root,
			Depth:           depth,
			Path:            path,
			SiblingPosition: pos,
			IsLeaf:          leaf,
		}
	}

	rn := mk(root, nil, 0, 1, []types.ItemID{root}, false)
	rn.DirectChildCount = 2
	rn.DescendantCount = 3
	an := mk(a, &root, 1, 1, []types.ItemID{root, a}, false)
	an.DirectChildCount = 1
	an.DescendantCount = 1
	bn := mk(b, &root, 1, 2, []types.ItemID{root, b}, true)
	xn := mk(x, &a, 2, 1, []types.ItemID{root, a, x}, true)
	return []*types.AssembledNode{rn, an, bn, xn}
}

func TestCommitAndReadBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tree := testTree("v1")
	daysOpen := 12
	tree[1].DaysOpen = &daysOpen
	daysToClose := 7
	tree[3].DaysToClose = &daysToClose

	res, err := s.CommitSnapshot(ctx, tree, "2025-06-01")
	if err != nil {
		t.Fatal(err)
	}
	if res.Inserted != 4 || res.Superseded != 0 {
		t.Errorf("inserted=%d superseded=%d, want 4 and 0", res.Inserted, res.Superseded)
	}

	rec, err := s.GetItem(ctx, epicID(1, 2))
	if err != nil {
		t.Fatal(err)
	}
	if rec.Depth != 1 || rec.SiblingPosition != 1 || rec.IsLeaf {
		t.Errorf("record: depth=%d pos=%d leaf=%v", rec.Depth, rec.SiblingPosition, rec.IsLeaf)
	}
	if rec.ParentID == nil || *rec.ParentID != epicID(1, 1) {
		t.Errorf("parent = %v", rec.ParentID)
	}
	if rec.Path != "epic:1#1/epic:1#2" {
		t.Errorf("path = %q", rec.Path)
	}
	if len(rec.Labels) != 1 || rec.Labels[0] != "priority:high" {
		t.Errorf("labels = %v", rec.Labels)
	}
	if !rec.IsLatest || rec.SnapshotDate != "2025-06-01" {
		t.Errorf("snapshot fields: latest=%v date=%s", rec.IsLatest, rec.SnapshotDate)
	}
	if rec.CreatedAt.IsZero() {
		t.Error("created_at lost in round trip")
	}
	if rec.DaysOpen == nil || *rec.DaysOpen != 12 {
		t.Errorf("days_open = %v", rec.DaysOpen)
	}

	leaf, err := s.GetItem(ctx, issueID(9, 1))
	if err != nil {
		t.Fatal(err)
	}
	if leaf.DaysToClose == nil || *leaf.DaysToClose != 7 {
		t.Errorf("days_to_close = %v", leaf.DaysToClose)
	}
}

func TestCommitSameDateIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CommitSnapshot(ctx, testTree("v1"), "2025-06-01"); err != nil {
		t.Fatal(err)
	}
	res, err := s.CommitSnapshot(ctx, testTree("v1"), "2025-06-01")
	if err != nil {
		t.Fatal(err)
	}
	if res.Superseded != 0 {
		t.Errorf("superseded = %d, want 0 when re-running the same date", res.Superseded)
	}

	rows, err := s.Query(ctx, `SELECT COUNT(*) AS n FROM hierarchy`)
	if err != nil {
		t.Fatal(err)
	}
	if n := rows[0]["n"].(int64); n != 4 {
		t.Errorf("row count = %d, want 4 after re-commit", n)
	}
}

func TestCommitNewDateSupersedesOld(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CommitSnapshot(ctx, testTree("v1"), "2025-06-01"); err != nil {
		t.Fatal(err)
	}
	res, err := s.CommitSnapshot(ctx, testTree("v2"), "2025-06-02")
	if err != nil {
		t.Fatal(err)
	}
	if res.Superseded != 4 {
		t.Errorf("superseded = %d, want 4", res.Superseded)
	}

	// Reads see the new snapshot only.
	rec, err := s.GetItem(ctx, epicID(1, 1))
	if err != nil {
		t.Fatal(err)
	}
	if rec.SnapshotDate != "2025-06-02" || rec.Title != "epic:1#1 v2" {
		t.Errorf("latest = %s %q", rec.SnapshotDate, rec.Title)
	}

	// History is retained.
	rows, err := s.Query(ctx, `SELECT COUNT(*) AS n FROM hierarchy WHERE is_latest = 0`)
	if err != nil {
		t.Fatal(err)
	}
	if n := rows[0]["n"].(int64); n != 4 {
		t.Errorf("retired rows = %d, want 4", n)
	}

	dates, err := s.ListSnapshots(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(dates) != 2 || dates[0] != "2025-06-02" {
		t.Errorf("snapshots = %v, want newest first", dates)
	}
}

func TestGetChildrenOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CommitSnapshot(ctx, testTree("v1"), "2025-06-01"); err != nil {
		t.Fatal(err)
	}
	kids, err := s.GetChildren(ctx, epicID(1, 1))
	if err != nil {
		t.Fatal(err)
	}
	if len(kids) != 2 {
		t.Fatalf("got %d children, want 2", len(kids))
	}
	if kids[0].ID != epicID(1, 2) || kids[1].ID != epicID(1, 3) {
		t.Errorf("children out of sibling order: %s, %s", kids[0].ID, kids[1].ID)
	}
}

func TestGetSubtree(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CommitSnapshot(ctx, testTree("v1"), "2025-06-01"); err != nil {
		t.Fatal(err)
	}
	sub, err := s.GetSubtree(ctx, epicID(1, 2))
	if err != nil {
		t.Fatal(err)
	}
	if len(sub) != 2 {
		t.Fatalf("subtree size = %d, want epic plus its issue", len(sub))
	}
	if sub[0].ID != epicID(1, 2) || sub[1].ID != issueID(9, 1) {
		t.Errorf("subtree = %s, %s", sub[0].ID, sub[1].ID)
	}
}

func TestGetRootsAndStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CommitSnapshot(ctx, testTree("v1"), "2025-06-01"); err != nil {
		t.Fatal(err)
	}

	roots, err := s.GetRoots(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(roots) != 1 || roots[0].ID != epicID(1, 1) {
		t.Errorf("roots = %v", roots)
	}

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.TotalItems != 4 || st.EpicCount != 3 || st.IssueCount != 1 {
		t.Errorf("counts: total=%d epics=%d issues=%d", st.TotalItems, st.EpicCount, st.IssueCount)
	}
	if st.MaxDepth != 2 || st.RootCount != 1 || st.LeafCount != 2 {
		t.Errorf("shape: max=%d roots=%d leaves=%d", st.MaxDepth, st.RootCount, st.LeafCount)
	}
	if st.LastSnapshot == nil || st.LastSnapshot.Format("2006-01-02") != "2025-06-01" {
		t.Errorf("last snapshot = %v", st.LastSnapshot)
	}
}

func TestGetItemNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetItem(context.Background(), epicID(1, 99))
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected storage.ErrNotFound, got %v", err)
	}
}

func TestCleanupSnapshots(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old := time.Now().AddDate(0, 0, -120).Format(storage.SnapshotDateLayout)
	recent := time.Now().Format(storage.SnapshotDateLayout)
	if _, err := s.CommitSnapshot(ctx, testTree("v1"), old); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CommitSnapshot(ctx, testTree("v2"), recent); err != nil {
		t.Fatal(err)
	}

	deleted, err := s.CleanupSnapshots(ctx, 90)
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 4 {
		t.Errorf("deleted = %d, want the retired snapshot rows", deleted)
	}

	// Latest rows survive even past the retention window.
	if _, err := s.GetItem(ctx, epicID(1, 1)); err != nil {
		t.Errorf("latest rows must survive cleanup: %v", err)
	}
}

func TestCleanupNeverDeletesLatest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old := time.Now().AddDate(0, 0, -120).Format(storage.SnapshotDateLayout)
	if _, err := s.CommitSnapshot(ctx, testTree("v1"), old); err != nil {
		t.Fatal(err)
	}

	deleted, err := s.CleanupSnapshots(ctx, 90)
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 0 {
		t.Errorf("deleted = %d, want 0: the only snapshot is still latest", deleted)
	}
}

func TestQueryRejectsWrites(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Query(context.Background(), `DELETE FROM hierarchy`)
	if err == nil {
		t.Error("expected write statements to be rejected")
	}
}

func TestRecordRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sum := &types.Summary{
		RunID:        "run-1",
		RootID:       epicID(1, 1),
		SnapshotDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		TotalItems:   4,
		Inserted:     4,
	}
	if err := s.RecordRun(ctx, sum); err != nil {
		t.Fatal(err)
	}

	rows, err := s.Query(ctx, `SELECT root_id, total_items FROM runs WHERE run_id = ?`, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d run rows, want 1", len(rows))
	}
	if rows[0]["root_id"] != "epic:1#1" {
		t.Errorf("root_id = %v", rows[0]["root_id"])
	}
}
