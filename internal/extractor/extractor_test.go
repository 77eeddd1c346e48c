package extractor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/uschtwill/hiersnap/internal/resolver"
	"github.com/uschtwill/hiersnap/internal/storage/memory"
	"github.com/uschtwill/hiersnap/internal/types"
)

func epicID(group, iid int) types.ItemID {
	return types.ItemID{Kind: types.KindEpic, Container: group, IID: iid}
}

func issueID(project, iid int) types.ItemID {
	return types.ItemID{Kind: types.KindIssue, Container: project, IID: iid}
}

type fakeClient struct {
	epics      map[types.ItemID]*types.WorkItem
	childEpics map[types.ItemID][]*types.WorkItem
	groupEpics map[int][]*types.WorkItem
	epicIssues map[types.ItemID][]*types.WorkItem
}

func (f *fakeClient) GetEpic(_ context.Context, group, iid int) (*types.WorkItem, error) {
	e, ok := f.epics[epicID(group, iid)]
	if !ok {
		return nil, errors.New("404 epic not found")
	}
	return e, nil
}

func (f *fakeClient) ListChildEpics(_ context.Context, group, parentIID int) ([]*types.WorkItem, error) {
	return f.childEpics[epicID(group, parentIID)], nil
}

func (f *fakeClient) ListGroupEpics(_ context.Context, group int) ([]*types.WorkItem, error) {
	return f.groupEpics[group], nil
}

func (f *fakeClient) ListEpicIssues(_ context.Context, group, epicIID int) ([]*types.WorkItem, error) {
	return f.epicIssues[epicID(group, epicIID)], nil
}

func epic(group, iid int, state types.ItemState, labels ...string) *types.WorkItem {
	return &types.WorkItem{
		ID:            epicID(group, iid),
		Kind:          types.KindEpic,
		HomeContainer: group,
		Title:         "epic",
		State:         state,
		CreatedAt:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Labels:        labels,
	}
}

func issue(project, iid int, state types.ItemState) *types.WorkItem {
	return &types.WorkItem{
		ID:            issueID(project, iid),
		Kind:          types.KindIssue,
		HomeContainer: project,
		Title:         "issue",
		State:         state,
		CreatedAt:     time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
	}
}

func testClient() *fakeClient {
	root := epicID(1, 1)
	child := epicID(1, 2)
	return &fakeClient{
		epics: map[types.ItemID]*types.WorkItem{
			root: epic(1, 1, types.StateOpened, "priority:high"),
		},
		childEpics: map[types.ItemID][]*types.WorkItem{
			root: {epic(1, 2, types.StateOpened, "team:atlas")},
		},
		epicIssues: map[types.ItemID][]*types.WorkItem{
			child: {issue(9, 1, types.StateClosed), issue(9, 2, types.StateOpened)},
		},
	}
}

func TestRunCommitsSnapshot(t *testing.T) {
	store := memory.New()
	e := New(testClient(), store)

	sum, err := e.Run(context.Background(), Options{
		RootID:       epicID(1, 1),
		SnapshotDate: "2025-06-01",
		now:          func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatal(err)
	}

	if sum.RunID == "" {
		t.Error("summary missing run id")
	}
	if sum.TotalItems != 4 || sum.EpicCount != 2 || sum.IssueCount != 2 {
		t.Errorf("counts: total=%d epics=%d issues=%d", sum.TotalItems, sum.EpicCount, sum.IssueCount)
	}
	if sum.ClosedCount != 1 || sum.OpenCount != 3 {
		t.Errorf("state counts: open=%d closed=%d", sum.OpenCount, sum.ClosedCount)
	}
	if sum.MaxDepth != 2 || sum.LeafCount != 2 {
		t.Errorf("shape: depth=%d leaves=%d", sum.MaxDepth, sum.LeafCount)
	}
	if sum.Inserted != 4 {
		t.Errorf("inserted = %d, want 4", sum.Inserted)
	}

	// Enrichment flowed into the stored rows.
	rec, err := store.GetItem(context.Background(), epicID(1, 2))
	if err != nil {
		t.Fatal(err)
	}
	if rec.LabelFields.Team != "atlas" {
		t.Errorf("stored team label = %q", rec.LabelFields.Team)
	}
	if rec.CompletionPct == nil || *rec.CompletionPct != 50 {
		t.Errorf("stored completion = %v, want 50 (one of two issues closed)", rec.CompletionPct)
	}

	if runs := store.Runs(); len(runs) != 1 {
		t.Errorf("recorded %d runs, want 1", len(runs))
	}
}

func TestRunDryRunSkipsCommit(t *testing.T) {
	store := memory.New()
	e := New(testClient(), store)

	sum, err := e.Run(context.Background(), Options{
		RootID: epicID(1, 1),
		DryRun: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if sum.TotalItems != 4 {
		t.Errorf("dry run must still assemble: total=%d", sum.TotalItems)
	}
	if sum.Inserted != 0 {
		t.Errorf("dry run inserted = %d, want 0", sum.Inserted)
	}
	if _, err := store.GetItem(context.Background(), epicID(1, 1)); err == nil {
		t.Error("dry run must not write to the store")
	}
	if runs := store.Runs(); len(runs) != 0 {
		t.Error("dry run must not record a run")
	}
}

func TestRunRootNotFoundIsFatal(t *testing.T) {
	e := New(&fakeClient{epics: map[types.ItemID]*types.WorkItem{}}, memory.New())
	_, err := e.Run(context.Background(), Options{RootID: epicID(1, 99)})
	if !errors.Is(err, resolver.ErrRootNotFound) {
		t.Errorf("expected ErrRootNotFound, got %v", err)
	}
}

func TestRunRejectsNonEpicRoot(t *testing.T) {
	e := New(testClient(), memory.New())
	_, err := e.Run(context.Background(), Options{RootID: issueID(9, 1)})
	if err == nil {
		t.Error("expected error for issue root")
	}
}

func TestRunRejectsUnknownStrategy(t *testing.T) {
	e := New(testClient(), memory.New())
	_, err := e.Run(context.Background(), Options{RootID: epicID(1, 1), Strategy: "eager"})
	if err == nil {
		t.Error("expected error for unknown strategy")
	}
}

func TestRunBulkReportsOrphans(t *testing.T) {
	ref := int64(999)
	fc := &fakeClient{
		epics: map[types.ItemID]*types.WorkItem{},
		groupEpics: map[int][]*types.WorkItem{
			1: {
				epic(1, 1, types.StateOpened),
				func() *types.WorkItem {
					e := epic(1, 2, types.StateOpened)
					e.DeclaredParentRef = &ref
					return e
				}(),
			},
		},
	}

	e := New(fc, memory.New())
	sum, err := e.Run(context.Background(), Options{
		RootID:   epicID(1, 1),
		Strategy: StrategyBulk,
		Scope:    resolver.Scope{Containers: []int{1}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if sum.OrphanCount != 1 {
		t.Errorf("orphans = %d, want the epic with the dangling parent ref", sum.OrphanCount)
	}
	if len(sum.Warnings) == 0 {
		t.Error("expected a warning for the unresolvable parent ref")
	}
}

func TestRunRejectsBadSnapshotDate(t *testing.T) {
	e := New(testClient(), memory.New())
	_, err := e.Run(context.Background(), Options{RootID: epicID(1, 1), SnapshotDate: "06/01/2025"})
	if err == nil {
		t.Error("expected error for malformed snapshot date")
	}
}
