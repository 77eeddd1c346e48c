// Package memory implements the storage interface in process memory.
// It mirrors the SQLite backend's versioning semantics and exists for
// tests and dry runs where no database file is wanted.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/uschtwill/hiersnap/internal/storage"
	"github.com/uschtwill/hiersnap/internal/types"
)

// Verify Store implements the storage interface at compile time
var _ storage.Storage = (*Store)(nil)

type rowKey struct {
	id   types.ItemID
	date string
}

// Store keeps versioned rows keyed by (identity, snapshot date).
type Store struct {
	mu   sync.RWMutex
	rows map[rowKey]*storage.Record
	runs map[string]*types.Summary
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		rows: make(map[rowKey]*storage.Record),
		runs: make(map[string]*types.Summary),
	}
}

// CommitSnapshot writes the tree under snapshotDate and retires the
// previous latest rows for the same root.
func (s *Store) CommitSnapshot(ctx context.Context, nodes []*types.AssembledNode, snapshotDate string) (*storage.CommitResult, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("commit snapshot: empty tree")
	}
	if _, err := time.Parse(storage.SnapshotDateLayout, snapshotDate); err != nil {
		return nil, fmt.Errorf("commit snapshot: bad snapshot date %q: %w", snapshotDate, err)
	}
	rootID := nodes[0].RootID

	s.mu.Lock()
	defer s.mu.Unlock()

	superseded := 0
	for _, rec := range s.rows {
		if rec.IsLatest && rec.RootID == rootID && rec.SnapshotDate != snapshotDate {
			rec.IsLatest = false
			superseded++
		}
	}
	for _, node := range nodes {
		rec := recordFromNode(node, snapshotDate)
		s.rows[rowKey{id: node.ID, date: snapshotDate}] = rec
	}

	return &storage.CommitResult{
		SnapshotDate: snapshotDate,
		Inserted:     len(nodes),
		Superseded:   superseded,
	}, nil
}

// GetItem returns the latest record for the identity.
func (s *Store) GetItem(ctx context.Context, id types.ItemID) (*storage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.rows {
		if rec.IsLatest && rec.ID == id {
			return rec, nil
		}
	}
	return nil, fmt.Errorf("get item %s: %w", id, storage.ErrNotFound)
}

// GetChildren returns the latest direct children, in sibling order.
func (s *Store) GetChildren(ctx context.Context, id types.ItemID) ([]*storage.Record, error) {
	out := s.collect(func(rec *storage.Record) bool {
		return rec.IsLatest && rec.ParentID != nil && *rec.ParentID == id
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].SiblingPosition != out[j].SiblingPosition {
			return out[i].SiblingPosition < out[j].SiblingPosition
		}
		return out[i].ID.IID < out[j].ID.IID
	})
	return out, nil
}

// GetRoots returns the latest depth-zero records.
func (s *Store) GetRoots(ctx context.Context) ([]*storage.Record, error) {
	out := s.collect(func(rec *storage.Record) bool {
		return rec.IsLatest && rec.Depth == 0
	})
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

// GetSubtree returns the latest records at and under the identity.
func (s *Store) GetSubtree(ctx context.Context, id types.ItemID) ([]*storage.Record, error) {
	root, err := s.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	prefix := root.Path + "/"
	out := s.collect(func(rec *storage.Record) bool {
		return rec.IsLatest && (rec.ID == id || strings.HasPrefix(rec.Path, prefix))
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Depth != out[j].Depth {
			return out[i].Depth < out[j].Depth
		}
		if out[i].SiblingPosition != out[j].SiblingPosition {
			return out[i].SiblingPosition < out[j].SiblingPosition
		}
		return out[i].ID.IID < out[j].ID.IID
	})
	return out, nil
}

// ListSnapshots returns the distinct snapshot dates, newest first.
func (s *Store) ListSnapshots(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	for key := range s.rows {
		seen[key.date] = true
	}
	dates := make([]string, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	return dates, nil
}

// Stats aggregates over the latest rows.
func (s *Store) Stats(ctx context.Context) (*types.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := &types.Stats{}
	depthSum := 0
	var first, last string
	for key, rec := range s.rows {
		if first == "" || key.date < first {
			first = key.date
		}
		if key.date > last {
			last = key.date
		}
		if !rec.IsLatest {
			continue
		}
		st.TotalItems++
		if rec.Kind == types.KindEpic {
			st.EpicCount++
		} else {
			st.IssueCount++
		}
		if rec.State.IsClosed() {
			st.ClosedCount++
		} else {
			st.OpenCount++
		}
		if rec.IsLeaf {
			st.LeafCount++
		}
		if rec.Depth == 0 {
			st.RootCount++
		}
		if rec.Depth > st.MaxDepth {
			st.MaxDepth = rec.Depth
		}
		depthSum += rec.Depth
	}
	if st.TotalItems > 0 {
		st.AvgDepth = float64(depthSum) / float64(st.TotalItems)
	}
	st.FirstSnapshot = parseDate(first)
	st.LastSnapshot = parseDate(last)
	return st, nil
}

// CleanupSnapshots deletes superseded rows older than keepDays.
func (s *Store) CleanupSnapshots(ctx context.Context, keepDays int) (int, error) {
	if keepDays < 0 {
		return 0, fmt.Errorf("cleanup snapshots: negative retention %d", keepDays)
	}
	cutoff := time.Now().AddDate(0, 0, -keepDays).Format(storage.SnapshotDateLayout)

	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for key, rec := range s.rows {
		if !rec.IsLatest && key.date < cutoff {
			delete(s.rows, key)
			deleted++
		}
	}
	return deleted, nil
}

// RecordRun stores the outcome summary of one extraction run.
func (s *Store) RecordRun(ctx context.Context, summary *types.Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[summary.RunID] = summary
	return nil
}

// Runs returns the recorded run summaries.
func (s *Store) Runs() []*types.Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.Summary, 0, len(s.runs))
	for _, sum := range s.runs {
		out = append(out, sum)
	}
	return out
}

// Close is a no-op for the memory backend.
func (s *Store) Close() error {
	return nil
}

func (s *Store) collect(keep func(*storage.Record) bool) []*storage.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*storage.Record
	for _, rec := range s.rows {
		if keep(rec) {
			out = append(out, rec)
		}
	}
	return out
}

func recordFromNode(node *types.AssembledNode, snapshotDate string) *storage.Record {
	rec := &storage.Record{
		ID:              node.ID,
		Kind:            node.Kind,
		RootID:          node.RootID,
		Depth:           node.Depth,
		Path:            node.PathString(),
		SiblingPosition: node.SiblingPosition,
		IsLeaf:          node.IsLeaf,
		ChildCount:      node.DirectChildCount,
		DescendantCount: node.DescendantCount,
		Title:           node.Title,
		State:           node.State,
		Labels:          append([]string(nil), node.Labels...),
		LabelFields:     node.LabelFields,
		CreatedAt:       node.CreatedAt,
		UpdatedAt:       node.UpdatedAt,
		ClosedAt:        node.ClosedAt,
		StartDate:       node.StartDate,
		DueDate:         node.DueDate,
		DaysOpen:        node.DaysOpen,
		DaysToClose:     node.DaysToClose,
		IsOverdue:       node.IsOverdue,
		DaysOverdue:     node.DaysOverdue,
		CompletionPct:   node.CompletionPct,
		SnapshotDate:    snapshotDate,
		IsLatest:        true,
	}
	if node.ParentID != nil {
		pid := *node.ParentID
		rec.ParentID = &pid
	}
	if len(node.Attrs) > 0 {
		rec.Attrs = make(types.AttrMap, len(node.Attrs))
		for k, v := range node.Attrs {
			rec.Attrs[k] = v
		}
	}
	return rec
}

func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(storage.SnapshotDateLayout, s)
	if err != nil {
		return nil
	}
	return &t
}
