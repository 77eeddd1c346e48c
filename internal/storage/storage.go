// Package storage defines the persistence interface for versioned
// hierarchy snapshots and the record shape backends return.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/uschtwill/hiersnap/internal/types"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// SnapshotDateLayout is the canonical snapshot date form.
const SnapshotDateLayout = "2006-01-02"

// CommitResult reports what one snapshot commit changed.
type CommitResult struct {
	SnapshotDate string
	Inserted     int
	Superseded   int
}

// Record is a stored hierarchy row. Reads always return full records;
// the latest-snapshot filter is applied by the backend.
type Record struct {
	ID              types.ItemID
	Kind            types.ItemKind
	ParentID        *types.ItemID
	RootID          types.ItemID
	Depth           int
	Path            string
	SiblingPosition int
	IsLeaf          bool
	ChildCount      int
	DescendantCount int

	Title       string
	State       types.ItemState
	Labels      []string
	LabelFields types.LabelFields

	CreatedAt time.Time
	UpdatedAt time.Time
	ClosedAt  *time.Time
	StartDate *time.Time
	DueDate   *time.Time

	DaysOpen      *int
	DaysToClose   *int
	IsOverdue     bool
	DaysOverdue   *int
	CompletionPct *float64

	Attrs types.AttrMap

	SnapshotDate string
	IsLatest     bool
}

// Storage persists assembled snapshots and serves the stored tree.
type Storage interface {
	// CommitSnapshot writes one assembled tree under snapshotDate and
	// retires the previous latest rows for the same root. Committing
	// the same tree under the same date twice is a no-op beyond
	// replacing identical rows.
	CommitSnapshot(ctx context.Context, nodes []*types.AssembledNode, snapshotDate string) (*CommitResult, error)

	// GetItem returns the latest record for the identity.
	GetItem(ctx context.Context, id types.ItemID) (*Record, error)

	// GetChildren returns the latest direct children of the identity,
	// ordered by sibling position.
	GetChildren(ctx context.Context, id types.ItemID) ([]*Record, error)

	// GetRoots returns the latest depth-zero records.
	GetRoots(ctx context.Context) ([]*Record, error)

	// GetSubtree returns the latest records under (and including) the
	// identity, ordered by depth then sibling position.
	GetSubtree(ctx context.Context, id types.ItemID) ([]*Record, error)

	// ListSnapshots returns the distinct snapshot dates, newest first.
	ListSnapshots(ctx context.Context) ([]string, error)

	// Stats aggregates over the latest snapshot rows.
	Stats(ctx context.Context) (*types.Stats, error)

	// CleanupSnapshots deletes superseded rows older than keepDays and
	// returns how many were removed. Latest rows are never deleted.
	CleanupSnapshots(ctx context.Context, keepDays int) (int, error)

	// RecordRun stores the outcome summary of one extraction run.
	RecordRun(ctx context.Context, summary *types.Summary) error

	Close() error
}

// Querier is implemented by backends that can run ad hoc read queries.
type Querier interface {
	// Query runs a read-only statement and returns the rows as
	// column-keyed maps.
	Query(ctx context.Context, query string, args ...any) ([]map[string]any, error)
}
