// Package extractor runs the full pipeline: resolve the hierarchy from
// the upstream, assemble and enrich the tree, and commit it to the
// store as one dated snapshot.
package extractor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/uschtwill/hiersnap/internal/assembler"
	"github.com/uschtwill/hiersnap/internal/debug"
	"github.com/uschtwill/hiersnap/internal/labels"
	"github.com/uschtwill/hiersnap/internal/metrics"
	"github.com/uschtwill/hiersnap/internal/registry"
	"github.com/uschtwill/hiersnap/internal/resolver"
	"github.com/uschtwill/hiersnap/internal/storage"
	"github.com/uschtwill/hiersnap/internal/types"
)

// Strategy selects how the hierarchy is resolved.
type Strategy string

// Resolution strategies
const (
	StrategyIncremental Strategy = "incremental"
	StrategyBulk        Strategy = "bulk"
)

// IsValid checks if the strategy value is valid
func (s Strategy) IsValid() bool {
	switch s {
	case StrategyIncremental, StrategyBulk:
		return true
	}
	return false
}

// Options configures one extraction run.
type Options struct {
	RootID   types.ItemID
	Strategy Strategy
	Scope    resolver.Scope

	// SnapshotDate in YYYY-MM-DD form. Empty means today.
	SnapshotDate string

	// LabelPatterns overrides the default label normalization patterns.
	LabelPatterns []labels.Pattern

	// DryRun skips the commit and run record; the summary still carries
	// the full tree statistics.
	DryRun bool

	// now overrides the clock in tests.
	now func() time.Time
}

// Extractor wires an upstream client to a snapshot store.
type Extractor struct {
	client resolver.Client
	store  storage.Storage
}

// New builds an extractor.
func New(client resolver.Client, store storage.Storage) *Extractor {
	return &Extractor{client: client, store: store}
}

// Run executes one extraction. Fatal conditions are a missing root and
// a failed commit; everything else is collected into the summary.
func (e *Extractor) Run(ctx context.Context, opts Options) (*types.Summary, error) {
	now := time.Now
	if opts.now != nil {
		now = opts.now
	}
	started := now()

	if opts.RootID.Kind != types.KindEpic {
		return nil, fmt.Errorf("run: root %s is not an epic", opts.RootID)
	}
	if opts.Strategy == "" {
		opts.Strategy = StrategyIncremental
	}
	if !opts.Strategy.IsValid() {
		return nil, fmt.Errorf("run: unknown strategy %q", opts.Strategy)
	}
	snapshotDate, err := resolveSnapshotDate(opts.SnapshotDate, started)
	if err != nil {
		return nil, err
	}
	parser, err := labels.NewParser(opts.LabelPatterns)
	if err != nil {
		return nil, fmt.Errorf("run: %w", err)
	}

	runID := uuid.NewString()
	debug.Logf("extractor: run %s root=%s strategy=%s snapshot=%s",
		runID, opts.RootID, opts.Strategy, snapshotDate)

	reg := registry.New()
	var res *resolver.Result
	switch opts.Strategy {
	case StrategyBulk:
		res, err = resolver.Bulk(ctx, e.client, reg, opts.Scope, opts.RootID)
	default:
		res, err = resolver.Incremental(ctx, e.client, reg, opts.Scope, opts.RootID)
	}
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}

	asm, err := assembler.Assemble(reg, res.Edges, opts.RootID, assembler.Options{MaxDepth: opts.Scope.MaxDepth})
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}

	for _, node := range asm.Nodes {
		node.LabelFields = parser.Parse(node.Labels)
	}
	metrics.Apply(asm.Nodes, started)

	summary := buildSummary(runID, opts.RootID, snapshotDate, res, asm)

	if !opts.DryRun {
		commit, err := e.store.CommitSnapshot(ctx, asm.Nodes, snapshotDate)
		if err != nil {
			return nil, fmt.Errorf("run %s: commit: %w", runID, err)
		}
		summary.Inserted = commit.Inserted
		summary.Superseded = commit.Superseded

		summary.ElapsedSeconds = now().Sub(started).Seconds()
		if err := e.store.RecordRun(ctx, summary); err != nil {
			summary.Warnings = append(summary.Warnings, fmt.Sprintf("record run: %v", err))
		}
	} else {
		summary.ElapsedSeconds = now().Sub(started).Seconds()
	}

	return summary, nil
}

func resolveSnapshotDate(s string, now time.Time) (string, error) {
	if s == "" {
		return now.UTC().Format(storage.SnapshotDateLayout), nil
	}
	if _, err := time.Parse(storage.SnapshotDateLayout, s); err != nil {
		return "", fmt.Errorf("run: bad snapshot date %q: %w", s, err)
	}
	return s, nil
}

func buildSummary(runID string, rootID types.ItemID, snapshotDate string, res *resolver.Result, asm *assembler.Result) *types.Summary {
	date, _ := time.Parse(storage.SnapshotDateLayout, snapshotDate)
	sum := &types.Summary{
		RunID:        runID,
		RootID:       rootID,
		SnapshotDate: date,
		TotalItems:   len(asm.Nodes),
		MaxDepth:     asm.MaxDepth,
		OrphanCount:  len(asm.Orphans),
		CycleCount:   len(asm.Cycles),
	}
	for _, node := range asm.Nodes {
		if node.Kind == types.KindEpic {
			sum.EpicCount++
		} else {
			sum.IssueCount++
		}
		if node.State.IsClosed() {
			sum.ClosedCount++
		} else {
			sum.OpenCount++
		}
		if node.IsLeaf {
			sum.LeafCount++
		}
	}
	for _, id := range asm.Orphans {
		sum.Orphans = append(sum.Orphans, id.String())
	}
	for _, c := range asm.Cycles {
		sum.Cycles = append(sum.Cycles, c.String())
	}
	for _, w := range res.Warnings {
		sum.Warnings = append(sum.Warnings, w.String())
	}
	for _, w := range asm.Warnings {
		sum.Warnings = append(sum.Warnings, w.String())
	}
	return sum
}
