// Package resolver turns upstream parent declarations into an explicit
// parent-to-child edge set rooted at a designated epic. Two strategies are
// provided: Incremental walks the containment tree one parent at a time,
// Bulk fetches whole containers and links records locally.
package resolver

import (
	"context"
	"errors"

	"github.com/uschtwill/hiersnap/internal/registry"
	"github.com/uschtwill/hiersnap/internal/types"
)

// ErrRootNotFound indicates the designated root epic could not be
// fetched. This is fatal for the run; every other fetch failure is
// collected as a warning instead.
var ErrRootNotFound = errors.New("root epic not found")

// Client is the upstream surface the resolver needs. A nil slice with a
// nil error means the listing succeeded and was empty.
type Client interface {
	// GetEpic fetches a single epic by group and local sequence number.
	GetEpic(ctx context.Context, group, iid int) (*types.WorkItem, error)

	// ListChildEpics lists the direct child epics of a parent epic,
	// in upstream order.
	ListChildEpics(ctx context.Context, group, parentIID int) ([]*types.WorkItem, error)

	// ListGroupEpics lists every epic in a group, in upstream order.
	ListGroupEpics(ctx context.Context, group int) ([]*types.WorkItem, error)

	// ListEpicIssues lists the issues attached to an epic, in upstream order.
	ListEpicIssues(ctx context.Context, group, epicIID int) ([]*types.WorkItem, error)
}

// Scope bounds a resolution run. Containers lists the groups the bulk
// strategy enumerates; when empty the root's home group is used. MaxDepth
// bounds the incremental walk (0 means unbounded); the bulk strategy
// fetches everything and leaves depth bounding to assembly.
type Scope struct {
	Containers []int
	MaxDepth   int
}

// Result is the outcome of a resolution run. Items referenced by Edges
// are registered in the registry the run was given.
type Result struct {
	Root     *types.WorkItem
	Edges    *EdgeSet
	Warnings []types.Warning
}

// EdgeSet records parent-to-child edges in insertion order. Insertion order
// is the upstream enumeration order and defines sibling rank downstream.
type EdgeSet struct {
	children map[types.ItemID][]types.ItemID
	seen     map[[2]types.ItemID]bool
}

// NewEdgeSet creates an empty edge set.
func NewEdgeSet() *EdgeSet {
	return &EdgeSet{
		children: make(map[types.ItemID][]types.ItemID),
		seen:     make(map[[2]types.ItemID]bool),
	}
}

// Add records a parent-to-child edge. Duplicate edges are ignored so a
// re-fetch of the same container cannot inflate sibling lists.
func (e *EdgeSet) Add(parent, child types.ItemID) {
	key := [2]types.ItemID{parent, child}
	if e.seen[key] {
		return
	}
	e.seen[key] = true
	e.children[parent] = append(e.children[parent], child)
}

// Children returns the recorded children of parent, in insertion order.
// The returned slice is owned by the set and must not be mutated.
func (e *EdgeSet) Children(parent types.ItemID) []types.ItemID {
	return e.children[parent]
}

// HasChildren reports whether any edge leaves parent.
func (e *EdgeSet) HasChildren(parent types.ItemID) bool {
	return len(e.children[parent]) > 0
}

// Len returns the total number of recorded edges.
func (e *EdgeSet) Len() int {
	return len(e.seen)
}

// registerAll validates and registers a batch, converting per-item
// failures into warnings. It returns the items that registered cleanly.
func registerAll(reg *registry.Registry, items []*types.WorkItem, warnings *[]types.Warning) []*types.WorkItem {
	kept := items[:0]
	for _, item := range items {
		if err := reg.Register(item); err != nil {
			*warnings = append(*warnings, types.Warning{Subject: item.ID.String(), Err: err})
			continue
		}
		kept = append(kept, item)
	}
	return kept
}
