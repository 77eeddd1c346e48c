package resolver

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/uschtwill/hiersnap/internal/debug"
	"github.com/uschtwill/hiersnap/internal/registry"
	"github.com/uschtwill/hiersnap/internal/types"
)

// bulkFetchConcurrency caps parallel container listings.
const bulkFetchConcurrency = 4

// Bulk resolves the hierarchy by enumerating every epic in the scoped
// containers and linking parent declarations locally against the fetched
// set. Containers are fetched in parallel; their batches are merged by a
// single writer in scope order, so the outcome is deterministic for a
// given upstream state.
//
// Depth bounding is left to assembly: Bulk always fetches whole containers.
func Bulk(ctx context.Context, client Client, reg *registry.Registry, scope Scope, rootID types.ItemID) (*Result, error) {
	containers := scope.Containers
	if len(containers) == 0 {
		containers = []int{rootID.Container}
	}

	slots := make([][]*types.WorkItem, len(containers))
	slotErrs := make([]error, len(containers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bulkFetchConcurrency)
	for i, group := range containers {
		g.Go(func() error {
			items, err := client.ListGroupEpics(gctx, group)
			if err != nil {
				// Recorded per slot; a failed container is a warning,
				// not a run failure.
				slotErrs[i] = err
				return nil
			}
			slots[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{Edges: NewEdgeSet()}

	// Single-writer merge in container order.
	var epics []*types.WorkItem
	byRef := make(map[int64]types.ItemID)
	for i, group := range containers {
		if slotErrs[i] != nil {
			res.Warnings = append(res.Warnings, types.Warning{
				Subject: fmt.Sprintf("group %d", group),
				Err:     fmt.Errorf("list group epics: %w", slotErrs[i]),
			})
			continue
		}
		for _, epic := range registerAll(reg, slots[i], &res.Warnings) {
			epics = append(epics, epic)
			if epic.InternalRef != 0 {
				byRef[epic.InternalRef] = epic.ID
			}
		}
	}

	// The root must be part of the fetched set; fall back to a direct
	// fetch when it lives outside the scoped containers.
	root, err := reg.Get(rootID)
	if err != nil {
		root, err = client.GetEpic(ctx, rootID.Container, rootID.IID)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrRootNotFound, rootID, err)
		}
		if err := reg.Register(root); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrRootNotFound, rootID, err)
		}
		epics = append(epics, root)
		if root.InternalRef != 0 {
			byRef[root.InternalRef] = root.ID
		}
	}
	res.Root = root

	// Link epics to their declared parents. An unresolvable ref leaves
	// the item parentless; assembly reports it as an orphan.
	for _, epic := range epics {
		if epic.DeclaredParentRef == nil {
			continue
		}
		parentID, ok := byRef[*epic.DeclaredParentRef]
		if !ok {
			res.Warnings = append(res.Warnings, types.Warning{
				Subject: epic.ID.String(),
				Err:     fmt.Errorf("declared parent ref %d not in fetched set", *epic.DeclaredParentRef),
			})
			continue
		}
		p := parentID
		epic.DeclaredParent = &p
		res.Edges.Add(parentID, epic.ID)
	}

	// Issues are enumerated per epic, in merge order, so sibling rank
	// stays stable across runs.
	for _, epic := range epics {
		issues, err := client.ListEpicIssues(ctx, epic.ID.Container, epic.ID.IID)
		if err != nil {
			res.Warnings = append(res.Warnings, types.Warning{
				Subject: epic.ID.String(),
				Err:     fmt.Errorf("list epic issues: %w", err),
			})
			continue
		}
		for _, issue := range registerAll(reg, withParent(issues, epic.ID), &res.Warnings) {
			res.Edges.Add(epic.ID, issue.ID)
		}
	}

	debug.Logf("bulk: %d containers, %d items, %d edges, %d warnings",
		len(containers), reg.Len(), res.Edges.Len(), len(res.Warnings))
	return res, nil
}
