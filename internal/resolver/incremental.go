package resolver

import (
	"context"
	"fmt"

	"github.com/uschtwill/hiersnap/internal/debug"
	"github.com/uschtwill/hiersnap/internal/registry"
	"github.com/uschtwill/hiersnap/internal/types"
)

// Incremental resolves the hierarchy by walking containment from the
// root, one parent at a time. Each visited epic contributes its child
// epics and attached issues as edges. The walk honors scope.MaxDepth:
// epics at the bound are recorded but not expanded.
//
// The per-parent child listing relies on the upstream's parent filter,
// which some deployments report unreliably. Bulk avoids that filter at
// the cost of fetching whole containers.
func Incremental(ctx context.Context, client Client, reg *registry.Registry, scope Scope, rootID types.ItemID) (*Result, error) {
	root, err := client.GetEpic(ctx, rootID.Container, rootID.IID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRootNotFound, rootID, err)
	}
	if err := reg.Register(root); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRootNotFound, rootID, err)
	}

	res := &Result{Root: root, Edges: NewEdgeSet()}

	type queued struct {
		id    types.ItemID
		depth int
	}
	queue := []queued{{id: root.ID}}
	visited := map[types.ItemID]bool{root.ID: true}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		children, err := client.ListChildEpics(ctx, cur.id.Container, cur.id.IID)
		if err != nil {
			res.Warnings = append(res.Warnings, types.Warning{
				Subject: cur.id.String(),
				Err:     fmt.Errorf("list child epics: %w", err),
			})
		}
		for _, child := range registerAll(reg, withParent(children, cur.id), &res.Warnings) {
			res.Edges.Add(cur.id, child.ID)
			if visited[child.ID] {
				continue
			}
			visited[child.ID] = true
			if scope.MaxDepth > 0 && cur.depth+1 >= scope.MaxDepth {
				debug.Logf("incremental: depth bound reached at %s", child.ID)
				continue
			}
			queue = append(queue, queued{id: child.ID, depth: cur.depth + 1})
		}

		issues, err := client.ListEpicIssues(ctx, cur.id.Container, cur.id.IID)
		if err != nil {
			res.Warnings = append(res.Warnings, types.Warning{
				Subject: cur.id.String(),
				Err:     fmt.Errorf("list epic issues: %w", err),
			})
		}
		for _, issue := range registerAll(reg, withParent(issues, cur.id), &res.Warnings) {
			res.Edges.Add(cur.id, issue.ID)
		}
	}

	debug.Logf("incremental: %d items, %d edges, %d warnings",
		reg.Len(), res.Edges.Len(), len(res.Warnings))
	return res, nil
}

// withParent stamps the listing parent onto each item. The listing
// context is authoritative here; whatever raw ref the record carried is
// superseded by the parent it was enumerated under.
func withParent(items []*types.WorkItem, parent types.ItemID) []*types.WorkItem {
	for _, item := range items {
		p := parent
		item.DeclaredParent = &p
	}
	return items
}
