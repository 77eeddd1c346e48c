// Package assembler places resolved edges into a single validated tree.
// Every node gets exactly one parent; edges that would place a node a
// second time are discarded as cycles, and fetched items the traversal
// never reaches are reported as orphans.
package assembler

import (
	"fmt"
	"sort"

	"github.com/uschtwill/hiersnap/internal/debug"
	"github.com/uschtwill/hiersnap/internal/registry"
	"github.com/uschtwill/hiersnap/internal/resolver"
	"github.com/uschtwill/hiersnap/internal/types"
)

// Options bounds the assembly pass.
type Options struct {
	// MaxDepth caps tree depth; nodes at the cap are kept as boundary
	// nodes but their children are not placed. 0 means unbounded.
	MaxDepth int
}

// Result is the assembled tree plus everything the pass had to leave out.
type Result struct {
	// Nodes holds the placed tree in breadth-first order, root first.
	// Parents always precede their children.
	Nodes []*types.AssembledNode

	// ByID indexes Nodes by identity.
	ByID map[types.ItemID]*types.AssembledNode

	// Orphans lists fetched items the traversal never reached, sorted
	// by identity. They are excluded from Nodes.
	Orphans []types.ItemID

	// Cycles lists edges discarded because the child was already placed.
	// The first placement is canonical.
	Cycles []types.CycleEdge

	// Warnings collects edges pointing at identities missing from the
	// registry.
	Warnings []types.Warning

	// MaxDepth is the deepest level actually placed.
	MaxDepth int
}

// Assemble builds the tree rooted at rootID from the registry and edge
// set. The traversal is breadth-first and visits children in edge
// insertion order, so sibling rank reproduces upstream enumeration order.
func Assemble(reg *registry.Registry, edges *resolver.EdgeSet, rootID types.ItemID, opts Options) (*Result, error) {
	root, err := reg.Get(rootID)
	if err != nil {
		return nil, fmt.Errorf("assemble: root %s: %w", rootID, err)
	}

	res := &Result{ByID: make(map[types.ItemID]*types.AssembledNode)}

	place := func(item *types.WorkItem, parent *types.AssembledNode, pos int) *types.AssembledNode {
		node := &types.AssembledNode{
			WorkItem:        item,
			RootID:          rootID,
			SiblingPosition: pos,
			IsLeaf:          !edges.HasChildren(item.ID),
		}
		if parent != nil {
			pid := parent.ID
			node.ParentID = &pid
			node.Depth = parent.Depth + 1
			node.Path = append(append([]types.ItemID{}, parent.Path...), item.ID)
		} else {
			node.Path = []types.ItemID{item.ID}
		}
		if node.Depth > res.MaxDepth {
			res.MaxDepth = node.Depth
		}
		res.Nodes = append(res.Nodes, node)
		res.ByID[item.ID] = node
		return node
	}

	queue := []*types.AssembledNode{place(root, nil, 1)}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if opts.MaxDepth > 0 && cur.Depth >= opts.MaxDepth {
			// Boundary node: kept, not expanded. IsLeaf already
			// reflects the edge set, not the truncation.
			continue
		}

		pos := 0
		for _, childID := range edges.Children(cur.ID) {
			if _, placed := res.ByID[childID]; placed {
				res.Cycles = append(res.Cycles, types.CycleEdge{Parent: cur.ID, Child: childID})
				debug.Logf("assemble: cycle edge discarded: %s -> %s", cur.ID, childID)
				continue
			}
			item, err := reg.Get(childID)
			if err != nil {
				res.Warnings = append(res.Warnings, types.Warning{
					Subject: cur.ID.String(),
					Err:     fmt.Errorf("edge to unregistered child %s", childID),
				})
				continue
			}
			pos++
			node := place(item, cur, pos)
			cur.DirectChildCount++
			queue = append(queue, node)
		}
	}

	// Descendant totals roll up in reverse placement order, so every
	// node is final before its parent is touched.
	for i := len(res.Nodes) - 1; i > 0; i-- {
		node := res.Nodes[i]
		parent := res.ByID[*node.ParentID]
		parent.DescendantCount += node.DescendantCount + 1
	}

	for item := range reg.All() {
		if _, placed := res.ByID[item.ID]; !placed {
			res.Orphans = append(res.Orphans, item.ID)
		}
	}
	sort.Slice(res.Orphans, func(i, j int) bool {
		return res.Orphans[i].String() < res.Orphans[j].String()
	})

	debug.Logf("assemble: %d placed, %d orphans, %d cycles, max depth %d",
		len(res.Nodes), len(res.Orphans), len(res.Cycles), res.MaxDepth)
	return res, nil
}
