// Package metrics derives per-node measurements over an assembled tree:
// age, overdue status, and container completion.
package metrics

import (
	"math"
	"time"

	"github.com/uschtwill/hiersnap/internal/types"
)

// Apply computes metrics in place for every node. now anchors the
// age and overdue calculations; comparisons are at day granularity.
// DaysOpen is carried only while an item is open; once closed the age
// moves to DaysToClose instead.
//
// Completion is the share of a container's direct children that are
// closed, rounded to two decimals. It is nil for issues and for
// containers without placed children.
func Apply(nodes []*types.AssembledNode, now time.Time) {
	children := make(map[types.ItemID][]*types.AssembledNode)
	for _, node := range nodes {
		if node.ParentID != nil {
			children[*node.ParentID] = append(children[*node.ParentID], node)
		}
	}

	today := dayOf(now)
	for _, node := range nodes {
		applyAge(node, now, today)
		applyCompletion(node, children[node.ID])
	}
}

func applyAge(node *types.AssembledNode, now time.Time, today time.Time) {
	if !node.CreatedAt.IsZero() {
		if node.State.IsClosed() {
			if node.ClosedAt != nil {
				if days := wholeDays(node.CreatedAt, *node.ClosedAt); days >= 0 {
					node.DaysToClose = &days
				}
			}
		} else if days := wholeDays(node.CreatedAt, now); days >= 0 {
			node.DaysOpen = &days
		}
	}

	if node.DueDate == nil || node.State.IsClosed() {
		return
	}
	due := dayOf(*node.DueDate)
	if today.After(due) {
		node.IsOverdue = true
		overdue := int(today.Sub(due).Hours() / 24)
		node.DaysOverdue = &overdue
	}
}

func applyCompletion(node *types.AssembledNode, kids []*types.AssembledNode) {
	if !node.Kind.IsContainer() || len(kids) == 0 {
		return
	}
	closed := 0
	for _, kid := range kids {
		if kid.State.IsClosed() {
			closed++
		}
	}
	pct := math.Round(float64(closed)/float64(len(kids))*10000) / 100
	node.CompletionPct = &pct
}

func wholeDays(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
