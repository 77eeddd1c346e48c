// Package types defines core data structures for the hx hierarchy extractor.
package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ItemKind categorizes a work item. Epics are containers and may have
// children of either kind; issues are leaves and never do.
type ItemKind string

// Item kind constants
const (
	KindEpic  ItemKind = "epic"
	KindIssue ItemKind = "issue"
)

// IsValid checks if the item kind value is valid
func (k ItemKind) IsValid() bool {
	switch k {
	case KindEpic, KindIssue:
		return true
	}
	return false
}

// IsContainer returns true for kinds that may have children.
func (k ItemKind) IsContainer() bool {
	return k == KindEpic
}

// ItemState represents the upstream open/closed state of a work item.
// Values match the GitLab wire format.
type ItemState string

// Item state constants
const (
	StateOpened ItemState = "opened"
	StateClosed ItemState = "closed"
)

// IsValid checks if the state value is valid. Empty is valid (state
// unknown for partially-fetched records).
func (s ItemState) IsValid() bool {
	switch s {
	case StateOpened, StateClosed, "":
		return true
	}
	return false
}

// IsClosed returns true if the item is in a closed state.
func (s ItemState) IsClosed() bool {
	return s == StateClosed
}

// ItemID is the composite identity of a work item: kind, home container
// (group for epics, project for issues), and the container-local sequence
// number. The canonical string form is "epic:123#10" / "issue:456#7".
// The zero value is not a valid identity.
type ItemID struct {
	Kind      ItemKind `json:"kind"`
	Container int      `json:"container"`
	IID       int      `json:"iid"`
}

// String returns the canonical string form of the identity.
func (id ItemID) String() string {
	return fmt.Sprintf("%s:%d#%d", id.Kind, id.Container, id.IID)
}

// IsZero returns true for the zero (invalid) identity.
func (id ItemID) IsZero() bool {
	return id == ItemID{}
}

// ParseItemID parses the canonical "kind:container#iid" form.
func ParseItemID(s string) (ItemID, error) {
	kindRest := strings.SplitN(s, ":", 2)
	if len(kindRest) != 2 {
		return ItemID{}, fmt.Errorf("invalid item id %q: missing kind separator", s)
	}
	kind := ItemKind(kindRest[0])
	if !kind.IsValid() {
		return ItemID{}, fmt.Errorf("invalid item id %q: unknown kind %q", s, kindRest[0])
	}
	containerIID := strings.SplitN(kindRest[1], "#", 2)
	if len(containerIID) != 2 {
		return ItemID{}, fmt.Errorf("invalid item id %q: missing iid separator", s)
	}
	container, err := strconv.Atoi(containerIID[0])
	if err != nil {
		return ItemID{}, fmt.Errorf("invalid item id %q: bad container: %w", s, err)
	}
	iid, err := strconv.Atoi(containerIID[1])
	if err != nil {
		return ItemID{}, fmt.Errorf("invalid item id %q: bad iid: %w", s, err)
	}
	return ItemID{Kind: kind, Container: container, IID: iid}, nil
}

// AttrMap is an opaque bag of upstream fields the core does not interpret.
// It is carried through assembly untouched and persisted as JSON.
type AttrMap map[string]any

// WorkItem represents one fetched work item before assembly.
// Typed fields cover identity, linkage, and the attributes the metrics
// and label stages need; everything else rides in Attrs.
type WorkItem struct {
	ID   ItemID   `json:"id"`
	Kind ItemKind `json:"kind"`

	// InternalRef is the upstream's global numeric id, used only while
	// resolving parent links. It is never persisted.
	InternalRef int64 `json:"-"`

	// DeclaredParentRef is the raw upstream parent reference (an
	// InternalRef), as reported. May be absent, may point at a record
	// that was never fetched, may be wrong.
	DeclaredParentRef *int64 `json:"-"`

	// DeclaredParent is the identity-shaped parent reference once the
	// resolver has translated DeclaredParentRef (or when the upstream
	// reports the parent identity directly, as for epic issues).
	DeclaredParent *ItemID `json:"declared_parent,omitempty"`

	// HomeContainer is the group/project the item natively belongs to.
	// It may differ from the parent's home container.
	HomeContainer int `json:"home_container"`

	Title     string     `json:"title"`
	State     ItemState  `json:"state"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	StartDate *time.Time `json:"start_date,omitempty"`
	DueDate   *time.Time `json:"due_date,omitempty"`
	Labels    []string   `json:"labels,omitempty"`

	Attrs AttrMap `json:"attrs,omitempty"`
}

// Validate checks the invariants a WorkItem must satisfy before it can
// enter the registry.
func (w *WorkItem) Validate() error {
	if w.ID.IsZero() {
		return fmt.Errorf("item identity is required")
	}
	if !w.Kind.IsValid() {
		return fmt.Errorf("invalid item kind: %s", w.Kind)
	}
	if w.Kind != w.ID.Kind {
		return fmt.Errorf("item kind %s does not match identity kind %s", w.Kind, w.ID.Kind)
	}
	if !w.State.IsValid() {
		return fmt.Errorf("invalid item state: %s", w.State)
	}
	if w.DeclaredParent != nil && !w.DeclaredParent.Kind.IsContainer() {
		return fmt.Errorf("declared parent %s is not a container", w.DeclaredParent)
	}
	return nil
}

// LabelFields holds the normalized label columns extracted from the raw
// label list. Empty string means the category was not present.
type LabelFields struct {
	Priority  string `json:"label_priority,omitempty"`
	TypeLabel string `json:"label_type,omitempty"`
	Status    string `json:"label_status,omitempty"`
	Team      string `json:"label_team,omitempty"`
	Component string `json:"label_component,omitempty"`
	Custom1   string `json:"label_custom_1,omitempty"`
	Custom2   string `json:"label_custom_2,omitempty"`
	Custom3   string `json:"label_custom_3,omitempty"`
}

// AssembledNode is a WorkItem placed into the validated tree, enriched
// with position metadata and derived metrics. It is the unit handed to
// the snapshot reconciler.
type AssembledNode struct {
	*WorkItem

	// ParentID is the resolved, cycle-free parent. Nil only for the root.
	ParentID *ItemID `json:"parent_id,omitempty"`

	// RootID is the designated root of this run, constant across nodes.
	RootID ItemID `json:"root_id"`

	// Depth is 0 for the root, parent's depth + 1 otherwise.
	Depth int `json:"depth"`

	// Path is the identity sequence from root to this node inclusive.
	Path []ItemID `json:"path"`

	// SiblingPosition is the 1-based rank among same-parent children,
	// in upstream enumeration order.
	SiblingPosition int `json:"sibling_position"`

	// IsLeaf is false whenever the edge set records children for this
	// node, even when the depth bound stopped their expansion.
	IsLeaf bool `json:"is_leaf"`

	DirectChildCount int `json:"child_count"`
	DescendantCount  int `json:"descendant_count"`

	DaysOpen      *int     `json:"days_open,omitempty"`
	DaysToClose   *int     `json:"days_to_close,omitempty"`
	IsOverdue     bool     `json:"is_overdue"`
	DaysOverdue   *int     `json:"days_overdue,omitempty"`
	CompletionPct *float64 `json:"completion_pct,omitempty"`

	LabelFields LabelFields `json:"labels_normalized,omitempty"`
}

// PathString renders the ancestry path as "root/child/.../self".
func (n *AssembledNode) PathString() string {
	parts := make([]string, len(n.Path))
	for i, id := range n.Path {
		parts[i] = id.String()
	}
	return strings.Join(parts, "/")
}

// CycleEdge records a parent-to-child edge discarded during assembly
// because the child had already been placed earlier in the traversal.
type CycleEdge struct {
	Parent ItemID `json:"parent"`
	Child  ItemID `json:"child"`
}

func (c CycleEdge) String() string {
	return fmt.Sprintf("%s -> %s", c.Parent, c.Child)
}

// Warning records a recoverable per-container or per-item failure that
// was collected instead of aborting the run.
type Warning struct {
	Subject string `json:"subject"`
	Err     error  `json:"-"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %v", w.Subject, w.Err)
}

// Summary aggregates the outcome of one extraction run.
type Summary struct {
	RunID        string    `json:"run_id"`
	RootID       ItemID    `json:"root_id"`
	SnapshotDate time.Time `json:"snapshot_date"`

	TotalItems  int `json:"total_items"`
	EpicCount   int `json:"epic_count"`
	IssueCount  int `json:"issue_count"`
	OpenCount   int `json:"open_count"`
	ClosedCount int `json:"closed_count"`
	LeafCount   int `json:"leaf_count"`
	MaxDepth    int `json:"max_depth"`

	OrphanCount int      `json:"orphan_count"`
	Orphans     []string `json:"orphans,omitempty"`
	CycleCount  int      `json:"cycle_count"`
	Cycles      []string `json:"cycles,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`

	Inserted   int `json:"inserted"`
	Superseded int `json:"superseded"`

	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

// Stats provides aggregate metrics over the stored hierarchy.
type Stats struct {
	TotalItems    int        `json:"total_items"`
	EpicCount     int        `json:"epic_count"`
	IssueCount    int        `json:"issue_count"`
	OpenCount     int        `json:"open_count"`
	ClosedCount   int        `json:"closed_count"`
	MaxDepth      int        `json:"max_depth"`
	AvgDepth      float64    `json:"avg_depth"`
	LeafCount     int        `json:"leaf_count"`
	RootCount     int        `json:"root_count"`
	FirstSnapshot *time.Time `json:"first_snapshot,omitempty"`
	LastSnapshot  *time.Time `json:"last_snapshot,omitempty"`
}
