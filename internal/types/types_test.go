package types

import (
	"testing"
	"time"
)

func TestItemIDString(t *testing.T) {
	tests := []struct {
		name string
		id   ItemID
		want string
	}{
		{"epic", ItemID{Kind: KindEpic, Container: 123, IID: 10}, "epic:123#10"},
		{"issue", ItemID{Kind: KindIssue, Container: 456, IID: 7}, "issue:456#7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.id.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseItemIDRoundTrip(t *testing.T) {
	ids := []ItemID{
		{Kind: KindEpic, Container: 1, IID: 1},
		{Kind: KindEpic, Container: 987654, IID: 42},
		{Kind: KindIssue, Container: 300, IID: 9001},
	}
	for _, want := range ids {
		got, err := ParseItemID(want.String())
		if err != nil {
			t.Fatalf("ParseItemID(%q) error: %v", want.String(), err)
		}
		if got != want {
			t.Errorf("ParseItemID(%q) = %v, want %v", want.String(), got, want)
		}
	}
}

func TestParseItemIDInvalid(t *testing.T) {
	tests := []string{
		"",
		"epic",
		"epic:123",
		"task:123#10",
		"epic:abc#10",
		"epic:123#xyz",
	}
	for _, s := range tests {
		if _, err := ParseItemID(s); err == nil {
			t.Errorf("ParseItemID(%q) expected error, got nil", s)
		}
	}
}

func TestWorkItemValidate(t *testing.T) {
	valid := WorkItem{
		ID:        ItemID{Kind: KindEpic, Container: 1, IID: 2},
		Kind:      KindEpic,
		Title:     "Roadmap",
		State:     StateOpened,
		CreatedAt: time.Now(),
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid item failed validation: %v", err)
	}

	missing := valid
	missing.ID = ItemID{}
	if err := missing.Validate(); err == nil {
		t.Error("expected error for zero identity")
	}

	mismatched := valid
	mismatched.Kind = KindIssue
	if err := mismatched.Validate(); err == nil {
		t.Error("expected error for kind/identity mismatch")
	}

	badState := valid
	badState.State = ItemState("pending")
	if err := badState.Validate(); err == nil {
		t.Error("expected error for unknown state")
	}

	leafParent := valid
	parent := ItemID{Kind: KindIssue, Container: 1, IID: 3}
	leafParent.DeclaredParent = &parent
	if err := leafParent.Validate(); err == nil {
		t.Error("expected error for leaf declared parent")
	}
}

func TestPathString(t *testing.T) {
	root := ItemID{Kind: KindEpic, Container: 1, IID: 1}
	mid := ItemID{Kind: KindEpic, Container: 1, IID: 2}
	leaf := ItemID{Kind: KindIssue, Container: 5, IID: 3}

	n := AssembledNode{
		WorkItem: &WorkItem{ID: leaf, Kind: KindIssue},
		Path:     []ItemID{root, mid, leaf},
	}
	want := "epic:1#1/epic:1#2/issue:5#3"
	if got := n.PathString(); got != want {
		t.Errorf("PathString() = %q, want %q", got, want)
	}
}

func TestStateIsClosed(t *testing.T) {
	if StateOpened.IsClosed() {
		t.Error("opened state reported closed")
	}
	if !StateClosed.IsClosed() {
		t.Error("closed state not reported closed")
	}
}
