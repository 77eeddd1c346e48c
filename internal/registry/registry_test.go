package registry

import (
	"errors"
	"testing"

	"github.com/uschtwill/hiersnap/internal/types"
)

func epicID(group, iid int) types.ItemID {
	return types.ItemID{Kind: types.KindEpic, Container: group, IID: iid}
}

func newEpic(group, iid int, title string) *types.WorkItem {
	return &types.WorkItem{
		ID:    epicID(group, iid),
		Kind:  types.KindEpic,
		Title: title,
		State: types.StateOpened,
	}
}

func TestRegisterAndGet(t *testing.T) {
	r := New()
	item := newEpic(1, 10, "Platform")
	if err := r.Register(item); err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, err := r.Get(epicID(1, 10))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "Platform" {
		t.Errorf("got title %q, want %q", got.Title, "Platform")
	}
}

func TestGetNotFound(t *testing.T) {
	r := New()
	_, err := r.Get(epicID(1, 99))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRegisterLastWriteWins(t *testing.T) {
	r := New()
	if err := r.Register(newEpic(1, 10, "first")); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(newEpic(1, 10, "second")); err != nil {
		t.Fatal(err)
	}
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}
	got, _ := r.Get(epicID(1, 10))
	if got.Title != "second" {
		t.Errorf("got title %q, want overwrite to win", got.Title)
	}
}

func TestRegisterInvalid(t *testing.T) {
	r := New()
	err := r.Register(&types.WorkItem{Kind: types.KindEpic})
	if err == nil {
		t.Error("expected error for item without identity")
	}
}

func TestAllRestartable(t *testing.T) {
	r := New()
	for i := 1; i <= 5; i++ {
		if err := r.Register(newEpic(1, i, "e")); err != nil {
			t.Fatal(err)
		}
	}

	count := func() int {
		n := 0
		for range r.All() {
			n++
		}
		return n
	}

	// The sequence must be restartable: consuming it twice yields the
	// same cardinality both times.
	if got := count(); got != 5 {
		t.Errorf("first pass saw %d items, want 5", got)
	}
	if got := count(); got != 5 {
		t.Errorf("second pass saw %d items, want 5", got)
	}

	// Early break must not poison later iterations.
	for range r.All() {
		break
	}
	if got := count(); got != 5 {
		t.Errorf("post-break pass saw %d items, want 5", got)
	}
}
