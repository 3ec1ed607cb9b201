package main

import (
	"errors"
	"testing"
)

func TestRegistryIDsIncreaseAndAreNeverReused(t *testing.T) {
	r := NewRegistry()
	a := r.Register(&mockSender{})
	b := r.Register(&mockSender{})
	if a != 1 || b != 2 {
		t.Fatalf("expected ids 1 and 2, got %d and %d", a, b)
	}

	r.Remove(b)
	r.Remove(a)
	c := r.Register(&mockSender{})
	if c != 3 {
		t.Errorf("expected id 3 after removals, got %d", c)
	}
}

func TestRegistryUpdateUnknown(t *testing.T) {
	r := NewRegistry()
	err := r.UpdateState(42, PlayerState{PlayerID: 42})
	if !errors.Is(err, ErrUnknownParticipant) {
		t.Errorf("expected ErrUnknownParticipant, got %v", err)
	}
	if r.Len() != 0 {
		t.Errorf("expected empty registry, got %d", r.Len())
	}
}

func TestRegistrySnapshotExcluding(t *testing.T) {
	r := NewRegistry()
	a := r.Register(&mockSender{})
	b := r.Register(&mockSender{})
	c := r.Register(&mockSender{})

	body := []BodySegment{{X: 2, Y: 3, Direction: DirRight}}
	if err := r.UpdateState(a, PlayerState{PlayerID: a, BodySegments: body}); err != nil {
		t.Fatal(err)
	}
	if err := r.UpdateState(b, PlayerState{PlayerID: b, BodySegments: body}); err != nil {
		t.Fatal(err)
	}

	got := r.SnapshotExcluding(a)
	if len(got) != 1 || got[0].PlayerID != b {
		t.Errorf("expected only %d in snapshot for %d, got %+v", b, a, got)
	}

	// c never reported, so it shows up for nobody
	got = r.SnapshotExcluding(c)
	if len(got) != 2 {
		t.Fatalf("expected 2 peers for %d, got %d", c, len(got))
	}
	for _, s := range got {
		if s.PlayerID == c {
			t.Error("snapshot must not include the requester")
		}
	}
}

func TestRegistryUpdateReplacesState(t *testing.T) {
	r := NewRegistry()
	a := r.Register(&mockSender{})
	b := r.Register(&mockSender{})

	r.UpdateState(a, PlayerState{PlayerID: a, BodySegments: []BodySegment{{X: 1, Y: 1, Direction: DirUp}}})
	r.UpdateState(a, PlayerState{PlayerID: a, BodySegments: []BodySegment{{X: 1, Y: 0, Direction: DirUp}, {X: 1, Y: 1, Direction: DirUp}}})

	got := r.SnapshotExcluding(b)
	if len(got) != 1 {
		t.Fatalf("expected exactly one entry, got %d", len(got))
	}
	if len(got[0].BodySegments) != 2 || got[0].BodySegments[0].Y != 0 {
		t.Errorf("expected latest body, got %+v", got[0].BodySegments)
	}
}

func TestRegistryRemoveIdempotent(t *testing.T) {
	r := NewRegistry()
	id := r.Register(&mockSender{})
	if !r.Remove(id) {
		t.Error("first remove should report true")
	}
	if r.Remove(id) {
		t.Error("second remove should report false")
	}
	if registered(r, id) {
		t.Error("removed participant still registered")
	}
}

func TestRegistryForEachConnection(t *testing.T) {
	r := NewRegistry()
	s1, s2 := &mockSender{}, &mockSender{}
	r.Register(s1)
	id2 := r.Register(s2)

	seen := make(map[int]Sender)
	r.ForEachConnection(func(id int, conn Sender) {
		seen[id] = conn
		// Calling back into the registry must not deadlock
		r.SnapshotExcluding(id)
	})
	if len(seen) != 2 || seen[id2] != s2 {
		t.Errorf("unexpected connections visited: %v", seen)
	}
}

// registered reports whether id is visible to broadcasts
func registered(r *Registry, id int) bool {
	found := false
	r.ForEachConnection(func(sid int, _ Sender) {
		if sid == id {
			found = true
		}
	})
	return found
}
