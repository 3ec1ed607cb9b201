package main

import (
	"math/rand/v2"
	"testing"
)

func newTestWorld(initial int) *World {
	return NewWorld(WorldConfig{Width: 30, Height: 30, Boundary: 1}, rand.New(rand.NewPCG(1, 2)), initial)
}

func TestWorldSpawnWithinBounds(t *testing.T) {
	w := newTestWorld(0)
	for i := 0; i < 500; i++ {
		p := w.Spawn()
		if p.X < 1 || p.X > 30 || p.Y < 1 || p.Y > 30 {
			t.Fatalf("spawned %+v outside [1,30]", p)
		}
	}
	if w.Len() != 500 {
		t.Errorf("expected 500 items, got %d", w.Len())
	}
}

func TestWorldInitialFood(t *testing.T) {
	w := newTestWorld(1)
	if w.Len() != 1 {
		t.Errorf("expected 1 initial item, got %d", w.Len())
	}
}

func TestWorldConsumeExactlyOnce(t *testing.T) {
	w := newTestWorld(1)
	pos := w.Snapshot()[0]

	if !w.Consume(pos) {
		t.Fatal("first consume should succeed")
	}
	if w.Consume(pos) {
		t.Error("second consume of the same position should miss")
	}
	if w.Len() != 0 {
		t.Errorf("expected empty world, got %d", w.Len())
	}
}

func TestWorldConsumeRemovesFirstMatchOnly(t *testing.T) {
	w := newTestWorld(0)
	w.food = []Position{{X: 2, Y: 2}, {X: 5, Y: 5}, {X: 2, Y: 2}}

	if !w.Consume(Position{X: 2, Y: 2}) {
		t.Fatal("expected hit")
	}
	got := w.Snapshot()
	want := []Position{{X: 5, Y: 5}, {X: 2, Y: 2}}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestWorldReplaceKeepsCount(t *testing.T) {
	w := newTestWorld(3)
	old := w.Snapshot()[1]

	consumed, spawned := w.Replace(old)
	if !consumed {
		t.Error("expected existing position to be consumed")
	}
	if w.Len() != 3 {
		t.Errorf("expected count 3 after hit, got %d", w.Len())
	}
	snap := w.Snapshot()
	if snap[len(snap)-1] != spawned {
		t.Errorf("expected spawned %+v appended, got %v", spawned, snap)
	}

	consumed, _ = w.Replace(Position{X: -100, Y: -100})
	if consumed {
		t.Error("miss reported as consumed")
	}
	if w.Len() != 4 {
		t.Errorf("a miss still spawns: expected 4, got %d", w.Len())
	}
}

func TestWorldTopUp(t *testing.T) {
	w := newTestWorld(1)
	spawned := w.TopUp(3)
	if len(spawned) != 2 || w.Len() != 3 {
		t.Errorf("expected 2 spawned to reach 3, got %d spawned, %d total", len(spawned), w.Len())
	}

	w = newTestWorld(5)
	if spawned := w.TopUp(3); len(spawned) != 0 {
		t.Errorf("top-up above the floor spawned %d", len(spawned))
	}
	if w.Len() != 5 {
		t.Errorf("top-up must never reduce the count, got %d", w.Len())
	}
}

func TestWorldSnapshotIsCopy(t *testing.T) {
	w := newTestWorld(2)
	snap := w.Snapshot()
	snap[0] = Position{X: -1, Y: -1}
	if w.Snapshot()[0] == snap[0] {
		t.Error("snapshot aliases world storage")
	}
}
