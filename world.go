package main

import (
	"math/rand/v2"
	"sync"
)

// WorldConfig bounds spawned food. Positions fall in
// [Boundary, Boundary+Width) x [Boundary, Boundary+Height).
type WorldConfig struct {
	Width    int
	Height   int
	Boundary int
}

// World holds the food positions shared by every participant
type World struct {
	mu   sync.Mutex
	cfg  WorldConfig
	rng  *rand.Rand
	food []Position
}

// NewWorld creates a World and spawns initial food items
func NewWorld(cfg WorldConfig, rng *rand.Rand, initial int) *World {
	w := &World{
		cfg:  cfg,
		rng:  rng,
		food: make([]Position, 0, initial),
	}
	for i := 0; i < initial; i++ {
		w.spawnLocked()
	}
	return w
}

// Spawn places a food item at a random position and returns it.
// Coincident food is allowed.
func (w *World) Spawn() Position {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.spawnLocked()
}

// Consume removes the first item at pos. A miss is a normal outcome.
func (w *World) Consume(pos Position) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.consumeLocked(pos)
}

// Replace consumes pos, then spawns one item whether or not pos was found.
// The pair runs under one lock so the item count is unchanged.
func (w *World) Replace(pos Position) (consumed bool, spawned Position) {
	w.mu.Lock()
	defer w.mu.Unlock()
	consumed = w.consumeLocked(pos)
	spawned = w.spawnLocked()
	return consumed, spawned
}

// TopUp spawns items until there are at least floor of them.
func (w *World) TopUp(floor int) []Position {
	w.mu.Lock()
	defer w.mu.Unlock()

	var spawned []Position
	for len(w.food) < floor {
		spawned = append(spawned, w.spawnLocked())
	}
	return spawned
}

// Snapshot returns a copy of the food positions in insertion order
func (w *World) Snapshot() []Position {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Position, len(w.food))
	copy(out, w.food)
	return out
}

// Len returns the number of food items
func (w *World) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.food)
}

func (w *World) spawnLocked() Position {
	pos := Position{
		X: w.cfg.Boundary + w.rng.IntN(max(w.cfg.Width, 1)),
		Y: w.cfg.Boundary + w.rng.IntN(max(w.cfg.Height, 1)),
	}
	w.food = append(w.food, pos)
	return pos
}

func (w *World) consumeLocked(pos Position) bool {
	for i, p := range w.food {
		if p == pos {
			w.food = append(w.food[:i], w.food[i+1:]...)
			return true
		}
	}
	return false
}
