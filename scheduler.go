package main

import (
	"context"
	"sync"
	"time"
)

// Scheduler drives the two periodic broadcasts: the peer-state tick and the
// world replenishment tick. Each runs on its own ticker so neither can delay
// the other.
type Scheduler struct {
	hub               *Hub
	peerInterval      time.Duration
	replenishInterval time.Duration
	floor             int
}

// NewScheduler creates a Scheduler from the hub's intervals and floor
func NewScheduler(hub *Hub, cfg Config) *Scheduler {
	return &Scheduler{
		hub:               hub,
		peerInterval:      cfg.PeerInterval,
		replenishInterval: cfg.ReplenishInterval,
		floor:             cfg.FoodFloor,
	}
}

// Run blocks until ctx is cancelled
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		every(ctx, s.peerInterval, s.PeerTick)
	}()
	go func() {
		defer wg.Done()
		every(ctx, s.replenishInterval, s.ReplenishTick)
	}()
	wg.Wait()
}

// PeerTick emits player_states to every connection
func (s *Scheduler) PeerTick() {
	s.hub.BroadcastPeers()
}

// ReplenishTick spawns food when the world is below the floor. It never removes items.
func (s *Scheduler) ReplenishTick() {
	s.hub.Replenish(s.floor)
}

func every(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}
