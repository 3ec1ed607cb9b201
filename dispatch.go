package main

import (
	"fmt"
)

// Dispatcher routes inbound envelopes to the registry and the world.
// It never closes a connection; every failure comes back as an error for the
// caller to log.
type Dispatcher struct {
	sessions *Registry
	world    *World
	journal  *Journal
	// onWorldChanged broadcasts map_state right after an eat_food.
	onWorldChanged func()
}

// NewDispatcher creates a Dispatcher. onWorldChanged may be nil.
func NewDispatcher(sessions *Registry, world *World, journal *Journal, onWorldChanged func()) *Dispatcher {
	return &Dispatcher{
		sessions:       sessions,
		world:          world,
		journal:        journal,
		onWorldChanged: onWorldChanged,
	}
}

// Dispatch handles one raw text frame from participant from.
func (d *Dispatcher) Dispatch(from int, raw []byte) error {
	msgType, message, err := ParseEnvelope(raw)
	if err != nil {
		return err
	}

	switch msgType {
	case MsgPlayerState:
		return d.handlePlayerState(message)
	case MsgEatFood:
		return d.handleEatFood(from, message)
	default:
		return protocolErrorf("invalid message type %q", msgType)
	}
}

// handlePlayerState stores the submitted state under the payload's
// player_id. Clients are trusted to report their own identifier.
func (d *Dispatcher) handlePlayerState(message string) error {
	state, err := DecodePlayerState(message)
	if err != nil {
		return err
	}
	if err := d.sessions.UpdateState(state.PlayerID, state); err != nil {
		return fmt.Errorf("player_state for %d: %w", state.PlayerID, err)
	}
	return nil
}

func (d *Dispatcher) handleEatFood(from int, message string) error {
	pos, err := DecodePosition(message)
	if err != nil {
		return err
	}
	consumed, spawned := d.world.Replace(pos)
	d.journal.Track(EvtFoodEaten, from, foodEvent{Position: pos, Consumed: consumed})
	d.journal.Track(EvtFoodSpawned, from, foodEvent{Position: spawned})
	if d.onWorldChanged != nil {
		d.onWorldChanged()
	}
	return nil
}
