package main

import (
	"log"
	"sync"
	"time"
)

// Hub is the connection lifecycle manager. It admits connections, registers
// them as participants, and fans server messages out to them.
type Hub struct {
	cfg        Config
	sessions   *Registry
	world      *World
	journal    *Journal
	dispatcher *Dispatcher
	started    time.Time

	// fanoutMu is held from snapshot to last enqueue of every broadcast and
	// across Join, so each connection sees frames in the order they were built.
	fanoutMu sync.Mutex

	// Connection limiting (accessed from HTTP handlers)
	connMu     sync.Mutex
	ipConns    map[string]int
	totalConns int
}

// NewHub creates a Hub around the given world. journal may be nil.
func NewHub(cfg Config, world *World, journal *Journal) *Hub {
	h := &Hub{
		cfg:      cfg,
		sessions: NewRegistry(),
		world:    world,
		journal:  journal,
		started:  time.Now(),
		ipConns:  make(map[string]int),
	}
	h.dispatcher = NewDispatcher(h.sessions, world, journal, h.BroadcastWorld)
	return h
}

// Admit reserves a connection slot for ip, or reports false when either the
// total or the per-IP cap is reached. A zero cap means unlimited.
func (h *Hub) Admit(ip string) bool {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	if h.cfg.MaxConns > 0 && h.totalConns >= h.cfg.MaxConns {
		return false
	}
	if h.cfg.MaxConnsPerIP > 0 && h.ipConns[ip] >= h.cfg.MaxConnsPerIP {
		return false
	}
	h.ipConns[ip]++
	h.totalConns++
	return true
}

// Release frees a slot reserved by Admit
func (h *Hub) Release(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]--
	if h.ipConns[ip] <= 0 {
		delete(h.ipConns, ip)
	}
	h.totalConns--
}

// Join registers conn as a new participant, sends it assign_id and then
// broadcasts the world to everyone, the newcomer included.
func (h *Hub) Join(conn Sender) int {
	h.fanoutMu.Lock()
	defer h.fanoutMu.Unlock()

	id := h.sessions.Register(conn)
	h.journal.Track(EvtSessionStart, id, nil)

	frame, err := conn.Codec().Encode(Outbound{Type: MsgAssignID, PlayerID: id})
	if err != nil {
		log.Printf("player %d: %v", id, err)
	} else {
		h.deliver(id, conn, frame)
	}
	h.broadcastWorldLocked()
	return id
}

// Leave removes participant id. It is safe to call more than once.
func (h *Hub) Leave(id int) {
	if h.sessions.Remove(id) {
		h.journal.Track(EvtSessionEnd, id, nil)
	}
}

// Dispatch routes one inbound frame from participant id
func (h *Hub) Dispatch(id int, raw []byte) error {
	return h.dispatcher.Dispatch(id, raw)
}

// BroadcastWorld sends the current food layout to every connection
func (h *Hub) BroadcastWorld() {
	h.fanoutMu.Lock()
	defer h.fanoutMu.Unlock()
	h.broadcastWorldLocked()
}

func (h *Hub) broadcastWorldLocked() {
	cache := newFrameCache(Outbound{
		Type:    MsgMapState,
		Payload: MapState{FoodPositions: h.world.Snapshot()},
	})
	h.sessions.ForEachConnection(func(id int, conn Sender) {
		frame, err := cache.get(conn.Codec())
		if err != nil {
			log.Printf("map_state: %v", err)
			return
		}
		h.deliver(id, conn, frame)
	})
}

// BroadcastPeers sends each participant the latest state of every other
// participant. Each recipient gets its own filtered list.
func (h *Hub) BroadcastPeers() {
	h.fanoutMu.Lock()
	defer h.fanoutMu.Unlock()

	h.sessions.ForEachConnection(func(id int, conn Sender) {
		frame, err := conn.Codec().Encode(Outbound{
			Type:    MsgPlayerStates,
			Payload: h.sessions.SnapshotExcluding(id),
		})
		if err != nil {
			log.Printf("player_states for %d: %v", id, err)
			return
		}
		h.deliver(id, conn, frame)
	})
}

// Replenish tops the world up to the floor and broadcasts when anything spawned.
func (h *Hub) Replenish(floor int) int {
	spawned := h.world.TopUp(floor)
	if len(spawned) == 0 {
		return 0
	}
	for _, pos := range spawned {
		h.journal.Track(EvtFoodSpawned, 0, foodEvent{Position: pos})
	}
	h.BroadcastWorld()
	return len(spawned)
}

// deliver hands a frame to conn. A failed send counts as a disconnect.
func (h *Hub) deliver(id int, conn Sender, frame Frame) {
	if err := conn.SendFrame(frame); err != nil {
		log.Printf("player %d: send failed, dropping connection: %v", id, err)
		conn.Close()
		h.Leave(id)
	}
}

// HubStats is reported on /admin/stats
type HubStats struct {
	Participants  int            `json:"participants"`
	Connections   int            `json:"connections"`
	Food          int            `json:"food"`
	UptimeSeconds float64        `json:"uptime_seconds"`
	Events        map[string]int `json:"events,omitempty"`
	Seen          int            `json:"participants_seen,omitempty"`
	Dropped       int            `json:"journal_dropped,omitempty"`
}

// Stats returns a point-in-time summary of the hub
func (h *Hub) Stats() HubStats {
	h.connMu.Lock()
	conns := h.totalConns
	h.connMu.Unlock()

	stats := HubStats{
		Participants:  h.sessions.Len(),
		Connections:   conns,
		Food:          h.world.Len(),
		UptimeSeconds: time.Since(h.started).Seconds(),
		Dropped:       h.journal.Dropped(),
	}
	if counts, err := h.journal.EventCounts(); err != nil {
		log.Printf("stats: event counts: %v", err)
	} else {
		stats.Events = counts
	}
	if seen, err := h.journal.ParticipantsSeen(); err != nil {
		log.Printf("stats: participants seen: %v", err)
	} else {
		stats.Seen = seen
	}
	return stats
}
