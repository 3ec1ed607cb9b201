package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Event types recorded in the journal
const (
	EvtSessionStart = "session_start"
	EvtSessionEnd   = "session_end"
	EvtFoodEaten    = "food_eaten"
	EvtFoodSpawned  = "food_spawned"
)

const (
	journalQueueSize  = 1024
	journalBatchSize  = 50
	journalFlushEvery = 5 * time.Second
)

// JournalEvent is a single recorded event
type JournalEvent struct {
	Type      string
	PlayerID  int
	Data      string // JSON metadata (optional)
	Timestamp time.Time
}

type foodEvent struct {
	Position
	Consumed bool `json:"consumed,omitempty"`
}

// Journal is an operator event log backed by SQLite, written in batches from
// a background goroutine. A nil *Journal is valid and records nothing.
// It never holds world state.
type Journal struct {
	conn *sql.DB
	// runID tags every event written by this process. Participant ids
	// restart at 1 on each run.
	runID  string
	events chan JournalEvent
	stop   chan struct{}
	wg     sync.WaitGroup

	closeOnce sync.Once
	mu        sync.Mutex
	dropped   int
}

// OpenJournal opens (or creates) the journal database at path. An empty path
// disables the journal and returns nil.
func OpenJournal(path string) (*Journal, error) {
	if path == "" {
		return nil, nil
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	// Enable WAL mode for better concurrency
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("journal pragma: %w", err)
	}

	j := &Journal{
		conn:   conn,
		runID:  uuid.NewString(),
		events: make(chan JournalEvent, journalQueueSize),
		stop:   make(chan struct{}),
	}
	if err := j.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	j.wg.Add(1)
	go j.writer()
	return j, nil
}

func (j *Journal) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_type TEXT NOT NULL,
		run_id TEXT,
		player_id INTEGER,
		data TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_type ON events(event_type);
	`
	if _, err := j.conn.Exec(schema); err != nil {
		return fmt.Errorf("journal migrate: %w", err)
	}

	// Journals created before run ids were recorded
	var hasRunID int
	if err := j.conn.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('events') WHERE name = 'run_id'`).Scan(&hasRunID); err != nil {
		return fmt.Errorf("journal migrate: %w", err)
	}
	if hasRunID == 0 {
		if _, err := j.conn.Exec(`ALTER TABLE events ADD COLUMN run_id TEXT`); err != nil {
			return fmt.Errorf("journal migrate: %w", err)
		}
	}
	return nil
}

// Track enqueues an event without blocking. data is marshaled to JSON when
// non-nil. Events are dropped when the queue is full.
func (j *Journal) Track(evtType string, playerID int, data any) {
	if j == nil {
		return
	}
	evt := JournalEvent{
		Type:      evtType,
		PlayerID:  playerID,
		Timestamp: time.Now().UTC(),
	}
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			log.Printf("journal: marshal %s: %v", evtType, err)
		} else {
			evt.Data = string(b)
		}
	}

	select {
	case <-j.stop:
		return
	default:
	}
	select {
	case j.events <- evt:
	default:
		j.mu.Lock()
		j.dropped++
		j.mu.Unlock()
	}
}

// Dropped returns how many events were discarded because the queue was full
func (j *Journal) Dropped() int {
	if j == nil {
		return 0
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.dropped
}

// Close flushes queued events and closes the database
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	var err error
	j.closeOnce.Do(func() {
		close(j.stop)
		j.wg.Wait()
		err = j.conn.Close()
	})
	return err
}

func (j *Journal) writer() {
	defer j.wg.Done()

	batch := make([]JournalEvent, 0, journalBatchSize)
	ticker := time.NewTicker(journalFlushEvery)
	defer ticker.Stop()

	for {
		select {
		case evt := <-j.events:
			batch = append(batch, evt)
			if len(batch) >= journalBatchSize {
				j.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				j.flush(batch)
				batch = batch[:0]
			}
		case <-j.stop:
		drain:
			for {
				select {
				case evt := <-j.events:
					batch = append(batch, evt)
				default:
					break drain
				}
			}
			j.flush(batch)
			return
		}
	}
}

// flush writes a batch of events in one transaction
func (j *Journal) flush(events []JournalEvent) {
	if len(events) == 0 {
		return
	}
	tx, err := j.conn.Begin()
	if err != nil {
		log.Printf("journal: begin tx error: %v", err)
		return
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO events (event_type, run_id, player_id, data, created_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		log.Printf("journal: prepare error: %v", err)
		return
	}
	defer stmt.Close()

	for _, evt := range events {
		pid := sql.NullInt64{Int64: int64(evt.PlayerID), Valid: evt.PlayerID > 0}
		data := sql.NullString{String: evt.Data, Valid: evt.Data != ""}
		if _, err := stmt.Exec(evt.Type, j.runID, pid, data, evt.Timestamp.Format(time.RFC3339Nano)); err != nil {
			log.Printf("journal: insert error: %v", err)
		}
	}
	if err := tx.Commit(); err != nil {
		log.Printf("journal: commit error: %v", err)
	}
}

// EventCounts returns the number of persisted events per type
func (j *Journal) EventCounts() (map[string]int, error) {
	if j == nil {
		return nil, nil
	}
	rows, err := j.conn.Query(`SELECT event_type, COUNT(*) FROM events GROUP BY event_type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]int)
	for rows.Next() {
		var evtType string
		var count int
		if err := rows.Scan(&evtType, &count); err != nil {
			return nil, err
		}
		result[evtType] = count
	}
	return result, rows.Err()
}

// ParticipantsSeen returns the number of participants that ever connected,
// across every run recorded in the journal
func (j *Journal) ParticipantsSeen() (int, error) {
	if j == nil {
		return 0, nil
	}
	var count int
	err := j.conn.QueryRow(`
		SELECT COUNT(*) FROM (
			SELECT DISTINCT run_id, player_id FROM events
			WHERE event_type = ? AND player_id IS NOT NULL
		)
	`, EvtSessionStart).Scan(&count)
	return count, err
}
