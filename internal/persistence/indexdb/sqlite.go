// Package indexdb keeps a sqlite read-model of resolved teleport requests.
// It is a secondary index for ad-hoc queries; the hub never reads it and a
// write failure never reaches the sim.
package indexdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"tpahub/internal/sim/hub"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan hub.AuditEntry
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		// Generous buffer so a burst of resolutions never stalls the caller.
		ch: make(chan hub.AuditEntry, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	// NORMAL is a decent durability/perf tradeoff for a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS requests (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			tick INTEGER NOT NULL,
			event TEXT NOT NULL,
			target_id TEXT NOT NULL,
			target_name TEXT NOT NULL,
			requester_id TEXT NOT NULL,
			requester_name TEXT NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_requests_event_tick ON requests(event, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_requests_target_tick ON requests(target_id, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_requests_requester_tick ON requests(requester_id, tick);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Record implements hub.AuditRecorder. Entries are dropped when the index is
// closed or the buffer is full.
func (s *SQLiteIndex) Record(e hub.AuditEntry) {
	if s.closed.Load() {
		return
	}
	select {
	case s.ch <- e:
	default:
	}
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insert, err := s.db.Prepare(`INSERT INTO requests(tick,event,target_id,target_name,requester_id,requester_name,recorded_at) VALUES(?,?,?,?,?,?,?)`)
	if err != nil {
		for range s.ch {
		}
		return
	}
	defer insert.Close()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 256
		commitMaxWait = 2 * time.Second
	)

	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for e := range s.ch {
		if tx == nil {
			txx, err := s.db.BeginTx(ctx, nil)
			if err != nil {
				time.Sleep(50 * time.Millisecond)
				continue
			}
			tx = txx
			opCount = 0
			lastCommit = time.Now()
		}
		if _, err := tx.Stmt(insert).Exec(
			int64(e.Tick),
			e.Event,
			e.TargetID,
			e.TargetName,
			e.RequesterID,
			e.RequesterName,
			time.Now().UTC().Format(time.RFC3339),
		); err != nil {
			_ = tx.Rollback()
			tx = nil
			opCount = 0
			continue
		}
		opCount++
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	commit()
}

// CountByEvent returns how many recorded requests resolved with each event.
func (s *SQLiteIndex) CountByEvent() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT event, COUNT(*) FROM requests GROUP BY event`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var event string
		var n int
		if err := rows.Scan(&event, &n); err != nil {
			return nil, err
		}
		out[event] = n
	}
	return out, rows.Err()
}

// Recent returns the latest n entries, newest first.
func (s *SQLiteIndex) Recent(n int) ([]hub.AuditEntry, error) {
	rows, err := s.db.Query(`SELECT tick,event,target_id,target_name,requester_id,requester_name FROM requests ORDER BY seq DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []hub.AuditEntry
	for rows.Next() {
		var e hub.AuditEntry
		if err := rows.Scan(&e.Tick, &e.Event, &e.TargetID, &e.TargetName, &e.RequesterID, &e.RequesterName); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
