// Package history persists the orchestrator's read/write/RSWP audit
// trail and a last-known-good cache of decoded SPD images to a local
// SQLite database.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps a SQLite connection opened in WAL mode.
type Store struct {
	conn *sql.DB
	path string
}

// Open creates the database directory if needed, opens the database in
// WAL mode, and runs migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("history: create directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("history: open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("history: ping database: %w", err)
	}

	s := &Store{conn: conn, path: path}
	if err := s.migrate(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("history: migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error   { return s.conn.Close() }
func (s *Store) Path() string   { return s.path }
func (s *Store) Conn() *sql.DB  { return s.conn }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		programmer TEXT NOT NULL,
		address INTEGER NOT NULL,
		kind TEXT NOT NULL,
		module TEXT,
		crc_valid INTEGER,
		detail TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS snapshots (
		programmer TEXT NOT NULL,
		address INTEGER NOT NULL,
		module TEXT,
		raw_hex TEXT NOT NULL,
		crc_valid INTEGER NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (programmer, address)
	);

	CREATE INDEX IF NOT EXISTS idx_events_programmer ON events(programmer);
	CREATE INDEX IF NOT EXISTS idx_events_address ON events(address);
	CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind);
	CREATE INDEX IF NOT EXISTS idx_events_created_at ON events(created_at);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// RecordEvent inserts an audit log row. CreatedAt and ID are populated
// on return.
func (s *Store) RecordEvent(e *Event) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	var crcValid interface{}
	if e.CrcValid != nil {
		crcValid = *e.CrcValid
	}
	result, err := s.conn.Exec(
		`INSERT INTO events (programmer, address, kind, module, crc_valid, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Programmer, e.Address, string(e.Kind), e.Module, crcValid, e.Detail, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("history: record event: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("history: last insert id: %w", err)
	}
	e.ID = id
	return nil
}

// ListEvents returns events matching filter, newest first.
func (s *Store) ListEvents(filter EventFilter) ([]*Event, error) {
	query := `SELECT id, programmer, address, kind, module, crc_valid, detail, created_at
	          FROM events WHERE 1=1`
	var args []interface{}

	if filter.Programmer != "" {
		query += " AND programmer = ?"
		args = append(args, filter.Programmer)
	}
	if filter.Address != nil {
		query += " AND address = ?"
		args = append(args, *filter.Address)
	}
	if filter.Kind != "" {
		query += " AND kind = ?"
		args = append(args, string(filter.Kind))
	}
	if filter.Since != nil {
		query += " AND created_at >= ?"
		args = append(args, *filter.Since)
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("history: list events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []*Event
	for rows.Next() {
		e := &Event{}
		var addr int
		var crcValid sql.NullBool
		if err := rows.Scan(&e.ID, &e.Programmer, &addr, &e.Kind, &e.Module, &crcValid, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("history: scan event: %w", err)
		}
		e.Address = byte(addr)
		if crcValid.Valid {
			v := crcValid.Bool
			e.CrcValid = &v
		}
		events = append(events, e)
	}
	return events, nil
}

// PutSnapshot upserts the last-known-good image cache for programmer+address.
func (s *Store) PutSnapshot(snap *ModuleSnapshot) error {
	if snap.UpdatedAt.IsZero() {
		snap.UpdatedAt = time.Now()
	}
	rawHex, err := snap.RawHex.Value()
	if err != nil {
		return fmt.Errorf("history: encode snapshot: %w", err)
	}
	_, err = s.conn.Exec(
		`INSERT INTO snapshots (programmer, address, module, raw_hex, crc_valid, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(programmer, address) DO UPDATE SET
		   module = excluded.module, raw_hex = excluded.raw_hex,
		   crc_valid = excluded.crc_valid, updated_at = excluded.updated_at`,
		snap.Programmer, snap.Address, snap.Module, rawHex, snap.CrcValid, snap.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("history: put snapshot: %w", err)
	}
	return nil
}

// GetSnapshot returns the cached image for programmer+address, or
// (nil, nil) if none has been recorded yet.
func (s *Store) GetSnapshot(programmer string, address byte) (*ModuleSnapshot, error) {
	snap := &ModuleSnapshot{}
	var addr int
	err := s.conn.QueryRow(
		`SELECT programmer, address, module, raw_hex, crc_valid, updated_at
		 FROM snapshots WHERE programmer = ? AND address = ?`,
		programmer, address,
	).Scan(&snap.Programmer, &addr, &snap.Module, &snap.RawHex, &snap.CrcValid, &snap.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("history: get snapshot: %w", err)
	}
	snap.Address = byte(addr)
	return snap, nil
}

// ListSnapshots returns every cached module for a programmer.
func (s *Store) ListSnapshots(programmer string) ([]*ModuleSnapshot, error) {
	rows, err := s.conn.Query(
		`SELECT programmer, address, module, raw_hex, crc_valid, updated_at
		 FROM snapshots WHERE programmer = ? ORDER BY address`,
		programmer,
	)
	if err != nil {
		return nil, fmt.Errorf("history: list snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snaps []*ModuleSnapshot
	for rows.Next() {
		snap := &ModuleSnapshot{}
		var addr int
		if err := rows.Scan(&snap.Programmer, &addr, &snap.Module, &snap.RawHex, &snap.CrcValid, &snap.UpdatedAt); err != nil {
			return nil, fmt.Errorf("history: scan snapshot: %w", err)
		}
		snap.Address = byte(addr)
		snaps = append(snaps, snap)
	}
	return snaps, nil
}
