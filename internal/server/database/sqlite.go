package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/circa10a/countdown/internal/timer"

	// Import the sqlite driver that requires no CGO deps
	_ "modernc.org/sqlite"
)

const (
	sqliteDBName = "timers_sqlite.db"
	timerColumns = `name, total_seconds, seconds_left, loop, active`
)

// SQLiteStore is an implementation of the Store interface for SQLite.
// The revision is a counter bumped by every successful Save.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (and creates if needed) the database under dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqliteConnect(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &SQLiteStore{
		db:   db,
		path: filepath.Join(dbPath, sqliteDBName),
	}, nil
}

// Init creates the necessary database tables if they do not already exist.
func (s *SQLiteStore) Init() error {
	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Load reads every timer and the current revision in one transaction.
func (s *SQLiteStore) Load(ctx context.Context) (Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Snapshot{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var revision int64
	err = tx.QueryRowContext(ctx, `SELECT revision FROM store_revision WHERE id = 1`).Scan(&revision)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Snapshot{}, &CorruptError{Source: s.path, Err: errors.New("missing store revision")}
		}
		return Snapshot{}, err
	}

	rows, err := tx.QueryContext(ctx, fmt.Sprintf("SELECT %s FROM timers", timerColumns))
	if err != nil {
		return Snapshot{}, err
	}
	defer func() { _ = rows.Close() }()

	timers, err := s.scanTimers(rows)
	if err != nil {
		return Snapshot{}, err
	}

	err = validateSet(s.path, timers)
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{Timers: timers}
	if revision > 0 {
		snap.Revision = strconv.FormatInt(revision, 10)
	}

	return snap, nil
}

// Save replaces every row and bumps the revision, failing with ErrConflict if
// the revision moved since snap was loaded.
func (s *SQLiteStore) Save(ctx context.Context, snap Snapshot) (Snapshot, error) {
	expected := int64(0)
	if snap.Revision != "" {
		var err error
		expected, err = strconv.ParseInt(snap.Revision, 10, 64)
		if err != nil {
			return Snapshot{}, fmt.Errorf("invalid revision %q: %w", snap.Revision, err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Snapshot{}, &WriteError{Source: s.path, Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `UPDATE store_revision SET revision = revision + 1 WHERE id = 1 AND revision = ?`, expected)
	if err != nil {
		return Snapshot{}, &WriteError{Source: s.path, Err: err}
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return Snapshot{}, &WriteError{Source: s.path, Err: err}
	}
	if rows == 0 {
		return Snapshot{}, ErrConflict
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM timers`)
	if err != nil {
		return Snapshot{}, &WriteError{Source: s.path, Err: err}
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO timers (%s) VALUES (?, ?, ?, ?, ?)", timerColumns))
	if err != nil {
		return Snapshot{}, &WriteError{Source: s.path, Err: err}
	}
	defer func() { _ = stmt.Close() }()

	timers := snap.Timers
	if timers == nil {
		timers = timer.Set{}
	}

	for _, name := range timers.Names() {
		t := timers[name]
		_, err = stmt.ExecContext(ctx, name, t.TotalSeconds, t.SecondsLeft, t.Loop, t.Active)
		if err != nil {
			return Snapshot{}, &WriteError{Source: s.path, Err: fmt.Errorf("timer %q: %w", name, err)}
		}
	}

	err = tx.Commit()
	if err != nil {
		return Snapshot{}, &WriteError{Source: s.path, Err: err}
	}

	return Snapshot{
		Timers:   timers.Clone(),
		Revision: strconv.FormatInt(expected+1, 10),
	}, nil
}

// Close closes the connection to the SQLite database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks if the database connection is still valid.
func (s *SQLiteStore) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	return s.db.PingContext(ctx)
}

// scanTimers is an internal helper that parses SQL rows into a timer set.
func (s *SQLiteStore) scanTimers(rows *sql.Rows) (timer.Set, error) {
	timers := timer.Set{}
	for rows.Next() {
		var name string
		t := timer.Timer{}

		err := rows.Scan(&name, &t.TotalSeconds, &t.SecondsLeft, &t.Loop, &t.Active)
		if err != nil {
			return nil, &CorruptError{Source: s.path, Err: fmt.Errorf("scan error: %w", err)}
		}

		timers[name] = t
	}

	err := rows.Err()
	if err != nil {
		return nil, err
	}

	return timers, nil
}

// sqliteConnect is an internal helper that sets up the database connection and directory.
func sqliteConnect(dbPath string) (*sql.DB, error) {
	err := os.MkdirAll(dbPath, 0750)
	if err != nil {
		return nil, err
	}

	fullPath := filepath.Join(dbPath, sqliteDBName)
	params := url.Values{}
	params.Add("_pragma", "journal_mode=WAL")
	params.Add("_pragma", "synchronous=NORMAL")
	params.Add("_pragma", "busy_timeout=5000")

	db, err := sql.Open("sqlite", fmt.Sprintf("%s?%s", fullPath, params.Encode()))
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)

	return db, db.Ping()
}
