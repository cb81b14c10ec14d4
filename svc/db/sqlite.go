package db

import (
	"context"
	"database/sql"
	"time"

	"pastebin/svc/util"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const (
	defaultMaxOpenConns = 4
	defaultMaxIdleConns = 2
	defaultQueryTimeout = 10 * time.Second
)

// EntryRow is one persisted entry. List is "history", "pinnedHistory" or
// "deletedHistory"; Position is the index inside that list.
type EntryRow struct {
	List      string
	Position  int
	UUID      string
	Text      string
	CreatedAt sql.NullInt64
	DeletedAt sql.NullInt64
	ShortURL  sql.NullString
}

type SQLite struct {
	db           *sql.DB
	queryTimeout time.Duration
}

func (s *SQLite) DB() *sql.DB {
	return s.db
}
func NewSQLite(path string) (*SQLite, error) {
	return NewSQLiteWithConfig(path, defaultMaxOpenConns, defaultMaxIdleConns, defaultQueryTimeout)
}

func NewSQLiteWithConfig(path string, maxOpenConns, maxIdleConns int, queryTimeout time.Duration) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open db")
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxIdleTime(10 * time.Minute)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping db")
	}
	s := &SQLite{
		db:           db,
		queryTimeout: queryTimeout,
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "migration failed")
	}
	return s, nil
}
func (s *SQLite) migrate() error {
	if _, err := s.db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return errors.Wrap(err, "enable WAL mode")
	}
	if _, err := s.db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return errors.Wrap(err, "set busy timeout")
	}
	if _, err := s.db.Exec("PRAGMA synchronous=FULL"); err != nil {
		return errors.Wrap(err, "set synchronous mode")
	}
	query := `
	CREATE TABLE IF NOT EXISTS entries (
		list TEXT NOT NULL,
		position INTEGER NOT NULL,
		uuid TEXT NOT NULL,
		text TEXT NOT NULL,
		created_at INTEGER,
		deleted_at INTEGER,
		short_url TEXT,
		PRIMARY KEY (list, position)
	);
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(query)
	return err
}

// ReplaceSnapshot swaps the stored snapshot for rows and settings in one
// transaction, then checkpoints the WAL so the main file is current.
func (s *SQLite) ReplaceSnapshot(ctx context.Context, rows []EntryRow, settings map[string]string) error {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin snapshot tx")
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM entries`); err != nil {
		return errors.Wrap(err, "clear entries")
	}
	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO entries (list, position, uuid, text, created_at, deleted_at, short_url)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return errors.Wrap(err, "prepare insert")
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.List, r.Position, r.UUID, r.Text, r.CreatedAt, r.DeletedAt, r.ShortURL); err != nil {
			return errors.Wrapf(err, "insert %s.%d", r.List, r.Position)
		}
	}
	for k, v := range settings {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			k, v); err != nil {
			return errors.Wrapf(err, "upsert setting %s", k)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit snapshot")
	}
	if err := s.checkpoint(ctx); err != nil {
		util.Warn().Err(err).Msg("WAL checkpoint after snapshot failed")
	}
	return nil
}

// LoadSnapshot returns all rows ordered by list and position, and the settings.
// It runs an integrity check first so a damaged file is reported rather than
// half read.
func (s *SQLite) LoadSnapshot(ctx context.Context) ([]EntryRow, map[string]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	if err := s.verifyIntegrity(ctx); err != nil {
		return nil, nil, err
	}
	rs, err := s.db.QueryContext(ctx, `
	SELECT list, position, uuid, text, created_at, deleted_at, short_url
	FROM entries ORDER BY list, position
	`)
	if err != nil {
		return nil, nil, errors.Wrap(err, "query entries")
	}
	defer rs.Close()
	var rows []EntryRow
	for rs.Next() {
		var r EntryRow
		if err := rs.Scan(&r.List, &r.Position, &r.UUID, &r.Text, &r.CreatedAt, &r.DeletedAt, &r.ShortURL); err != nil {
			return nil, nil, errors.Wrap(err, "scan entry")
		}
		rows = append(rows, r)
	}
	if err := rs.Err(); err != nil {
		return nil, nil, errors.Wrap(err, "iterate entries")
	}
	settings := map[string]string{}
	ss, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, nil, errors.Wrap(err, "query settings")
	}
	defer ss.Close()
	for ss.Next() {
		var k, v string
		if err := ss.Scan(&k, &v); err != nil {
			return nil, nil, errors.Wrap(err, "scan setting")
		}
		settings[k] = v
	}
	return rows, settings, errors.Wrap(ss.Err(), "iterate settings")
}

func (s *SQLite) checkpoint(ctx context.Context) error {
	var busy, logPages, checkpointed int
	err := s.db.QueryRowContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)").Scan(&busy, &logPages, &checkpointed)
	if err != nil {
		return errors.Wrap(err, "wal checkpoint")
	}
	util.Debug().
		Int("busy", busy).
		Int("log", logPages).
		Int("checkpointed", checkpointed).
		Msg("WAL checkpoint result")
	return nil
}

func (s *SQLite) verifyIntegrity(ctx context.Context) error {
	var result string
	if err := s.db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return errors.Wrap(err, "integrity_check query failed")
	}
	if result != "ok" {
		return errors.Errorf("integrity_check returned: %s", result)
	}
	return nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	var result int
	return s.db.QueryRowContext(ctx, "SELECT 1").Scan(&result)
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
