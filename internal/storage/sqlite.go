package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	// registers the "sqlite" database/sql driver
	_ "modernc.org/sqlite"
)

const sqliteSchema = `create table if not exists kv (
	key     text primary key,
	value   blob not null,
	version integer not null,
	deleted integer not null default 0
)`

// SQLite is a KV backed by an embedded SQLite database file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create kv table: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Get(ctx context.Context, key string) (*Item, error) {
	it := &Item{}
	if err := s.db.QueryRowContext(ctx, `select value, version from kv where key = ? and deleted = 0`, key).Scan(&it.Value, &it.Version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return it, nil
}

// Put creates (version 0) or replaces (matching version) the value under key. Creation over a
// tombstone continues its version sequence.
func (s *SQLite) Put(ctx context.Context, key string, value []byte, version int64) (int64, error) {
	var next int64
	var err error
	if version == 0 {
		err = s.db.QueryRowContext(ctx, `insert into kv (key, value, version) values (?, ?, 1)
			on conflict (key) do update set value = excluded.value, version = kv.version + 1, deleted = 0
			where kv.deleted = 1
			returning version`, key, value).Scan(&next)
	} else {
		err = s.db.QueryRowContext(ctx, `update kv set value = ?, version = version + 1
			where key = ? and version = ? and deleted = 0
			returning version`, value, key, version).Scan(&next)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrConflict
	}
	if err != nil {
		return 0, err
	}
	return next, nil
}

// Delete turns the row into a tombstone with a bumped version.
func (s *SQLite) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `update kv set value = x'', version = version + 1, deleted = 1 where key = ? and deleted = 0`, key)
	return err
}

func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
