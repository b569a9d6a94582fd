package storage

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"
)

const postgresSchema = `create table if not exists kv (
	key     text primary key,
	value   text not null,
	version bigint not null,
	deleted boolean not null default false
)`

// postgresUpgrade adds the tombstone column to tables created before it existed.
const postgresUpgrade = `alter table kv add column if not exists deleted boolean not null default false`

// Postgres is a KV backed by a single PostgreSQL table.
type Postgres struct {
	ctx    context.Context
	logger *zap.SugaredLogger
	pool   *pgxpool.Pool
}

func NewPostgres(ctx context.Context, l *zap.SugaredLogger) *Postgres {
	return &Postgres{ctx: ctx, logger: l}
}

func (s *Postgres) Connect(dsn string) error {
	var err error
	s.pool, err = pgxpool.Connect(s.ctx, dsn)
	if err != nil {
		return err
	}
	s.logger.Debug("Ensuring kv table exists.")
	if _, err = s.pool.Exec(s.ctx, postgresSchema); err != nil {
		return err
	}
	_, err = s.pool.Exec(s.ctx, postgresUpgrade)
	return err
}

func (s *Postgres) Begin(ctx context.Context, fn func(pgx.Tx) error) error {
	return s.pool.BeginFunc(ctx, fn)
}

func (s *Postgres) Get(ctx context.Context, key string) (*Item, error) {
	var value string
	it := &Item{}
	if err := s.pool.QueryRow(ctx, `select value, version from kv where key = $1 and not deleted`, key).Scan(&value, &it.Version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	it.Value = []byte(value)
	return it, nil
}

// Put creates (version 0) or replaces (matching version) the value under key. Creation over a
// tombstone continues its version sequence, so a stale version can never match again.
func (s *Postgres) Put(ctx context.Context, key string, value []byte, version int64) (int64, error) {
	var next int64
	if err := s.Begin(ctx, func(tx pgx.Tx) error {
		if version == 0 {
			return tx.QueryRow(ctx, `insert into kv (key, value, version) values ($1, $2, 1)
				on conflict (key) do update set value = excluded.value, version = kv.version + 1, deleted = false
				where kv.deleted
				returning version`, key, string(value)).Scan(&next)
		}
		return tx.QueryRow(ctx, `update kv set value = $2, version = version + 1
			where key = $1 and version = $3 and not deleted
			returning version`, key, string(value), version).Scan(&next)
	}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isRollback(err) {
			return 0, ErrConflict
		}
		return 0, err
	}
	return next, nil
}

// isRollback reports serialization failures and deadlocks (SQLSTATE class 40), which a retry
// resolves.
func isRollback(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "40")
}

// Delete turns the row into a tombstone with a bumped version.
func (s *Postgres) Delete(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `update kv set value = '', version = version + 1, deleted = true where key = $1 and not deleted`, key)
	return err
}

func (s *Postgres) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
