package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Driver names a KV backend.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
	DriverMemory   Driver = "memory"
)

// Options selects and locates the backend opened by Open.
type Options struct {
	Driver      Driver
	PostgresDSN string
	SQLitePath  string
}

// Open connects to the backend named by o.Driver.
func Open(ctx context.Context, l *zap.SugaredLogger, o Options) (KV, error) {
	switch o.Driver {
	case DriverPostgres:
		s := NewPostgres(ctx, l)
		if err := s.Connect(o.PostgresDSN); err != nil {
			return nil, err
		}
		return s, nil
	case DriverSQLite:
		l.Debugf("Opening SQLite database %s.", o.SQLitePath)
		return OpenSQLite(o.SQLitePath)
	case DriverMemory:
		l.Warn("Using in-memory storage, reaction roles will be lost on exit.")
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", o.Driver)
	}
}
