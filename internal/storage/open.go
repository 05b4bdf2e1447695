package storage

import (
	"context"
	"errors"
	"fmt"
)

// Options selects and locates a Store.
type Options struct {
	// Driver is memory, mongo, postgres or sqlite.
	Driver string
	// DataDir makes the memory store persistent when set.
	DataDir  string
	DSN      string
	MongoURI string
	MongoDB  string
}

// Open connects the configured store.
func Open(ctx context.Context, opts Options) (Store, error) {
	var (
		s   Store
		err error
	)
	switch opts.Driver {
	case "", "memory":
		if opts.DataDir == "" {
			return NewMemoryStore(), nil
		}
		s, err = NewPersistentMemoryStore(opts.DataDir)
	case "mongo":
		s, err = NewMongoStore(ctx, opts.MongoURI, opts.MongoDB)
	case "postgres", "sqlite":
		s, err = NewSQLStore(opts.Driver, opts.DSN)
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ErrNotShared is returned by RequireShared for stores that live inside a
// single process.
var ErrNotShared = errors.New("store is not shared across processes")

// RequireShared rejects drivers whose state cannot be seen by a second
// process. The memory store, snapshot or not, is private to its process and
// rewrites the whole snapshot on every write.
func RequireShared(driver string) error {
	switch driver {
	case "mongo", "postgres", "sqlite":
		return nil
	case "", "memory":
		return fmt.Errorf("%w: %q", ErrNotShared, "memory")
	default:
		return fmt.Errorf("unknown store driver %q", driver)
	}
}
