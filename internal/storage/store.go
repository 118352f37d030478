// internal/storage/store.go
package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Load when no profile has been stored.
var ErrNotFound = errors.New("no stored profile")

// Store persists one JSON profile document for the local user. It does not
// interpret the document; decoding and validation belong to the caller.
type Store interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, doc []byte) error
	Delete(ctx context.Context) error
	Close() error
}

// Kind names a Store implementation in configuration.
type Kind string

const (
	KindJSON   Kind = "json"
	KindSQLite Kind = "sqlite"
)

// Options selects and configures a Store.
type Options struct {
	Kind        Kind
	ProfilePath string
	DBPath      string
	User        string
}

// Open creates the Store described by opts.
func Open(opts Options) (Store, error) {
	switch opts.Kind {
	case KindJSON, "":
		return NewJSONFileStore(opts.ProfilePath), nil
	case KindSQLite:
		return NewSQLiteStore(opts.DBPath, opts.User)
	default:
		return nil, fmt.Errorf("unknown profile store %q", opts.Kind)
	}
}
