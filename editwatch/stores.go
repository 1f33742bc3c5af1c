package editwatch

import (
	"fmt"
	"log/slog"

	"github.com/hazyhaar/storyedit/editwatch/internal/kvstore"
)

// Store is the persistent keyed store the snapshot logs and the candidate
// artifact live in.
type Store = kvstore.Store

// ErrQuotaExceeded is returned by a store that rejects a write for size.
var ErrQuotaExceeded = kvstore.ErrQuotaExceeded

// NewMemoryStore creates an in-memory store. quota > 0 caps the total
// stored bytes.
func NewMemoryStore(quota int) Store {
	return kvstore.NewMemory(quota)
}

// OpenSQLiteStore opens a SQLite-backed store at path.
func OpenSQLiteStore(path string) (Store, error) {
	s, err := kvstore.OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// OpenBadgerStore opens a Badger-backed store in the directory path.
func OpenBadgerStore(path string, logger *slog.Logger) (Store, error) {
	s, err := kvstore.OpenBadger(kvstore.BadgerConfig{Path: path, Logger: logger})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// OpenStore opens the backend named by cfg.
func OpenStore(cfg StoreConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(cfg.Quota), nil
	case "sqlite":
		return OpenSQLiteStore(cfg.Path)
	case "badger":
		return OpenBadgerStore(cfg.Path, logger)
	default:
		return nil, fmt.Errorf("editwatch: unknown store backend %q", cfg.Backend)
	}
}
