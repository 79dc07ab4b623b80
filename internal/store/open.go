package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendMySQL  = "mysql"
	BackendBadger = "badger"
	BackendConsul = "consul"
	BackendMemory = "memory"
)

// Open builds the named backend. location is a file path for sqlite, a
// directory for badger, a DSN for mysql and an agent address for consul.
func Open(backend, location string) (Store, error) {
	switch backend {
	case BackendSQLite:
		if err := ensureParent(location); err != nil {
			return nil, err
		}
		return Init(location)
	case BackendMySQL:
		return OpenMySQL(location)
	case BackendBadger:
		if err := os.MkdirAll(location, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create badger dir: %w", err)
		}
		return NewBadgerStore(location)
	case BackendConsul:
		return NewConsulStore(location)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

func ensureParent(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	return nil
}
