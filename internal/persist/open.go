package persist

import (
	"fmt"
	"strings"
)

// Backend names accepted by Open.
const (
	BackendFile    = "file"
	BackendSQLite  = "sqlite"
	BackendLevelDB = "leveldb"
	BackendMemory  = "memory"
)

// Backends lists every name Open understands.
var Backends = []string{BackendFile, BackendSQLite, BackendLevelDB, BackendMemory}

// Open constructs the adapter named by kind. path is ignored for the memory backend.
func Open(kind, path string) (Adapter, error) {
	switch strings.ToLower(kind) {
	case BackendFile, "json":
		if path == "" {
			return nil, fmt.Errorf("file backend requires a path")
		}
		return NewFileAdapter(path), nil
	case BackendSQLite:
		if path == "" {
			return nil, fmt.Errorf("sqlite backend requires a path")
		}
		a, err := NewSQLiteAdapter(path)
		if err != nil {
			return nil, err
		}
		return a, nil
	case BackendLevelDB:
		if path == "" {
			return nil, fmt.Errorf("leveldb backend requires a path")
		}
		a, err := NewLevelDBAdapter(path)
		if err != nil {
			return nil, err
		}
		return a, nil
	case BackendMemory:
		return NewMemoryAdapter(nil), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", kind)
	}
}
