// Package storage is the persisted key/value area session state lives in. It
// plays the role a browser's localStorage plays for a web client: a small
// string-keyed store that survives restarts and may refuse writes once a byte
// quota is reached.
//
// Three backends are provided: [Memory] for tests and one-shot commands,
// [File] which keeps a YAML document on disk, and [SQLite] which keeps a
// key/value table in a SQLite database. Values are opaque bytes; [GetValue]
// and [SetValue] encode structured values with a [Codec].
package storage

import (
	"fmt"
	"strings"

	"github.com/collabnotes/collabnotes.go/pkg/constants"
)

// ErrQuotaExceeded is returned by Set when the write would take the store
// over its quota. The store is left unchanged.
var ErrQuotaExceeded = constants.ErrQuotaExceeded

// Storage is a persistent string-keyed byte store.
type Storage interface {
	// Get returns the value for key and whether it exists.
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	// Remove deletes key. Removing a missing key is not an error.
	Remove(key string) error
	// Clear deletes every key.
	Clear() error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config selects and configures a backend.
type Config struct {
	Backend string `yaml:"backend"`
	// Path is the file or database path. Ignored by the memory backend.
	Path string `yaml:"path"`
	// Quota is the maximum total size in bytes of keys and values. Zero means
	// unlimited.
	Quota int `yaml:"quota"`
}

// Open creates the backend described by cfg.
func Open(cfg Config) (Storage, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendMemory:
		return NewMemory(cfg.Quota), nil
	case BackendFile, "yaml":
		return OpenFile(cfg.Path, cfg.Quota)
	case BackendSQLite:
		return OpenSQLite(cfg.Path, cfg.Quota)
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}

// entrySize is what a key/value pair counts against the quota.
func entrySize(key string, value []byte) int {
	return len(key) + len(value)
}

func checkQuota(quota, used, oldSize, newSize int) error {
	if quota > 0 && used-oldSize+newSize > quota {
		return fmt.Errorf("%w: %d of %d bytes used", ErrQuotaExceeded, used, quota)
	}
	return nil
}
