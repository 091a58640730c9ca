package database

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/kozaktomas/face-registry/internal/config"
)

// BackendFactory opens a storage backend from configuration.
type BackendFactory func(ctx context.Context, cfg *config.Config) (Storage, error)

var (
	backendsMu sync.RWMutex
	backends   = map[string]BackendFactory{}
)

// RegisterBackend registers a storage backend under name.
// Backends live in sub-packages that import this one, so they are
// registered by the caller (cmd) to avoid import cycles.
func RegisterBackend(name string, factory BackendFactory) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[name] = factory
}

// Backends returns the registered backend names, sorted.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// OpenStorage opens the named backend
func OpenStorage(ctx context.Context, name string, cfg *config.Config) (Storage, error) {
	backendsMu.RLock()
	factory, ok := backends[name]
	backendsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown storage backend %q (available: %v)", name, Backends())
	}

	s, err := factory(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening %s storage: %w", name, err)
	}
	return s, nil
}
