package database

import (
	"context"
	"io"
)

// Storage persists the full user collection. Every mutation is a
// read-modify-write of the whole collection; there are no partial updates.
type Storage interface {
	// Init creates the backing collection holding an empty list if it does
	// not exist yet. Calling it on existing storage must leave it unchanged.
	Init(ctx context.Context) error

	// Load returns the full collection in storage order.
	// Missing or corrupt storage is an error.
	Load(ctx context.Context) ([]UserRecord, error)

	// Save replaces the full collection
	Save(ctx context.Context, records []UserRecord) error
}

// Describer is implemented by backends that can name where they store data
// (file path, table, bucket key). Used for startup logs and the config endpoint.
type Describer interface {
	Describe() string
}

// Describe returns a human-readable location for s, or "" if unknown.
func Describe(s Storage) string {
	if d, ok := s.(Describer); ok {
		return d.Describe()
	}
	return ""
}

// CloseStorage releases resources held by s when it owns any (connection pools, clients).
func CloseStorage(s Storage) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
