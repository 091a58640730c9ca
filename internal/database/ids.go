package database

import (
	"fmt"

	"github.com/google/uuid"
)

// IDGenerator produces identifiers for new records
type IDGenerator interface {
	NewID() (string, error)
}

// IDGeneratorFunc adapts a plain function to IDGenerator.
type IDGeneratorFunc func() (string, error)

// NewID calls f.
func (f IDGeneratorFunc) NewID() (string, error) {
	return f()
}

// UUIDGenerator issues UUIDv7 identifiers. They sort by creation time,
// so listings keyed by id still read in registration order.
type UUIDGenerator struct{}

// NewID returns a fresh UUIDv7 string.
func (UUIDGenerator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generating uuid: %w", err)
	}
	return id.String(), nil
}
