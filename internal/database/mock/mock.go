// Package mock provides an in-memory implementation of database.Storage for testing.
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/kozaktomas/face-registry/internal/database"
)

// errNotInitialized mirrors a missing users file.
var errNotInitialized = errors.New("mock storage not initialized")

// MockStorage is an in-memory database.Storage with error injection
type MockStorage struct {
	mu          sync.RWMutex
	records     []database.UserRecord
	initialized bool

	// Error injection
	InitError error
	LoadError error
	SaveError error

	// Call counters
	InitCalls int
	LoadCalls int
	SaveCalls int
}

// NewMockStorage creates a mock storage that behaves as if Init already ran.
func NewMockStorage(records ...database.UserRecord) *MockStorage {
	return &MockStorage{
		records:     copyRecords(records),
		initialized: true,
	}
}

// NewUninitializedMockStorage creates a mock storage with no backing collection.
// Load fails until Init is called.
func NewUninitializedMockStorage() *MockStorage {
	return &MockStorage{}
}

// Init creates the empty collection if missing
func (m *MockStorage) Init(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InitCalls++
	if m.InitError != nil {
		return m.InitError
	}
	if !m.initialized {
		m.records = []database.UserRecord{}
		m.initialized = true
	}
	return nil
}

// Load returns a copy of the stored collection
func (m *MockStorage) Load(ctx context.Context) ([]database.UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LoadCalls++
	if m.LoadError != nil {
		return nil, m.LoadError
	}
	if !m.initialized {
		return nil, errNotInitialized
	}
	return copyRecords(m.records), nil
}

// Save replaces the stored collection
func (m *MockStorage) Save(ctx context.Context, records []database.UserRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveCalls++
	if m.SaveError != nil {
		return m.SaveError
	}
	m.records = copyRecords(records)
	m.initialized = true
	return nil
}

// Records returns a snapshot of the stored collection without counting as a Load
func (m *MockStorage) Records() []database.UserRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyRecords(m.records)
}

// Describe names the backend
func (m *MockStorage) Describe() string {
	return "memory"
}

func copyRecords(in []database.UserRecord) []database.UserRecord {
	out := make([]database.UserRecord, len(in))
	for i, r := range in {
		out[i] = r
		if r.Descriptors == nil {
			continue
		}
		out[i].Descriptors = make([]database.Descriptor, len(r.Descriptors))
		for j, d := range r.Descriptors {
			out[i].Descriptors[j] = append(database.Descriptor(nil), d...)
		}
	}
	return out
}
