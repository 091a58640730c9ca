package database

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// RecordStore owns the user collection and enforces case-insensitive name uniqueness.
// Mutations are serialized so concurrent requests in one process cannot lose
// each other's writes. Writers in other processes are not coordinated.
type RecordStore struct {
	storage Storage
	ids     IDGenerator
	now     func() time.Time

	mu      sync.Mutex
	version atomic.Uint64
}

// Option configures a RecordStore
type Option func(*RecordStore)

// WithIDGenerator replaces the default UUIDv7 generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *RecordStore) {
		s.ids = g
	}
}

// WithClock replaces time.Now for creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *RecordStore) {
		s.now = now
	}
}

// NewRecordStore creates a store on top of the given storage backend.
func NewRecordStore(storage Storage, opts ...Option) *RecordStore {
	s := &RecordStore{
		storage: storage,
		ids:     UUIDGenerator{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Storage returns the backend the store writes to.
func (s *RecordStore) Storage() Storage {
	return s.storage
}

// Version is bumped after every successful mutation made through this store.
func (s *RecordStore) Version() uint64 {
	return s.version.Load()
}

// Initialize makes sure the backing storage exists. Idempotent.
func (s *RecordStore) Initialize(ctx context.Context) error {
	if err := s.storage.Init(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageWriteFailed, err)
	}
	return nil
}

// Register appends a new record. The name is trimmed before validation
// and stored trimmed.
func (s *RecordStore) Register(ctx context.Context, name string, descriptors []Descriptor) (*UserRecord, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if len(descriptors) == 0 {
		return nil, fmt.Errorf("%w: descriptors must be a non-empty array", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	for i := range records {
		if SameName(records[i].Name, name) {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, records[i].Name)
		}
	}

	id, err := s.ids.NewID()
	if err != nil {
		return nil, fmt.Errorf("assigning id: %w", err)
	}

	record := UserRecord{
		ID:          id,
		Name:        name,
		Descriptors: cloneDescriptors(descriptors),
		// Millisecond precision survives every backend unchanged.
		CreatedAt: s.now().UTC().Truncate(time.Millisecond),
	}

	if err := s.save(ctx, append(records, record)); err != nil {
		return nil, err
	}
	s.version.Add(1)

	return &record, nil
}

// ListAll returns every record in insertion order. Never returns a nil slice on success.
func (s *RecordStore) ListAll(ctx context.Context) ([]UserRecord, error) {
	return s.load(ctx)
}

// Get returns the record with the given id.
func (s *RecordStore) Get(ctx context.Context, id string) (*UserRecord, error) {
	records, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].ID == id {
			return &records[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Delete removes the record whose id matches exactly and reports whether
// anything was removed. Deleting an unknown id is not an error and leaves
// storage untouched.
func (s *RecordStore) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(ctx)
	if err != nil {
		return false, err
	}

	kept := make([]UserRecord, 0, len(records))
	for i := range records {
		if records[i].ID != id {
			kept = append(kept, records[i])
		}
	}
	if len(kept) == len(records) {
		return false, nil
	}

	if err := s.save(ctx, kept); err != nil {
		return false, err
	}
	s.version.Add(1)

	return true, nil
}

// Replace overwrites the whole collection, e.g. when copying between backends.
// Ids and names must still be unique.
func (s *RecordStore) Replace(ctx context.Context, records []UserRecord) error {
	names := make(map[string]struct{}, len(records))
	ids := make(map[string]struct{}, len(records))
	for i := range records {
		if strings.TrimSpace(records[i].Name) == "" || records[i].ID == "" {
			return fmt.Errorf("%w: record %d has no id or name", ErrInvalidInput, i)
		}
		if _, dup := ids[records[i].ID]; dup {
			return fmt.Errorf("%w: duplicate id %q", ErrInvalidInput, records[i].ID)
		}
		ids[records[i].ID] = struct{}{}

		key := NormalizeName(records[i].Name)
		if _, dup := names[key]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateName, records[i].Name)
		}
		names[key] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.save(ctx, records); err != nil {
		return err
	}
	s.version.Add(1)
	return nil
}

func (s *RecordStore) load(ctx context.Context) ([]UserRecord, error) {
	records, err := s.storage.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnreadable, err)
	}
	if records == nil {
		records = []UserRecord{}
	}
	return records, nil
}

func (s *RecordStore) save(ctx context.Context, records []UserRecord) error {
	if err := s.storage.Save(ctx, records); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageWriteFailed, err)
	}
	return nil
}
