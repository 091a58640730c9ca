// Package redisstore keeps the user collection as one JSON document under a Redis key.
package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-registry/internal/database"
	"github.com/redis/go-redis/v9"
)

// Storage is a Redis-backed database.Storage.
type Storage struct {
	client    *redis.Client
	key       string
	ownClient bool
}

// New wraps an existing client. The caller keeps ownership of it.
func New(client *redis.Client, key string) *Storage {
	return &Storage{client: client, key: key}
}

// Open parses a redis:// URL, connects and verifies the connection.
func Open(ctx context.Context, url, key string) (*Storage, error) {
	if url == "" {
		return nil, errors.New("REDIS_URL is required for the redis backend")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &Storage{client: client, key: key, ownClient: true}, nil
}

// Describe implements database.Describer.
func (s *Storage) Describe() string {
	return "redis key " + s.key
}

// Init stores an empty collection unless the key already exists.
func (s *Storage) Init(ctx context.Context) error {
	if err := s.client.SetNX(ctx, s.key, database.EmptyCollection(), 0).Err(); err != nil {
		return fmt.Errorf("initializing %s: %w", s.key, err)
	}
	return nil
}

// Load fetches and decodes the collection
func (s *Storage) Load(ctx context.Context) ([]database.UserRecord, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("key %s does not exist", s.key)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.key, err)
	}
	return database.UnmarshalRecords(data)
}

// Save overwrites the collection
func (s *Storage) Save(ctx context.Context, records []database.UserRecord) error {
	data, err := database.MarshalRecords(records)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("writing %s: %w", s.key, err)
	}
	return nil
}

// Close closes the client if Open created it.
func (s *Storage) Close() error {
	if !s.ownClient {
		return nil
	}
	return s.client.Close()
}
