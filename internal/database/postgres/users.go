package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kozaktomas/face-registry/internal/database"
)

// UserRepository stores the user collection in the users table.
// Collection order is kept in the position column.
type UserRepository struct {
	pool     *Pool
	ownsPool bool
}

// NewUserRepository creates a new PostgreSQL user repository
func NewUserRepository(pool *Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Describe implements database.Describer.
func (r *UserRepository) Describe() string {
	return "postgres table users"
}

// Init runs pending migrations
func (r *UserRepository) Init(ctx context.Context) error {
	if _, err := r.pool.Migrate(ctx); err != nil {
		return fmt.Errorf("migrating users table: %w", err)
	}
	return nil
}

// Load returns all users ordered by position
func (r *UserRepository) Load(ctx context.Context) ([]database.UserRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, descriptors, created_at
		FROM users
		ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	defer rows.Close()

	records := []database.UserRecord{}
	for rows.Next() {
		var rec database.UserRecord
		var raw []byte
		if err := rows.Scan(&rec.ID, &rec.Name, &raw, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		if err := json.Unmarshal(raw, &rec.Descriptors); err != nil {
			return nil, fmt.Errorf("decode descriptors of %s: %w", rec.ID, err)
		}
		rec.CreatedAt = rec.CreatedAt.UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return records, nil
}

// Save replaces the whole table inside one transaction
func (r *UserRepository) Save(ctx context.Context, records []database.UserRecord) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM users"); err != nil {
		return rollback(tx, fmt.Errorf("clear users: %w", err))
	}

	for i := range records {
		raw, err := json.Marshal(records[i].Descriptors)
		if err != nil {
			return rollback(tx, fmt.Errorf("encode descriptors of %s: %w", records[i].ID, err))
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO users (id, position, name, descriptors, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, records[i].ID, i, records[i].Name, string(raw), records[i].CreatedAt)
		if err != nil {
			return rollback(tx, fmt.Errorf("insert user %s: %w", records[i].ID, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit users: %w", err)
	}
	return nil
}

// Close closes the pool when the repository opened it.
func (r *UserRepository) Close() error {
	if !r.ownsPool {
		return nil
	}
	return r.pool.Close()
}
