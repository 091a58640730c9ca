package mariadb

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kozaktomas/face-registry/internal/database"
)

const createUsersTable = `
	CREATE TABLE IF NOT EXISTS users (
		id          VARCHAR(64) NOT NULL PRIMARY KEY,
		position    INT NOT NULL,
		name        VARCHAR(255) NOT NULL,
		descriptors LONGTEXT NOT NULL,
		created_at  DATETIME(3) NOT NULL,
		INDEX users_position_idx (position)
	) DEFAULT CHARSET = utf8mb4
`

// UserRepository stores the user collection in a MariaDB users table.
type UserRepository struct {
	pool     *Pool
	ownsPool bool
}

// NewUserRepository creates a MariaDB user repository on an existing pool
func NewUserRepository(pool *Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Open connects using dsn and returns a repository that closes the pool on Close.
func Open(dsn string) (*UserRepository, error) {
	pool, err := NewPool(dsn)
	if err != nil {
		return nil, err
	}
	return &UserRepository{pool: pool, ownsPool: true}, nil
}

// Describe implements database.Describer.
func (r *UserRepository) Describe() string {
	return "mariadb table users"
}

// Init creates the users table if needed
func (r *UserRepository) Init(ctx context.Context) error {
	if _, err := r.pool.db.ExecContext(ctx, createUsersTable); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}
	return nil
}

// Load returns all users ordered by position
func (r *UserRepository) Load(ctx context.Context) ([]database.UserRecord, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
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
		var raw string
		if err := rows.Scan(&rec.ID, &rec.Name, &raw, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &rec.Descriptors); err != nil {
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
	tx, err := r.pool.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM users"); err != nil {
		return rollback(tx, fmt.Errorf("clear users: %w", err))
	}

	for i := range records {
		raw, err := json.Marshal(records[i].Descriptors)
		if err != nil {
			return rollback(tx, fmt.Errorf("encode descriptors of %s: %w", records[i].ID, err))
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO users (id, position, name, descriptors, created_at) VALUES (?, ?, ?, ?, ?)",
			records[i].ID, i, records[i].Name, string(raw), records[i].CreatedAt)
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
