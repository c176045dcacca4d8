package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/habits/domain"
	"github.com/fastygo/habits/repository"
)

const userColumns = `id, email, name, status, metadata, created_at, updated_at`

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns the account directory behind registration and sign-in.
func NewUserRepository(pool *pgxpool.Pool) repository.UserRepository {
	return &userRepository{pool: pool}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

// Upsert registers an account or refreshes its profile. Registration always leaves the
// account active unless the caller set a status. Timestamps come back from the database.
func (r *userRepository) Upsert(ctx context.Context, user *domain.User) error {
	if user == nil || strings.TrimSpace(user.ID) == "" {
		return domain.ErrInvalidPayload
	}

	status := user.Status
	if status == "" {
		status = "active"
	}
	args := pgx.NamedArgs{
		"id":       strings.TrimSpace(user.ID),
		"email":    strings.ToLower(strings.TrimSpace(user.Email)),
		"name":     strings.TrimSpace(user.Name),
		"status":   status,
		"metadata": marshalMap(user.Metadata),
		"created":  nullTime(user.CreatedAt),
	}

	query := `
	INSERT INTO users (id, email, name, status, metadata, created_at)
	VALUES (@id, @email, @name, @status, @metadata, COALESCE(@created, NOW()))
	ON CONFLICT (id) DO UPDATE
	SET email = EXCLUDED.email,
		name = EXCLUDED.name,
		status = EXCLUDED.status,
		metadata = COALESCE(EXCLUDED.metadata, users.metadata),
		updated_at = NOW()
	RETURNING ` + userColumns

	stored, err := scanUser(r.pool.QueryRow(ctx, query, args))
	if err != nil {
		return err
	}
	*user = *stored
	return nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	var metadata []byte

	if err := row.Scan(&user.ID, &user.Email, &user.Name, &user.Status, &metadata, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &user.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata of user %s: %w", user.ID, err)
		}
	}
	return &user, nil
}
