package repository

import (
	"context"

	"github.com/fastygo/habits/domain"
)

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	Upsert(ctx context.Context, user *domain.User) error
}

// Authenticator exposes the signed-in user to owner-scoped operations.
type Authenticator interface {
	// CurrentUser returns nil without error when nobody is signed in.
	CurrentUser(ctx context.Context) (*domain.User, error)
	SignOut(ctx context.Context) error
}
