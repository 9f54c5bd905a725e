package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

// Repository defines persistence operations on users.
// Lookups return common.ErrorNotFound when no row matches.
type Repository interface {
	// Create inserts a user. A duplicate email yields common.ErrEmailInUse.
	Create(ctx context.Context, user *models.User) error

	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)

	// FindUnverifiedByEmail returns the oldest unverified user with exactly
	// this email.
	FindUnverifiedByEmail(ctx context.Context, email string) (*models.User, error)

	MarkEmailVerified(ctx context.Context, id string, at time.Time) error

	// DeleteByID removes the user row only; dependents must be removed first.
	DeleteByID(ctx context.Context, id string) error
}
