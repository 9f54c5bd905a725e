// Package sessions declares and implements storage of sign-in sessions.
package sessions

import (
	"context"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

// Repository defines operations on sessions.
type Repository interface {
	Create(ctx context.Context, session *models.Session) error

	// FindByToken returns common.ErrorNotFound when the token is unknown.
	FindByToken(ctx context.Context, token string) (*models.Session, error)

	// DeleteByToken is a no-op for unknown tokens.
	DeleteByToken(ctx context.Context, token string) error

	// DeleteByUserID removes every session of the user and reports how many.
	DeleteByUserID(ctx context.Context, userID string) (int64, error)
}
