// Package accounts stores the sign-in methods (credential or social) of users.
package accounts

import (
	"context"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

type Repository interface {
	// Create inserts an account. A duplicate (provider, account id) pair yields
	// common.ErrorAlreadyExists.
	Create(ctx context.Context, account *models.Account) error

	FindByProvider(ctx context.Context, providerID, accountID string) (*models.Account, error)

	// FindCredential returns the email/password account of userID.
	FindCredential(ctx context.Context, userID string) (*models.Account, error)

	UpdatePassword(ctx context.Context, id, hash string, at time.Time) error

	// DeleteByUserID removes every account of the user and reports how many.
	DeleteByUserID(ctx context.Context, userID string) (int64, error)
}
