// Package verifications stores one-shot secrets such as password reset tokens.
package verifications

import (
	"context"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, v *models.Verification) error

	// FindByIdentifier returns common.ErrorNotFound when nothing matches.
	FindByIdentifier(ctx context.Context, identifier string) (*models.Verification, error)

	DeleteByIdentifier(ctx context.Context, identifier string) error
}
