package verifications

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, v *models.Verification) error {
	query := `
		INSERT INTO verifications (id, identifier, value, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := r.db.ExecContext(ctx, query, v.ID, v.Identifier, v.Value, v.ExpiresAt, v.CreatedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindByIdentifier(ctx context.Context, identifier string) (*models.Verification, error) {
	query := `
		SELECT id, identifier, value, expires_at, created_at
		FROM verifications
		WHERE identifier = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	v := &models.Verification{}
	err := r.db.QueryRowContext(ctx, query, identifier).Scan(&v.ID, &v.Identifier, &v.Value, &v.ExpiresAt, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return v, nil
}

func (r *PostgresRepository) DeleteByIdentifier(ctx context.Context, identifier string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM verifications WHERE identifier = $1`, identifier); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

var _ Repository = (*PostgresRepository)(nil)
