package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

const selectAccount = `SELECT id, user_id, provider_id, account_id, password, created_at, updated_at FROM accounts`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, a *models.Account) error {
	query := `
		INSERT INTO accounts (id, user_id, provider_id, account_id, password, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	password := sql.NullString{String: a.Password, Valid: a.Password != ""}
	if _, err := r.db.ExecContext(ctx, query,
		a.ID, a.UserID, a.ProviderID, a.AccountID, password, a.CreatedAt, a.UpdatedAt); err != nil {
		if _, ok := dbx.UniqueViolation(err); ok {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindByProvider(ctx context.Context, providerID, accountID string) (*models.Account, error) {
	row := r.db.QueryRowContext(ctx, selectAccount+` WHERE provider_id = $1 AND account_id = $2`, providerID, accountID)
	return scanAccount(row)
}

func (r *PostgresRepository) FindCredential(ctx context.Context, userID string) (*models.Account, error) {
	row := r.db.QueryRowContext(ctx, selectAccount+` WHERE user_id = $1 AND provider_id = $2`, userID, models.CredentialProviderID)
	return scanAccount(row)
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, id, hash string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE accounts SET password = $2, updated_at = $3 WHERE id = $1`, id, hash, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) DeleteByUserID(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func scanAccount(row *sql.Row) (*models.Account, error) {
	a := &models.Account{}
	var password sql.NullString
	if err := row.Scan(&a.ID, &a.UserID, &a.ProviderID, &a.AccountID, &password, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	a.Password = password.String
	return a, nil
}

var _ Repository = (*PostgresRepository)(nil)
