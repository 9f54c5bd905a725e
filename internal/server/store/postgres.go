package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/users"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/verifications"
	"github.com/sethvargo/go-retry"
)

// Retry bounds for transactions aborted by serialization failures.
const (
	DefaultMaxRetries = 3
	DefaultRetryBase  = 20 * time.Millisecond
)

type PostgresStore struct {
	db         *sql.DB
	rm         repomanager.RepositoryManager
	logger     logging.Logger
	maxRetries uint64
	retryBase  time.Duration
}

// NewPostgresStore wraps an open connection. It does not run migrations.
func NewPostgresStore(db *sql.DB, rm repomanager.RepositoryManager, l logging.Logger) *PostgresStore {
	return &PostgresStore{
		db:         db,
		rm:         rm,
		logger:     l.With("module", "store"),
		maxRetries: DefaultMaxRetries,
		retryBase:  DefaultRetryBase,
	}
}

// OpenPostgres opens dsn with the pgx driver, migrates the schema and returns
// the store.
func OpenPostgres(ctx context.Context, dsn string, l logging.Logger) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}
	return NewPostgresStore(db, rm, l), nil
}

// SetRetry overrides the serialization-failure retry policy.
func (s *PostgresStore) SetRetry(maxRetries uint64, base time.Duration) {
	s.maxRetries = maxRetries
	s.retryBase = base
}

func (s *PostgresStore) Do(ctx context.Context, fn Func) error {
	return fn(ctx, pgRepos{rm: s.rm, db: s.db})
}

func (s *PostgresStore) InTx(ctx context.Context, fn Func) error {
	backoff := retry.WithMaxRetries(s.maxRetries, retry.NewExponential(s.retryBase))
	attempt := 0

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := dbx.WithTx(ctx, s.db, dbx.Serializable, func(ctx context.Context, tx dbx.DBTX) error {
			return fn(ctx, pgRepos{rm: s.rm, db: tx})
		})
		if err != nil && dbx.IsSerializationFailure(err) {
			s.logger.Warn(ctx, "transaction serialization failure", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type pgRepos struct {
	rm repomanager.RepositoryManager
	db dbx.DBTX
}

func (r pgRepos) Users() users.Repository                 { return r.rm.Users(r.db) }
func (r pgRepos) Sessions() sessions.Repository           { return r.rm.Sessions(r.db) }
func (r pgRepos) Accounts() accounts.Repository           { return r.rm.Accounts(r.db) }
func (r pgRepos) Verifications() verifications.Repository { return r.rm.Verifications(r.db) }

var _ Store = (*PostgresStore)(nil)
