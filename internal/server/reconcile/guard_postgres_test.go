package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/authkeeper/internal/server/store"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userColumns = []string{"id", "email", "name", "email_verified", "image", "created_at", "updated_at"}

func newPostgres(t *testing.T) (*store.PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	s := store.NewPostgresStore(db, repomanager.NewPostgresRepositoryManager(), logging.Discard())
	s.SetRetry(0, time.Millisecond)
	return s, mock
}

func TestReconcilePostgres_DeletesInOrderThenInserts(t *testing.T) {
	s, mock := newPostgres(t)
	g := NewGuard(logging.Discard(), nil)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM users WHERE email = \$1 AND email_verified = false ORDER BY created_at, id LIMIT 1`).
		WithArgs("a@x.com").
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow("u1", "a@x.com", "Old", false, nil, t0, t0))
	mock.ExpectExec(`DELETE FROM sessions WHERE user_id = \$1`).WithArgs("u1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM accounts WHERE user_id = \$1`).WithArgs("u1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM users WHERE id = \$1`).WithArgs("u1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO users`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := signUp(context.Background(), s, g, &models.User{ID: "n1", Email: "a@x.com", Name: "New"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcilePostgres_SessionDeleteFailureRollsBack(t *testing.T) {
	s, mock := newPostgres(t)
	g := NewGuard(logging.Discard(), nil)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM users WHERE email = \$1 AND email_verified = false`).
		WithArgs("a@x.com").
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow("u1", "a@x.com", "Old", false, nil, t0, t0))
	mock.ExpectExec(`DELETE FROM sessions WHERE user_id = \$1`).WithArgs("u1").WillReturnError(errors.New("io timeout"))
	mock.ExpectRollback()

	err := signUp(context.Background(), s, g, &models.User{ID: "n1", Email: "a@x.com"})

	var se *common.StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, OpDeleteSessions, se.Op)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcilePostgres_ConflictOnVerifiedEmail(t *testing.T) {
	s, mock := newPostgres(t)
	g := NewGuard(logging.Discard(), nil)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM users WHERE email = \$1 AND email_verified = false`).
		WithArgs("b@x.com").
		WillReturnRows(sqlmock.NewRows(userColumns))
	mock.ExpectExec(`INSERT INTO users`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})
	mock.ExpectRollback()

	err := signUp(context.Background(), s, g, &models.User{ID: "n2", Email: "b@x.com"})
	require.ErrorIs(t, err, common.ErrEmailInUse)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcilePostgres_RetryAfterSerializationFailureEvictsConcurrentWinner(t *testing.T) {
	s, mock := newPostgres(t)
	s.SetRetry(1, time.Millisecond)
	g := NewGuard(logging.Discard(), nil)

	// first attempt sees no holder, then loses to a concurrent signup
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM users WHERE email = \$1 AND email_verified = false`).
		WithArgs("a@x.com").
		WillReturnRows(sqlmock.NewRows(userColumns))
	mock.ExpectExec(`INSERT INTO users`).WillReturnError(&pgconn.PgError{Code: "40001"})
	mock.ExpectRollback()

	// the retry sees the winner, still unverified, and reclaims the email
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM users WHERE email = \$1 AND email_verified = false`).
		WithArgs("a@x.com").
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow("w1", "a@x.com", "Winner", false, nil, t0, t0))
	mock.ExpectExec(`DELETE FROM sessions WHERE user_id = \$1`).WithArgs("w1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM accounts WHERE user_id = \$1`).WithArgs("w1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM users WHERE id = \$1`).WithArgs("w1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO users`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := signUp(context.Background(), s, g, &models.User{ID: "n1", Email: "a@x.com"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
