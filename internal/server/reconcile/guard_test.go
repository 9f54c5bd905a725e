package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRecorder struct{ n int }

func (c *countingRecorder) RecordEviction() { c.n++ }

var t0 = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func seedUnverified(s *store.MemoryStore) {
	s.SeedUser(models.User{ID: "u1", Email: "a@x.com", CreatedAt: t0})
	s.SeedSession(models.Session{ID: "s1", UserID: "u1", Token: "tok-s1", ExpiresAt: t0.Add(time.Hour)})
	s.SeedAccount(models.Account{ID: "ac1", UserID: "u1", ProviderID: models.CredentialProviderID, AccountID: "u1"})
}

// signUp runs the guard and the insert in one transaction.
func signUp(ctx context.Context, s store.Store, g *Guard, c *models.User) error {
	return s.InTx(ctx, func(ctx context.Context, r store.Repos) error {
		got, err := g.ReconcileBeforeCreate(ctx, r, c)
		if err != nil {
			return err
		}
		return r.Users().Create(ctx, got)
	})
}

func TestReconcile_EvictsUnverifiedUserAndDependents(t *testing.T) {
	s := store.NewMemoryStore()
	seedUnverified(s)
	rec := &countingRecorder{}
	g := NewGuard(logging.Discard(), rec)

	candidate := &models.User{ID: "n1", Email: "a@x.com", Name: "New", CreatedAt: t0.Add(time.Hour)}
	require.NoError(t, signUp(context.Background(), s, g, candidate))

	_, ok := s.User("u1")
	assert.False(t, ok)
	_, ok = s.Session("s1")
	assert.False(t, ok)
	_, ok = s.Account("ac1")
	assert.False(t, ok)

	got := s.UsersByEmail("a@x.com")
	require.Len(t, got, 1)
	assert.Equal(t, "n1", got[0].ID)
	assert.False(t, got[0].EmailVerified)
	assert.Equal(t, 1, rec.n)
}

func TestReconcile_VerifiedUserIsNeverEvicted(t *testing.T) {
	s := store.NewMemoryStore()
	s.SeedUser(models.User{ID: "u2", Email: "b@x.com", EmailVerified: true, CreatedAt: t0})
	s.SeedSession(models.Session{ID: "s2", UserID: "u2", Token: "tok-s2"})
	s.SeedAccount(models.Account{ID: "ac2", UserID: "u2", ProviderID: "github", AccountID: "42"})
	rec := &countingRecorder{}
	g := NewGuard(logging.Discard(), rec)

	err := signUp(context.Background(), s, g, &models.User{ID: "n2", Email: "b@x.com"})
	require.ErrorIs(t, err, common.ErrEmailInUse)

	u, ok := s.User("u2")
	require.True(t, ok)
	assert.True(t, u.EmailVerified)
	assert.Len(t, s.SessionsOf("u2"), 1)
	assert.Len(t, s.AccountsOf("u2"), 1)
	_, ok = s.User("n2")
	assert.False(t, ok)
	assert.Zero(t, rec.n)
}

func TestReconcile_NoExistingUserIsNoop(t *testing.T) {
	s := store.NewMemoryStore()
	g := NewGuard(logging.Discard(), nil)

	candidate := &models.User{ID: "n3", Email: "c@x.com"}
	err := s.InTx(context.Background(), func(ctx context.Context, r store.Repos) error {
		got, err := g.ReconcileBeforeCreate(ctx, r, candidate)
		require.NoError(t, err)
		assert.Same(t, candidate, got)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, signUp(context.Background(), s, g, candidate))

	_, ok := s.User("n3")
	assert.True(t, ok)
}

func TestReconcile_Idempotent(t *testing.T) {
	s := store.NewMemoryStore()
	seedUnverified(s)
	rec := &countingRecorder{}
	g := NewGuard(logging.Discard(), rec)
	candidate := &models.User{ID: "n1", Email: "a@x.com"}

	for i := 0; i < 2; i++ {
		err := s.InTx(context.Background(), func(ctx context.Context, r store.Repos) error {
			got, err := g.ReconcileBeforeCreate(ctx, r, candidate)
			if err != nil {
				return err
			}
			assert.Same(t, candidate, got)
			return nil
		})
		require.NoError(t, err)
	}

	assert.Empty(t, s.UsersByEmail("a@x.com"))
	assert.Equal(t, 1, rec.n, "second run must not evict anything")
}

func TestReconcile_FailureKeepsEverything(t *testing.T) {
	tests := []struct {
		name string
		op   string
		step string
	}{
		{"find", store.OpUsersFindUnverifiedByEmail, OpFindUnverified},
		{"sessions", store.OpSessionsDeleteByUserID, OpDeleteSessions},
		{"accounts", store.OpAccountsDeleteByUserID, OpDeleteAccounts},
		{"user", store.OpUsersDeleteByID, OpDeleteUser},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := store.NewMemoryStore()
			seedUnverified(s)
			cause := errors.New("connection reset")
			s.FailOn(tt.op, cause)
			rec := &countingRecorder{}
			g := NewGuard(logging.Discard(), rec)

			err := signUp(context.Background(), s, g, &models.User{ID: "n1", Email: "a@x.com"})

			var se *common.StorageError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.step, se.Op)
			assert.ErrorIs(t, err, cause)

			_, ok := s.User("u1")
			assert.True(t, ok)
			_, ok = s.Session("s1")
			assert.True(t, ok)
			_, ok = s.Account("ac1")
			assert.True(t, ok)
			_, ok = s.User("n1")
			assert.False(t, ok)
			assert.Zero(t, rec.n)
		})
	}
}

func TestReconcile_EvictsOnlyFirstMatch(t *testing.T) {
	// Legacy rows the unique index would reject today.
	s := store.NewMemoryStore()
	s.SeedUser(models.User{ID: "old", Email: "d@x.com", CreatedAt: t0})
	s.SeedUser(models.User{ID: "newer", Email: "d@x.com", CreatedAt: t0.Add(time.Minute)})
	g := NewGuard(logging.Discard(), nil)

	err := s.InTx(context.Background(), func(ctx context.Context, r store.Repos) error {
		_, err := g.ReconcileBeforeCreate(ctx, r, &models.User{ID: "n4", Email: "d@x.com"})
		return err
	})
	require.NoError(t, err)

	_, ok := s.User("old")
	assert.False(t, ok)
	_, ok = s.User("newer")
	assert.True(t, ok, "only the oldest unverified match is evicted")
}

func TestReconcile_EmailMatchIsCaseSensitive(t *testing.T) {
	s := store.NewMemoryStore()
	seedUnverified(s)
	g := NewGuard(logging.Discard(), nil)

	require.NoError(t, signUp(context.Background(), s, g, &models.User{ID: "n5", Email: "A@x.com"}))

	_, ok := s.User("u1")
	assert.True(t, ok)
}

func TestReconcile_EmptyEmail(t *testing.T) {
	s := store.NewMemoryStore()
	g := NewGuard(logging.Discard(), nil)

	err := s.InTx(context.Background(), func(ctx context.Context, r store.Repos) error {
		_, err := g.ReconcileBeforeCreate(ctx, r, &models.User{ID: "n6"})
		return err
	})
	assert.ErrorIs(t, err, common.ErrorValidation)
}
