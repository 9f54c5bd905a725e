// Package reconcile frees an email address held by an abandoned, unverified
// signup so that a new signup with the same email can proceed.
package reconcile

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/store"
)

// Storage operation names reported in *common.StorageError.Op.
const (
	OpFindUnverified = "find unverified user"
	OpDeleteSessions = "delete sessions"
	OpDeleteAccounts = "delete accounts"
	OpDeleteUser     = "delete user"
)

// EvictionRecorder counts evicted users.
type EvictionRecorder interface {
	RecordEviction()
}

type Guard struct {
	logger   logging.Logger
	recorder EvictionRecorder
}

// NewGuard returns a Guard. recorder may be nil.
func NewGuard(l logging.Logger, recorder EvictionRecorder) *Guard {
	return &Guard{logger: l.With("module", "reconcile"), recorder: recorder}
}

// ReconcileBeforeCreate must be called inside the transaction that will insert
// candidate. If an unverified user owns candidate.Email, that user and its
// sessions and accounts are deleted through r. Verified users are never
// touched; the unique email index rejects the caller's insert instead.
//
// Only the oldest unverified match is evicted.
//
// The candidate is returned unchanged. On error the caller must roll back.
func (g *Guard) ReconcileBeforeCreate(ctx context.Context, r store.Repos, candidate *models.User) (*models.User, error) {
	if candidate == nil || candidate.Email == "" {
		return nil, common.ValidationError("candidate email is empty")
	}

	stale, err := r.Users().FindUnverifiedByEmail(ctx, candidate.Email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return candidate, nil
		}
		return nil, common.NewStorageError(OpFindUnverified, err)
	}

	sessions, err := r.Sessions().DeleteByUserID(ctx, stale.ID)
	if err != nil {
		return nil, common.NewStorageError(OpDeleteSessions, err)
	}

	accounts, err := r.Accounts().DeleteByUserID(ctx, stale.ID)
	if err != nil {
		return nil, common.NewStorageError(OpDeleteAccounts, err)
	}

	if err := r.Users().DeleteByID(ctx, stale.ID); err != nil {
		return nil, common.NewStorageError(OpDeleteUser, err)
	}

	g.logger.Info(ctx, "evicted unverified user",
		"user_id", stale.ID,
		"sessions", sessions,
		"accounts", accounts,
	)
	if g.recorder != nil {
		g.recorder.RecordEviction()
	}

	return candidate, nil
}
