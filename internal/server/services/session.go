package services

import (
	"context"
	"errors"
	"strings"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/store"
)

// SignInEmail checks the password and opens a session. Unknown email and
// wrong password both yield common.ErrorUnauthorized. An unverified user gets
// common.ErrEmailNotVerified and a fresh verification email.
func (s *AuthService) SignInEmail(ctx context.Context, email, password string, meta SessionMeta) (*SessionResult, error) {
	var (
		user    *models.User
		account *models.Account
	)
	err := s.store.Do(ctx, func(ctx context.Context, r store.Repos) error {
		var err error
		user, err = r.Users().FindByEmail(ctx, strings.TrimSpace(email))
		if err != nil {
			return lookupErr("find user", err, common.ErrorUnauthorized)
		}
		account, err = r.Accounts().FindCredential(ctx, user.ID)
		if err != nil {
			return lookupErr("find credential", err, common.ErrorUnauthorized)
		}
		return nil
	})
	if err != nil {
		return nil, s.signInFailed(err)
	}

	ok, err := auth.VerifyPassword(account.Password, password)
	if err != nil {
		s.logger.Warn(ctx, "unusable password hash", "user_id", user.ID, "error", err)
		return nil, s.signInFailed(common.ErrorUnauthorized)
	}
	if !ok {
		return nil, s.signInFailed(common.ErrorUnauthorized)
	}

	if !user.EmailVerified {
		s.sendVerification(ctx, user, "")
		return nil, s.signInFailed(common.ErrEmailNotVerified)
	}

	var sess *models.Session
	err = s.store.Do(ctx, func(ctx context.Context, r store.Repos) error {
		var err error
		sess, err = s.newSession(ctx, r, user.ID, meta)
		return err
	})
	if err != nil {
		return nil, s.signInFailed(err)
	}

	s.metrics.RecordSignIn(metrics.ResultSuccess)
	return &SessionResult{Session: sess, User: user}, nil
}

func (s *AuthService) signInFailed(err error) error {
	switch {
	case errors.Is(err, common.ErrorUnauthorized), errors.Is(err, common.ErrAccountNotLinked):
		s.metrics.RecordSignIn(metrics.ResultUnauthorized)
	case errors.Is(err, common.ErrEmailNotVerified):
		s.metrics.RecordSignIn(metrics.ResultEmailNotVerified)
	case errors.Is(err, common.ErrEmailInUse):
		s.metrics.RecordSignIn(metrics.ResultConflict)
	case errors.Is(err, common.ErrorValidation):
		s.metrics.RecordSignIn(metrics.ResultInvalid)
	default:
		s.metrics.RecordSignIn(metrics.ResultError)
	}
	return err
}

// GetSession resolves a session token. Unknown and expired tokens yield
// common.ErrorUnauthorized; an expired session is deleted on the way.
func (s *AuthService) GetSession(ctx context.Context, token string) (*SessionResult, error) {
	if token == "" {
		return nil, common.ErrorUnauthorized
	}

	var res SessionResult
	err := s.store.Do(ctx, func(ctx context.Context, r store.Repos) error {
		sess, err := r.Sessions().FindByToken(ctx, token)
		if err != nil {
			return lookupErr("find session", err, common.ErrorUnauthorized)
		}
		if sess.Expired(s.now()) {
			if err := r.Sessions().DeleteByToken(ctx, token); err != nil {
				return common.NewStorageError("delete session", err)
			}
			return common.ErrorUnauthorized
		}
		user, err := r.Users().FindByID(ctx, sess.UserID)
		if err != nil {
			return lookupErr("find user", err, common.ErrorUnauthorized)
		}
		res = SessionResult{Session: sess, User: user}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// SignOut deletes the session. Unknown tokens are not an error.
func (s *AuthService) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.store.Do(ctx, func(ctx context.Context, r store.Repos) error {
		if err := r.Sessions().DeleteByToken(ctx, token); err != nil {
			return common.NewStorageError("delete session", err)
		}
		return nil
	})
}
