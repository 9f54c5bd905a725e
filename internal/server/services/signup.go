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
	"github.com/google/uuid"
)

type SignUpInput struct {
	Email       string
	Name        string
	Password    string
	CallbackURL string
}

// SignUpEmail creates an unverified user with a credential account and sends
// the verification email. An unverified user already holding the email is
// evicted first, in the same transaction as the insert. A verified holder
// makes the insert fail with common.ErrEmailInUse.
//
// No session is created: the user signs in after verifying.
func (s *AuthService) SignUpEmail(ctx context.Context, in SignUpInput) (*models.User, error) {
	email := strings.TrimSpace(in.Email)
	if err := validateEmail(email); err != nil {
		s.metrics.RecordSignUp(metrics.ResultInvalid)
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		s.metrics.RecordSignUp(metrics.ResultInvalid)
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		s.metrics.RecordSignUp(metrics.ResultError)
		return nil, common.ErrorInternal
	}

	now := s.now()
	user := &models.User{
		ID:        uuid.NewString(),
		Email:     email,
		Name:      s.cleanName(in.Name),
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.store.InTx(ctx, func(ctx context.Context, r store.Repos) error {
		return s.createUser(ctx, r, user, &models.Account{
			ID:         uuid.NewString(),
			ProviderID: models.CredentialProviderID,
			AccountID:  user.ID,
			Password:   hash,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	})
	if err != nil {
		if errors.Is(err, common.ErrEmailInUse) {
			s.metrics.RecordSignUp(metrics.ResultConflict)
			return nil, common.ErrEmailInUse
		}
		s.metrics.RecordSignUp(metrics.ResultError)
		s.logger.Error(ctx, "sign up failed", "error", err)
		return nil, err
	}

	s.metrics.RecordSignUp(metrics.ResultSuccess)
	s.logger.Info(ctx, "user signed up", "user_id", user.ID)

	s.sendVerification(ctx, user, in.CallbackURL)

	return user, nil
}

// SendVerificationEmail resends the verification link. Unknown and already
// verified addresses are silently ignored.
func (s *AuthService) SendVerificationEmail(ctx context.Context, email, callbackURL string) error {
	var user *models.User
	err := s.store.Do(ctx, func(ctx context.Context, r store.Repos) error {
		var err error
		user, err = r.Users().FindByEmail(ctx, strings.TrimSpace(email))
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		return common.NewStorageError("find user", err)
	}
	if user.EmailVerified {
		return nil
	}

	s.sendVerification(ctx, user, callbackURL)
	return nil
}

// VerifyEmail marks the token's user verified and signs them in. Verifying
// twice is allowed. A token whose user no longer exists, for example because
// it was evicted by a later signup, yields common.ErrorNotFound.
func (s *AuthService) VerifyEmail(ctx context.Context, token string, meta SessionMeta) (*SessionResult, error) {
	userID, email, err := auth.ParseVerificationToken(token, s.opts.SecretKey)
	if err != nil {
		s.metrics.RecordVerification(metrics.ResultInvalid)
		return nil, err
	}

	var res SessionResult
	err = s.store.InTx(ctx, func(ctx context.Context, r store.Repos) error {
		user, err := r.Users().FindByID(ctx, userID)
		if err != nil {
			return lookupErr("find user", err, common.ErrorNotFound)
		}
		if user.Email != email {
			return common.ErrorNotFound
		}

		if !user.EmailVerified {
			now := s.now()
			if err := r.Users().MarkEmailVerified(ctx, user.ID, now); err != nil {
				return common.NewStorageError("mark email verified", err)
			}
			user.EmailVerified = true
			user.UpdatedAt = now
		}

		sess, err := s.newSession(ctx, r, user.ID, meta)
		if err != nil {
			return err
		}
		res = SessionResult{Session: sess, User: user}
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.metrics.RecordVerification(metrics.ResultInvalid)
		} else {
			s.metrics.RecordVerification(metrics.ResultError)
		}
		return nil, err
	}

	s.metrics.RecordVerification(metrics.ResultSuccess)
	s.logger.Info(ctx, "email verified", "user_id", res.User.ID)
	return &res, nil
}
