package services

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/notify"
	"github.com/dmitrijs2005/authkeeper/internal/server/store"
	"github.com/google/uuid"
)

// RequestPasswordReset stores a one-shot reset token for the user and mails
// the link. Unknown addresses succeed silently.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email, redirectTo string) error {
	token, err := common.MakeRandHexString(32)
	if err != nil {
		return common.ErrorInternal
	}

	var user *models.User
	err = s.store.Do(ctx, func(ctx context.Context, r store.Repos) error {
		var err error
		user, err = r.Users().FindByEmail(ctx, strings.TrimSpace(email))
		if err != nil {
			return err
		}
		now := s.now()
		err = r.Verifications().Create(ctx, &models.Verification{
			ID:         uuid.NewString(),
			Identifier: models.ResetPasswordPrefix + token,
			Value:      user.ID,
			ExpiresAt:  now.Add(s.opts.ResetPasswordTTL),
			CreatedAt:  now,
		})
		if err != nil {
			return common.NewStorageError("create verification", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		return common.NewStorageError("find user", err)
	}

	q := url.Values{"token": {token}}
	if redirectTo != "" {
		q.Set("callbackURL", redirectTo)
	}
	link := s.opts.BaseURL + "/reset-password?" + q.Encode()

	if err := s.notifier.SendPasswordResetEmail(ctx, notify.Message{To: user.Email, Name: user.Name, URL: link}); err != nil {
		s.logger.Error(ctx, "send password reset email", "user_id", user.ID, "error", err)
	}
	return nil
}

// ResetPassword consumes a reset token and replaces the user's password. A
// user with only social accounts gets a credential account.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return common.ErrInvalidToken
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return common.ErrorInternal
	}

	identifier := models.ResetPasswordPrefix + token

	return s.store.InTx(ctx, func(ctx context.Context, r store.Repos) error {
		v, err := r.Verifications().FindByIdentifier(ctx, identifier)
		if err != nil {
			return lookupErr("find verification", err, common.ErrInvalidToken)
		}
		now := s.now()
		if !now.Before(v.ExpiresAt) {
			return common.ErrTokenExpired
		}

		// the user may have been evicted since the token was issued
		if _, err := r.Users().FindByID(ctx, v.Value); err != nil {
			return lookupErr("find user", err, common.ErrInvalidToken)
		}

		userID := v.Value
		account, err := r.Accounts().FindCredential(ctx, userID)
		switch {
		case err == nil:
			if err := r.Accounts().UpdatePassword(ctx, account.ID, hash, now); err != nil {
				return common.NewStorageError("update password", err)
			}
		case errors.Is(err, common.ErrorNotFound):
			err := r.Accounts().Create(ctx, &models.Account{
				ID:         uuid.NewString(),
				UserID:     userID,
				ProviderID: models.CredentialProviderID,
				AccountID:  userID,
				Password:   hash,
				CreatedAt:  now,
				UpdatedAt:  now,
			})
			if err != nil {
				return common.NewStorageError("create account", err)
			}
		default:
			return common.NewStorageError("find credential", err)
		}

		if err := r.Verifications().DeleteByIdentifier(ctx, identifier); err != nil {
			return common.NewStorageError("delete verification", err)
		}
		return nil
	})
}
