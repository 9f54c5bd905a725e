package services

import (
	"context"
	"errors"
	"strings"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/store"
	"github.com/google/uuid"
)

// SocialProfile is the identity an OAuth provider vouched for. The OAuth
// exchange itself happens elsewhere.
type SocialProfile struct {
	ProviderID    string
	AccountID     string
	Email         string
	EmailVerified bool
	Name          string
	Image         string
}

// SignInSocial signs in with a provider identity and opens a session.
//
//   - A known (provider, account) pair signs in its user.
//   - A verified local user with the same email gets the account linked when
//     linking is enabled and the provider is trusted or vouches for the
//     email. Otherwise common.ErrAccountNotLinked.
//   - Anything else creates a new user. An unverified local user with the
//     same email is evicted first, exactly as on email sign-up.
func (s *AuthService) SignInSocial(ctx context.Context, p SocialProfile, meta SessionMeta) (*SessionResult, error) {
	if !s.providerEnabled(p.ProviderID) {
		return nil, s.signInFailed(common.ValidationError("unknown provider " + p.ProviderID))
	}
	p.Email = strings.TrimSpace(p.Email)
	if p.AccountID == "" {
		return nil, s.signInFailed(common.ValidationError("missing provider account id"))
	}
	if err := validateEmail(p.Email); err != nil {
		return nil, s.signInFailed(err)
	}

	var (
		res     SessionResult
		created bool
	)
	err := s.store.InTx(ctx, func(ctx context.Context, r store.Repos) error {
		user, err := s.resolveSocialUser(ctx, r, p)
		if err != nil {
			return err
		}
		if user == nil {
			user, err = s.createSocialUser(ctx, r, p)
			if err != nil {
				return err
			}
			created = true
		}

		sess, err := s.newSession(ctx, r, user.ID, meta)
		if err != nil {
			return err
		}
		res = SessionResult{Session: sess, User: user}
		return nil
	})
	if err != nil {
		return nil, s.signInFailed(err)
	}

	if created {
		s.metrics.RecordSignUp(metrics.ResultSuccess)
		s.logger.Info(ctx, "user signed up", "user_id", res.User.ID, "provider", p.ProviderID)
	}
	s.metrics.RecordSignIn(metrics.ResultSuccess)
	return &res, nil
}

// resolveSocialUser returns the existing user for p, linking the account if
// needed, or nil when a new user has to be created.
func (s *AuthService) resolveSocialUser(ctx context.Context, r store.Repos, p SocialProfile) (*models.User, error) {
	account, err := r.Accounts().FindByProvider(ctx, p.ProviderID, p.AccountID)
	if err == nil {
		user, err := r.Users().FindByID(ctx, account.UserID)
		if err != nil {
			return nil, lookupErr("find user", err, common.ErrorUnauthorized)
		}
		return user, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, common.NewStorageError("find account", err)
	}

	user, err := r.Users().FindByEmail(ctx, p.Email)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, common.NewStorageError("find user", err)
	}

	if !user.EmailVerified {
		// provisional, superseded by the new identity
		return nil, nil
	}

	if !s.opts.AccountLinking || !(s.providerTrusted(p.ProviderID) || p.EmailVerified) {
		return nil, common.ErrAccountNotLinked
	}

	now := s.now()
	err = r.Accounts().Create(ctx, &models.Account{
		ID:         uuid.NewString(),
		UserID:     user.ID,
		ProviderID: p.ProviderID,
		AccountID:  p.AccountID,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		return nil, common.NewStorageError("link account", err)
	}
	s.logger.Info(ctx, "account linked", "user_id", user.ID, "provider", p.ProviderID)
	return user, nil
}

func (s *AuthService) createSocialUser(ctx context.Context, r store.Repos, p SocialProfile) (*models.User, error) {
	now := s.now()
	user := &models.User{
		ID:            uuid.NewString(),
		Email:         p.Email,
		Name:          s.cleanName(p.Name),
		EmailVerified: p.EmailVerified,
		Image:         p.Image,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err := s.createUser(ctx, r, user, &models.Account{
		ID:         uuid.NewString(),
		ProviderID: p.ProviderID,
		AccountID:  p.AccountID,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}
