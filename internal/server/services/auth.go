package services

import (
	"context"
	"errors"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	"github.com/dmitrijs2005/authkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/notify"
	"github.com/dmitrijs2005/authkeeper/internal/server/reconcile"
	"github.com/dmitrijs2005/authkeeper/internal/server/store"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
)

// Password length bounds for email/password accounts.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 128
)

type Options struct {
	SecretKey            []byte
	BaseURL              string
	SessionTTL           time.Duration
	EmailVerificationTTL time.Duration
	ResetPasswordTTL     time.Duration

	// Providers are the enabled social providers.
	Providers        []string
	AccountLinking   bool
	TrustedProviders []string
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		SecretKey:            []byte(cfg.SecretKey),
		BaseURL:              strings.TrimRight(cfg.BaseURL, "/"),
		SessionTTL:           cfg.SessionTTL,
		EmailVerificationTTL: cfg.EmailVerificationTTL,
		ResetPasswordTTL:     cfg.ResetPasswordTTL,
		Providers:            cfg.EnabledProviders(),
		AccountLinking:       cfg.AccountLinking,
		TrustedProviders:     cfg.TrustedProviders,
	}
}

// SessionMeta describes the client a session is issued to.
type SessionMeta struct {
	IPAddress string
	UserAgent string
}

type SessionResult struct {
	Session *models.Session
	User    *models.User
}

// AuthService implements email/password sign-up with mandatory verification,
// sessions, password reset and social sign-in on top of a Store.
type AuthService struct {
	store     store.Store
	guard     *reconcile.Guard
	notifier  notify.Notifier
	metrics   metrics.Recorder
	logger    logging.Logger
	sanitizer *bluemonday.Policy
	opts      Options
	now       func() time.Time
}

func NewAuthService(s store.Store, g *reconcile.Guard, n notify.Notifier, m metrics.Recorder, l logging.Logger, opts Options) *AuthService {
	return &AuthService{
		store:     s,
		guard:     g,
		notifier:  n,
		metrics:   m,
		logger:    l.With("module", "auth"),
		sanitizer: bluemonday.StrictPolicy(),
		opts:      opts,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func validateEmail(email string) error {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || domain == "" || strings.ContainsAny(email, " \t\r\n") {
		return common.ValidationError("invalid email")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return common.ValidationError("password too short")
	}
	if len(password) > MaxPasswordLength {
		return common.ValidationError("password too long")
	}
	return nil
}

// cleanName strips markup from a display name.
func (s *AuthService) cleanName(name string) string {
	return strings.TrimSpace(s.sanitizer.Sanitize(strings.TrimSpace(name)))
}

// createUser runs the reconciliation guard and inserts u with its first
// account, all through r. Call it inside InTx.
func (s *AuthService) createUser(ctx context.Context, r store.Repos, u *models.User, a *models.Account) error {
	u, err := s.guard.ReconcileBeforeCreate(ctx, r, u)
	if err != nil {
		return err
	}
	if err := r.Users().Create(ctx, u); err != nil {
		if errors.Is(err, common.ErrEmailInUse) {
			return err
		}
		return common.NewStorageError("create user", err)
	}
	a.UserID = u.ID
	if err := r.Accounts().Create(ctx, a); err != nil {
		return common.NewStorageError("create account", err)
	}
	return nil
}

func (s *AuthService) newSession(ctx context.Context, r store.Repos, userID string, meta SessionMeta) (*models.Session, error) {
	token, err := common.MakeRandHexString(32)
	if err != nil {
		return nil, common.ErrorInternal
	}
	now := s.now()
	sess := &models.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Token:     token,
		ExpiresAt: now.Add(s.opts.SessionTTL),
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.Sessions().Create(ctx, sess); err != nil {
		return nil, common.NewStorageError("create session", err)
	}
	return sess, nil
}

// sendVerification issues a verification token for u and hands the link to
// the notifier. Failures are logged, never returned.
func (s *AuthService) sendVerification(ctx context.Context, u *models.User, callbackURL string) {
	token, err := auth.GenerateVerificationToken(u.ID, u.Email, s.opts.SecretKey, s.opts.EmailVerificationTTL)
	if err != nil {
		s.logger.Error(ctx, "generate verification token", "user_id", u.ID, "error", err)
		return
	}

	q := url.Values{"token": {token}}
	if callbackURL != "" {
		q.Set("callbackURL", callbackURL)
	}
	link := s.opts.BaseURL + "/api/auth/verify-email?" + q.Encode()

	if err := s.notifier.SendVerificationEmail(ctx, notify.Message{To: u.Email, Name: u.Name, URL: link}); err != nil {
		s.logger.Error(ctx, "send verification email", "user_id", u.ID, "error", err)
	}
}

func (s *AuthService) providerEnabled(id string) bool {
	return slices.Contains(s.opts.Providers, id)
}

func (s *AuthService) providerTrusted(id string) bool {
	return slices.Contains(s.opts.TrustedProviders, id)
}

// lookupErr maps a repository lookup failure: not found becomes notFound,
// anything else a *common.StorageError.
func lookupErr(op string, err, notFound error) error {
	if errors.Is(err, common.ErrorNotFound) {
		return notFound
	}
	return common.NewStorageError(op, err)
}
