// Package api exposes the authentication service over HTTP.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
	"github.com/prometheus/client_golang/prometheus"
)

const shutdownTimeout = 5 * time.Second

// AuthService is the part of services.AuthService the handlers use.
type AuthService interface {
	SignUpEmail(ctx context.Context, in services.SignUpInput) (*models.User, error)
	SendVerificationEmail(ctx context.Context, email, callbackURL string) error
	VerifyEmail(ctx context.Context, token string, meta services.SessionMeta) (*services.SessionResult, error)
	SignInEmail(ctx context.Context, email, password string, meta services.SessionMeta) (*services.SessionResult, error)
	GetSession(ctx context.Context, token string) (*services.SessionResult, error)
	SignOut(ctx context.Context, token string) error
	RequestPasswordReset(ctx context.Context, email, redirectTo string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
}

type Options struct {
	// CookieSecure marks the session cookie Secure; set it when served over https.
	CookieSecure bool
	// TrustProxy takes the client IP from X-Forwarded-For / X-Real-IP.
	// Without it the rate limiter keys on the socket address.
	TrustProxy bool
	RateLimit  RateLimiterConfig
	// Gatherer backs /metrics. Nil disables the route.
	Gatherer prometheus.Gatherer
}

type HTTPServer struct {
	address string
	auth    AuthService
	logger  logging.Logger
	limiter *RateLimiter
	opts    Options
}

func NewHTTPServer(a string, l logging.Logger, svc AuthService, opts Options) *HTTPServer {
	logger := l.With("module", "http_server")
	return &HTTPServer{
		address: a,
		auth:    svc,
		logger:  logger,
		limiter: NewRateLimiter(opts.RateLimit, logger),
		opts:    opts,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	defer s.limiter.Stop()

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "http shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
