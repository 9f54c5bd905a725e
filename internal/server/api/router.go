package api

import (
	"net/http"

	"github.com/dmitrijs2005/authkeeper/internal/server/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handler builds the route tree.
//
//	/api/auth/*      rate limited per client IP
//	/api/me          requires a session
//	/api/public_api1 open
//	/metrics         Prometheus scrape, when a Gatherer is configured
func (s *HTTPServer) Handler() http.Handler {
	r := chi.NewRouter()

	if s.opts.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(s.requestLogger)
	r.Use(s.recoverer)

	r.Route("/api/auth", func(r chi.Router) {
		r.Use(s.limiter.Middleware)

		r.Post("/sign-up/email", s.signUpEmail)
		r.Post("/sign-in/email", s.signInEmail)
		r.Get("/verify-email", s.verifyEmail)
		r.Post("/send-verification-email", s.sendVerificationEmail)
		r.Post("/request-password-reset", s.requestPasswordReset)
		r.Post("/reset-password", s.resetPassword)
		r.Get("/get-session", s.getSession)
		r.Post("/sign-out", s.signOut)
	})

	r.With(s.sessionGuard).Get("/api/me", s.me)

	r.Get("/api/public_api1", s.publicGet)
	r.Post("/api/public_api1", s.publicPost)

	if s.opts.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(s.opts.Gatherer))
	}

	return r
}
