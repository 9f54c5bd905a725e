package api

import (
	"context"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
	"github.com/go-chi/chi/v5/middleware"
)

type ctxKey string

const sessionKey ctxKey = "session"

// requestLogger logs method, path, status and duration of every request.
// 5xx responses log at Error, 4xx at Warn.
func (s *HTTPServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		args := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration_ms", float64(time.Since(start).Microseconds()) / 1000,
		}

		switch {
		case status >= 500:
			s.logger.Error(r.Context(), "http_request", args...)
		case status >= 400:
			s.logger.Warn(r.Context(), "http_request", args...)
		default:
			s.logger.Info(r.Context(), "http_request", args...)
		}
	})
}

func (s *HTTPServer) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.logger.Error(r.Context(), "panic recovered",
					"panic", rec,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)
				writeJSON(w, http.StatusInternalServerError, errorBody{Code: "INTERNAL_ERROR", Message: "internal error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// sessionGuard rejects requests without a valid session and stores the
// session in the request context.
func (s *HTTPServer) sessionGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := sessionToken(r)
		if token == "" {
			s.writeError(r.Context(), w, common.ErrorUnauthorized)
			return
		}
		res, err := s.auth.GetSession(r.Context(), token)
		if err != nil {
			s.writeError(r.Context(), w, err)
			return
		}
		ctx := context.WithValue(r.Context(), sessionKey, res)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFromContext(ctx context.Context) (*services.SessionResult, bool) {
	res, ok := ctx.Value(sessionKey).(*services.SessionResult)
	return res, ok && res != nil
}

// sessionToken reads the session cookie, falling back to a Bearer header.
func sessionToken(r *http.Request) string {
	if c, err := r.Cookie(common.SessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	h := r.Header.Get(common.AuthorizationHeaderName)
	if scheme, token, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}

// clientIP is the socket peer, or the forwarded client when middleware.RealIP ran.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func sessionMeta(r *http.Request) services.SessionMeta {
	return services.SessionMeta{IPAddress: clientIP(r), UserAgent: r.UserAgent()}
}
