package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
)

const maxBodyBytes = 1 << 20

type signUpRequest struct {
	Email       string `json:"email"`
	Name        string `json:"name"`
	Password    string `json:"password"`
	CallbackURL string `json:"callbackURL"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type emailRequest struct {
	Email       string `json:"email"`
	CallbackURL string `json:"callbackURL"`
	RedirectTo  string `json:"redirectTo"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

type sessionResponse struct {
	Session sessionView `json:"session"`
	User    userView    `json:"user"`
}

type statusResponse struct {
	Status bool `json:"status"`
}

// decode reads a JSON body into v. Unknown fields are rejected.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return common.ValidationError("malformed request body")
	}
	return nil
}

// safeRedirect accepts same-origin paths only.
func safeRedirect(target string) (string, bool) {
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.Contains(target, "\\") {
		return "", false
	}
	return target, true
}

func (s *HTTPServer) setSessionCookie(w http.ResponseWriter, sess *models.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     common.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   s.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *HTTPServer) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     common.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *HTTPServer) writeSession(w http.ResponseWriter, res *services.SessionResult) {
	s.setSessionCookie(w, res.Session)
	writeJSON(w, http.StatusOK, sessionResponse{
		Session: newSessionView(res.Session),
		User:    newUserView(res.User),
	})
}

// POST /api/auth/sign-up/email
func (s *HTTPServer) signUpEmail(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := decode(r, &req); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	user, err := s.auth.SignUpEmail(r.Context(), services.SignUpInput{
		Email:       req.Email,
		Name:        req.Name,
		Password:    req.Password,
		CallbackURL: req.CallbackURL,
	})
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"user": newUserView(user)})
}

// POST /api/auth/sign-in/email
func (s *HTTPServer) signInEmail(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decode(r, &req); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	res, err := s.auth.SignInEmail(r.Context(), req.Email, req.Password, sessionMeta(r))
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	s.writeSession(w, res)
}

// GET /api/auth/verify-email?token=...&callbackURL=...
func (s *HTTPServer) verifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		s.writeError(r.Context(), w, common.ErrInvalidToken)
		return
	}

	res, err := s.auth.VerifyEmail(r.Context(), token, sessionMeta(r))
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	if target, ok := safeRedirect(r.URL.Query().Get("callbackURL")); ok {
		s.setSessionCookie(w, res.Session)
		http.Redirect(w, r, target, http.StatusFound)
		return
	}
	s.writeSession(w, res)
}

// POST /api/auth/send-verification-email
func (s *HTTPServer) sendVerificationEmail(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decode(r, &req); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	if err := s.auth.SendVerificationEmail(r.Context(), req.Email, req.CallbackURL); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: true})
}

// POST /api/auth/request-password-reset
func (s *HTTPServer) requestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decode(r, &req); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	if err := s.auth.RequestPasswordReset(r.Context(), req.Email, req.RedirectTo); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: true})
}

// POST /api/auth/reset-password
func (s *HTTPServer) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decode(r, &req); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	if err := s.auth.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: true})
}

// GET /api/auth/get-session
func (s *HTTPServer) getSession(w http.ResponseWriter, r *http.Request) {
	res, err := s.auth.GetSession(r.Context(), sessionToken(r))
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		Session: newSessionView(res.Session),
		User:    newUserView(res.User),
	})
}

// POST /api/auth/sign-out
func (s *HTTPServer) signOut(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.SignOut(r.Context(), sessionToken(r)); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	s.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// GET /api/me
func (s *HTTPServer) me(w http.ResponseWriter, r *http.Request) {
	res, ok := sessionFromContext(r.Context())
	if !ok {
		s.writeError(r.Context(), w, common.ErrorUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, newUserView(res.User))
}

// GET /api/public_api1
func (s *HTTPServer) publicGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "This is a public API route 1",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// POST /api/public_api1 echoes the JSON body back. An unreadable body
// echoes as {}.
func (s *HTTPServer) publicPost(w http.ResponseWriter, r *http.Request) {
	var body any
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&body); err != nil {
		body = map[string]any{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "POST request to public API 1 successful",
		"data":    body,
	})
}
