package common

const (
	// SessionCookieName is the cookie carrying the session token.
	SessionCookieName = "authkeeper.session_token"

	// AuthorizationHeaderName carries "Bearer <session token>" for API clients.
	AuthorizationHeaderName = "Authorization"
)
