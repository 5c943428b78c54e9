package api

import (
	"net/http"

	"github.com/go-chi/jwtauth"
	"github.com/google/uuid"
)

// NewTokenAuth builds the HS256 verifier used to resolve bearer tokens to
// user ids. This package never validates credentials beyond what the
// verifier middleware already did.
func NewTokenAuth(secret string) *jwtauth.JWTAuth {
	return jwtauth.New("HS256", []byte(secret), nil)
}

// Verifier returns middleware that locates the caller's bearer credential.
// The standard Authorization header wins; failing that, the php-era
// session_id cookie is promoted to a bearer credential, since legacy
// endpoints predate the standardized auth parameters.
func Verifier(tokenAuth *jwtauth.JWTAuth) func(http.Handler) http.Handler {
	return jwtauth.Verify(tokenAuth, jwtauth.TokenFromHeader, tokenFromSessionCookie)
}

func tokenFromSessionCookie(r *http.Request) string {
	cookie, err := r.Cookie("session_id")
	if err != nil {
		return ""
	}
	return cookie.Value
}

// UserIDFromRequest returns the authenticated user's id, or nil when the
// request carries no valid credential. Any malformed claim counts as
// anonymous.
func UserIDFromRequest(r *http.Request) *uuid.UUID {
	token, claims, err := jwtauth.FromContext(r.Context())
	if err != nil || token == nil {
		return nil
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return nil
	}
	id, err := uuid.Parse(sub)
	if err != nil {
		return nil
	}
	return &id
}
