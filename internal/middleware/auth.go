package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/vidtube/backend/internal/apperrors"
	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/response"
)

// AccessCookie is the cookie carrying the access credential.
const AccessCookie = "accessToken"

// TokenVerifier resolves an access credential to the user it was issued for.
type TokenVerifier interface {
	VerifyAccess(token string) (string, error)
}

// Authenticator attaches the caller's identity to the request context.
type Authenticator struct {
	Verifier TokenVerifier
}

// Required rejects requests without a valid access credential.
func (a Authenticator) Required(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := accessToken(r)
		if token == "" {
			response.Error(r.Context(), w, apperrors.Unauthorized("unauthorized request"))
			return
		}

		userID, err := a.verify(token)
		if err != nil {
			logging.FromContext(r.Context()).Warn("rejected access token", "error", err)
			response.Error(r.Context(), w, apperrors.Unauthorized("invalid access token"))
			return
		}

		next.ServeHTTP(w, r.WithContext(withActor(r, userID)))
	})
}

// Optional attaches the caller's identity when a valid credential is present
// and otherwise serves the request anonymously.
func (a Authenticator) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := accessToken(r); token != "" {
			if userID, err := a.verify(token); err == nil {
				r = r.WithContext(withActor(r, userID))
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (a Authenticator) verify(token string) (string, error) {
	if a.Verifier == nil {
		return "", auth.ErrInvalidToken
	}
	return a.Verifier.VerifyAccess(token)
}

func withActor(r *http.Request, userID string) context.Context {
	ctx := auth.WithActor(r.Context(), userID)
	return logging.With(ctx, "user_id", userID)
}

// accessToken reads the credential from the cookie first, then from a bearer header.
func accessToken(r *http.Request) string {
	if cookie, err := r.Cookie(AccessCookie); err == nil && strings.TrimSpace(cookie.Value) != "" {
		return strings.TrimSpace(cookie.Value)
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > len("Bearer ") && strings.EqualFold(header[:len("Bearer ")], "Bearer ") {
		return strings.TrimSpace(header[len("Bearer "):])
	}
	return ""
}
