package middleware

import (
	"context"
	"net/http"
	"strings"

	"finch/internal/auth"
	"finch/internal/gateway/handlers"
	"finch/internal/storage"
	"finch/pkg/logger"
)

// UserStore resolves token subjects to users.
type UserStore interface {
	EnsureUser(ctx context.Context, email string) (*storage.User, error)
}

// Authenticator resolves the bearer token of a request to a user.
type Authenticator struct {
	issuer *auth.Issuer
	users  UserStore
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(issuer *auth.Issuer, users UserStore) *Authenticator {
	return &Authenticator{issuer: issuer, users: users}
}

// Middleware rejects requests without a valid token with 401 and puts the
// user into the request context. Websocket upgrades may pass the token as
// the access_token query parameter since browsers cannot set headers on
// them.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := auth.BearerToken(r.Header.Get("Authorization"))
		if err != nil && isUpgrade(r) {
			if q := r.URL.Query().Get("access_token"); q != "" {
				token, err = q, nil
			}
		}
		if err != nil {
			handlers.SendError(w, http.StatusUnauthorized, handlers.ErrCodeUnauthorized, "Unauthorized")
			return
		}

		email, err := a.issuer.Verify(token)
		if err != nil {
			logger.Ctx(r.Context()).Debug().Err(err).Msg("Rejected token")
			handlers.SendError(w, http.StatusUnauthorized, handlers.ErrCodeUnauthorized, "Unauthorized")
			return
		}
		user, err := a.users.EnsureUser(r.Context(), email)
		if err != nil {
			logger.Ctx(r.Context()).Error().Err(err).Str("email", email).Msg("Failed to resolve user")
			handlers.SendError(w, http.StatusInternalServerError, handlers.ErrCodeInternalError, "failed to resolve user")
			return
		}

		ctx := auth.WithUser(r.Context(), auth.User{ID: user.ID, Email: user.Email})
		log := logger.Ctx(ctx).With().Str("user_id", user.ID).Logger()
		next.ServeHTTP(w, r.WithContext(log.WithContext(ctx)))
	})
}

func isUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}
