package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/wolfman30/ayurwell-scheduler/internal/actor"
	"github.com/wolfman30/ayurwell-scheduler/internal/apperr"
	"github.com/wolfman30/ayurwell-scheduler/internal/directory"
	"github.com/wolfman30/ayurwell-scheduler/pkg/logging"
)

// UserResolver looks up the directory record behind a token subject.
type UserResolver interface {
	GetUser(ctx context.Context, id string) (directory.User, error)
}

// ActorJWT authenticates patients and doctors. The token subject must
// name a directory user whose role matches the token's role claim; the
// resolved actor is stored with actor.WithActor.
func ActorJWT(secret string, users UserResolver, logger *logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" || users == nil {
				writeError(w, http.StatusUnauthorized, "unauthorized", "actor auth disabled")
				return
			}
			claims, err := parseBearer(r, secret)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
				return
			}
			role := directory.Role(claims.Role)
			if !role.Valid() {
				writeError(w, http.StatusUnauthorized, "unauthorized", "token role must be patient or doctor")
				return
			}

			user, err := users.GetUser(r.Context(), claims.Subject)
			switch {
			case errors.Is(err, apperr.ErrNotFound):
				writeError(w, http.StatusUnauthorized, "unauthorized", "unknown actor")
				return
			case err != nil:
				logger.Error("actor lookup failed", "actor_id", claims.Subject, "error", err)
				writeError(w, http.StatusServiceUnavailable, string(apperr.KindUnavailable), "directory unavailable")
				return
			}
			if user.Role != role {
				writeError(w, http.StatusForbidden, string(apperr.KindForbidden), "token role does not match account")
				return
			}

			ctx := actor.WithActor(r.Context(), actor.Actor{ID: user.ID(), Role: user.Role, Name: user.Name()})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects authenticated actors whose role is not listed.
func RequireRole(roles ...directory.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			a, ok := actor.FromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
				return
			}
			for _, role := range roles {
				if a.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, string(apperr.KindForbidden), "role "+string(a.Role)+" may not call this endpoint")
		})
	}
}
