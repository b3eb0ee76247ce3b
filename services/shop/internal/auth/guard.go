package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/appetiteclub/apt"

	"github.com/appetiteclub/cakeshop/pkg/api"
	"github.com/appetiteclub/cakeshop/pkg/cake"
)

// Verifier confirms that a token is still accepted by the API.
type Verifier interface {
	CurrentUser(ctx context.Context, token string) (*cake.User, error)
}

// Require only lets requests through when the session holds a token for
// role. With a verifier, the token is checked against the API first and
// discarded when the API refuses it.
func (s *Sessions) Require(role Role, verifier Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := s.logger.With("request_id", apt.RequestIDFrom(r.Context()), "role", string(role))

			token := s.Token(r, role)
			if token == "" {
				log.Debug("missing token")
				apt.RespondError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			if verifier != nil {
				if _, err := verifier.CurrentUser(r.Context(), token); err != nil {
					var se *api.StatusError
					if errors.As(err, &se) {
						log.Info("token rejected by api", "status", se.Code)
						if err := s.Clear(w, r, role); err != nil {
							log.Error("cannot clear session token", "error", err)
						}
						apt.RespondError(w, http.StatusUnauthorized, "Unauthorized")
						return
					}
					log.Error("cannot verify token", "error", err)
					apt.RespondError(w, http.StatusBadGateway, "Could not verify session")
					return
				}
			}

			sid, err := s.ID(w, r)
			if err != nil {
				log.Error("cannot save session", "error", err)
				apt.RespondError(w, http.StatusInternalServerError, "Could not save session")
				return
			}

			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), role, token, sid)))
		})
	}
}
