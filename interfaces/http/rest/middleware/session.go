package middleware

import (
	"net/http"

	"github.com/BenjaminAGH/NocturneScope/pkg/auth"
	pkgerrors "github.com/BenjaminAGH/NocturneScope/pkg/errors"
)

// RequireSession authenticates API requests against the console session
// store. A valid session cookie resolves to the user identity and the
// upstream tokens; anything else is a 401. Expired access tokens kill the
// session on the spot so the UI bounces to login instead of proxying doomed
// upstream calls.
func RequireSession(store auth.SessionStore, errHandler *pkgerrors.ErrorHandler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(auth.SessionCookieName)
			if err != nil || cookie.Value == "" {
				errHandler.Handle(w, r, pkgerrors.NewUnauthorizedError("missing session"))
				return
			}

			session, ok := store.Get(cookie.Value)
			if !ok {
				errHandler.Handle(w, r, pkgerrors.NewUnauthorizedError("session expired or unknown"))
				return
			}

			info, err := auth.InspectToken(session.AccessToken)
			if err != nil {
				store.Delete(session.ID)
				errHandler.Handle(w, r, pkgerrors.NewUnauthorizedError("access token expired"))
				return
			}

			ctx := auth.SetSessionInContext(r.Context(), session)
			ctx = auth.SetUserInContext(ctx, &auth.UserContext{
				UserID:   info.Subject,
				Email:    firstNonEmpty(info.Email, session.Email),
				Username: info.Username,
				Role:     info.Role,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
