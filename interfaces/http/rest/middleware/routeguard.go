package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/BenjaminAGH/NocturneScope/pkg/auth"
)

// Page paths served without a session.
var publicPages = map[string]bool{
	"/":              true,
	"/auth/login":    true,
	"/auth/register": true,
}

// Page prefixes that require a session.
var protectedPrefixes = []string{"/dashboard", "/topology", "/tokens"}

// RouteGuard enforces page-level access for the UI shell: protected pages
// redirect anonymous visitors to login carrying the original path, and the
// login and register pages bounce already-authenticated users to the
// dashboard. API routes are not guarded here; they answer 401 instead of
// redirecting.
func RouteGuard(store auth.SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			authenticated := hasLiveSession(r, store)

			if isProtectedPage(path) && !authenticated {
				target := "/auth/login?redirect=" + url.QueryEscape(path)
				http.Redirect(w, r, target, http.StatusFound)
				return
			}
			if (path == "/auth/login" || path == "/auth/register") && authenticated {
				http.Redirect(w, r, "/dashboard", http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isProtectedPage(path string) bool {
	if publicPages[path] {
		return false
	}
	for _, prefix := range protectedPrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

func hasLiveSession(r *http.Request, store auth.SessionStore) bool {
	cookie, err := r.Cookie(auth.SessionCookieName)
	if err != nil || cookie.Value == "" {
		return false
	}
	session, ok := store.Get(cookie.Value)
	if !ok {
		return false
	}
	if _, err := auth.InspectToken(session.AccessToken); err != nil {
		return false
	}
	return true
}
