package middleware

import (
	"net/http"
	"strings"

	"github.com/whisperbox/backend/internal/auth"
)

// RequireSession validates the session cookie and injects the decoded claims
// into the request context. API routes behind it answer 401 JSON when the
// token is missing or invalid.
func RequireSession(codec *auth.TokenCodec) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := sessionClaims(codec, r)
			if claims == nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"success":false,"message":"Not authenticated"}`))
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.SetClaims(r.Context(), claims)))
		})
	}
}

// Guard applies the page redirect policy: authenticated users are bounced
// from the auth pages to the dashboard, anonymous users are bounced from the
// dashboard to the sign-in page. Everything else passes through.
func Guard(codec *auth.TokenCodec, signInPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authenticated := sessionClaims(codec, r) != nil
			if target, ok := RedirectTarget(authenticated, r.URL.Path, signInPath); ok {
				http.Redirect(w, r, target, http.StatusTemporaryRedirect)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RedirectTarget is the redirect policy as a pure function of authentication
// state and path. The second return is false when the request should pass
// through unchanged.
func RedirectTarget(authenticated bool, path, signInPath string) (string, bool) {
	switch {
	case authenticated && isAuthPage(path):
		return "/dashboard", true
	case !authenticated && strings.HasPrefix(path, "/dashboard"):
		return signInPath, true
	}
	return "", false
}

func isAuthPage(path string) bool {
	return path == "/" ||
		strings.HasPrefix(path, "/sign-in") ||
		strings.HasPrefix(path, "/sign-up") ||
		strings.HasPrefix(path, "/verify")
}

func sessionClaims(codec *auth.TokenCodec, r *http.Request) *auth.Claims {
	cookie, err := r.Cookie(auth.SessionCookie)
	if err != nil {
		return nil
	}
	claims, err := codec.Decode(cookie.Value)
	if err != nil {
		return nil
	}
	return claims
}
