package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"crowdwatch/internal/auth"
	"crowdwatch/internal/dto"
	"crowdwatch/internal/logger"
)

const loginPath = "/login4"

// isPublic lists what can be reached without a session: the login and
// registration pages, static files, health and metrics.
func isPublic(path string) bool {
	switch path {
	case "/", loginPath, "/register4", "/logout", "/healthz", "/metrics", "/favicon.ico":
		return true
	}
	return strings.HasPrefix(path, "/static/")
}

// tokenFromRequest reads the session cookie, or a bearer token for API
// clients.
func tokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(auth.CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

// wantsPage reports whether the request is a browser navigation rather than
// an AJAX/API call.
func wantsPage(r *http.Request) bool {
	return r.Method == http.MethodGet &&
		r.Header.Get("X-Requested-With") != "XMLHttpRequest" &&
		strings.Contains(r.Header.Get("Accept"), "text/html")
}

// AuthMiddleware verifies the session token of every non-public request and
// stores its claims in the request context.
func AuthMiddleware(tokens *auth.TokenManager, logger *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFromRequest(r)
			if token != "" {
				if claims, err := tokens.Parse(token); err == nil {
					next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
					return
				}
			}

			if isPublic(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			logger.Info("Unauthenticated %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
			if wantsPage(r) {
				http.Redirect(w, r, loginPath, http.StatusSeeOther)
				return
			}
			writeJSON(w, http.StatusUnauthorized, dto.StatusResponse{
				Status:  dto.StatusFail,
				Message: "missing or invalid session",
			})
		})
	}
}

// RequireAdmin rejects requests whose session is not an admin one.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, _ := auth.FromContext(r.Context())
		if !claims.IsAdmin() {
			writeJSON(w, http.StatusForbidden, dto.StatusResponse{Status: dto.StatusFail, Message: "only admin"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
