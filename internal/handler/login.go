package handler

import (
	"errors"
	"net/http"

	"crowdwatch/internal/auth"
	"crowdwatch/internal/config"
	"crowdwatch/internal/logger"
	"crowdwatch/internal/metrics"
	"crowdwatch/internal/service/users"
	"crowdwatch/internal/web"
)

func renderPage(w http.ResponseWriter, pages Renderer, logger *logger.Logger, name string, data web.Page) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pages.Render(w, name, data); err != nil {
		logger.Error("Error rendering %s: %v", name, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// HomeHandler sends visitors to the login page.
func HomeHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	http.Redirect(w, r, "/login4", http.StatusFound)
}

// LoginHandler shows the login form on GET and on POST validates the
// credentials and issues the session cookie.
func LoginHandler(svc UserService, tokens *auth.TokenManager, cfg *config.Config, pages Renderer,
	metrics *metrics.Metrics, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			renderPage(w, pages, logger, web.LoginPage, web.Page{})
			return
		}

		email := r.FormValue("email")
		user, err := svc.Authenticate(r.Context(), email, r.FormValue("password"))
		if err != nil {
			metrics.LoginAttempt(false)
			if errors.Is(err, users.ErrInvalidCredentials) {
				logger.Warning("Failed login for %q from %s", email, r.RemoteAddr)
				renderPage(w, pages, logger, web.LoginPage, web.Page{Error: "Invalid email or password!"})
				return
			}
			logger.Error("Error authenticating %q: %v", email, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		token, expires, err := tokens.Issue(user)
		if err != nil {
			logger.Error("Error issuing token for %s: %v", user.Email, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		metrics.LoginAttempt(true)
		logger.Info("User %s logged in", user.Email)

		http.SetCookie(w, &http.Cookie{
			Name:     auth.CookieName,
			Value:    token,
			Path:     "/",
			Expires:  expires,
			MaxAge:   int(tokens.TTL().Seconds()),
			HttpOnly: true,
			Secure:   cfg.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		})
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
	}
}

// RegisterHandler shows and processes the registration form.
func RegisterHandler(svc UserService, cfg *config.Config, pages Renderer, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := web.Page{AllowRoleSelection: cfg.AllowRoleSelection}
		if r.Method != http.MethodPost {
			renderPage(w, pages, logger, web.RegisterPage, page)
			return
		}

		_, err := svc.Register(r.Context(), r.FormValue("name"), r.FormValue("email"),
			r.FormValue("password"), r.FormValue("role"))
		switch {
		case err == nil:
			http.Redirect(w, r, "/login4", http.StatusSeeOther)
			return
		case errors.Is(err, users.ErrEmailTaken):
			page.Error = "Email already registered!"
		case errors.Is(err, users.ErrMissingFields):
			page.Error = "Name, email and password are required!"
		case errors.Is(err, users.ErrInvalidRole):
			page.Error = "Invalid role!"
		case errors.Is(err, users.ErrPasswordTooLong):
			page.Error = "Password must be at most 72 bytes long!"
		default:
			logger.Error("Error registering %q: %v", r.FormValue("email"), err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		renderPage(w, pages, logger, web.RegisterPage, page)
	}
}

// LogoutHandler clears the session cookie and redirects to the login page.
func LogoutHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{
			Name:     auth.CookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   cfg.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		})
		http.Redirect(w, r, "/login4", http.StatusSeeOther)
	}
}
