package http

import (
	"errors"
	"net/http"

	"installments/internal/auth"
	"installments/internal/core"
	applog "installments/internal/log"
)

type loginView struct {
	pageView
	Username string
	Error    string
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	view := loginView{pageView: s.page(r, "Sign in", "login")}
	NewHTMXResponse().BodyTemplate(s.templates, "login.html", view).Write(w)
}

// handleLogin sets the session cookie and sends the browser to the dashboard.
// Failures re-render the form with a 401.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	username := parser.Get("username")

	cookie, err := s.deps.Auth.Login(ctx, username, parser.Get("password"))
	if err != nil {
		status, msg := errorStatus(err)
		if errors.Is(err, core.ErrInvalidCredential) {
			applog.FromContext(ctx).WarnContext(ctx, "Login failed",
				applog.FieldUser, username,
				applog.FieldClientIP, s.securityDetector.ExtractClientIP(r))
		} else {
			applog.FromContext(ctx).LogError(ctx, "Login error", err, applog.ErrorTypeAuth, applog.OpLogin)
		}
		view := loginView{pageView: s.page(r, "Sign in", "login"), Username: username, Error: msg}
		NewHTMXResponse().Status(status).BodyTemplate(s.templates, "login.html", view).Write(w)
		return
	}

	http.SetCookie(w, cookie)
	if r.Header.Get("HX-Request") == "true" {
		NewHTMXResponse().Redirect("/").Write(w)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, auth.LogoutCookie())
	if r.Header.Get("HX-Request") == "true" {
		NewHTMXResponse().Redirect("/login").Write(w)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
