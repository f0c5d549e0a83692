package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"fintrack/internal/auth"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
)

type sessionKey struct{}

var usernamePattern = regexp.MustCompile(`^[a-z0-9_.-]{3,50}$`)

// sessionFrom returns the session put in ctx by requireSession.
func sessionFrom(ctx context.Context) (auth.Session, bool) {
	sess, ok := ctx.Value(sessionKey{}).(auth.Session)
	return sess, ok
}

func (s *Server) sessionFromCookie(r *http.Request) (auth.Session, bool) {
	if s.deps.Issuer == nil {
		return auth.Session{}, false
	}
	c, err := r.Cookie(auth.CookieName)
	if err != nil {
		return auth.Session{}, false
	}
	sess, err := s.deps.Issuer.Parse(c.Value)
	if err != nil {
		return auth.Session{}, false
	}
	return sess, true
}

// requireSession redirects anonymous page requests to /login. HTMX requests
// get a 401 fragment plus HX-Redirect.
func (s *Server) requireSession(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.sessionFromCookie(r)
		if !ok {
			if r.Header.Get("HX-Request") == "true" {
				ErrorResponse(http.StatusUnauthorized, "Session expired, please log in again.").
					Header("HX-Redirect", "/login").
					Write(w)
				return
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		ctx := context.WithValue(r.Context(), sessionKey{}, sess)
		ctx = log.WithLogger(ctx, log.FromContext(ctx).With(log.FieldUser, sess.Username))
		next(w, r.WithContext(ctx))
	})
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.deps.Issuer.TTL().Seconds()),
		HttpOnly: true,
		Secure:   s.deps.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) handleSignupForm(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, http.StatusOK, "signup.html", pageData{Title: "Sign up"})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderPage(w, r, http.StatusBadRequest, "signup.html", pageData{Title: "Sign up", Error: "Invalid request format"})
		return
	}
	username := strings.ToLower(sanitizeInput(r.PostForm.Get("username")))
	password := r.PostForm.Get("password")

	fail := func(status int, msg string) {
		s.renderPage(w, r, status, "signup.html", pageData{Title: "Sign up", Error: msg, Content: username})
	}

	if !usernamePattern.MatchString(username) {
		fail(http.StatusUnprocessableEntity, "Username must be 3-50 characters: letters, digits, dot, dash or underscore.")
		return
	}
	hash, err := auth.HashPassword(password)
	if errors.Is(err, auth.ErrWeakPassword) {
		fail(http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err != nil {
		s.events.LogError(r.Context(), "Password hashing failed", err, log.OpSignup, nil)
		fail(http.StatusInternalServerError, "Could not create the account.")
		return
	}

	account, err := s.deps.Accounts.CreateAccount(r.Context(), username, hash)
	if errors.Is(err, ledger.ErrDuplicateAccount) {
		fail(http.StatusConflict, "That username is already taken.")
		return
	}
	if err != nil {
		s.events.LogError(r.Context(), "Account creation failed", err, log.OpSignup, log.NewFields().WithUser(username))
		fail(http.StatusInternalServerError, "Could not create the account.")
		return
	}

	token, err := s.deps.Issuer.Issue(account)
	if err != nil {
		s.events.LogError(r.Context(), "Session issue failed", err, log.OpSignup, log.NewFields().WithUser(username))
		fail(http.StatusInternalServerError, "Account created, but logging in failed. Please log in.")
		return
	}
	s.setSessionCookie(w, token)
	slog.InfoContext(r.Context(), "Account created", log.FieldUser, username)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, http.StatusOK, "login.html", pageData{Title: "Log in"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderPage(w, r, http.StatusBadRequest, "login.html", pageData{Title: "Log in", Error: "Invalid request format"})
		return
	}
	username := strings.ToLower(sanitizeInput(r.PostForm.Get("username")))
	password := r.PostForm.Get("password")

	denied := func() {
		s.renderPage(w, r, http.StatusUnauthorized, "login.html",
			pageData{Title: "Log in", Error: "Invalid username or password.", Content: username})
	}

	account, err := s.deps.Accounts.AccountByUsername(r.Context(), username)
	if errors.Is(err, ledger.ErrNotFound) {
		denied()
		return
	}
	if err != nil {
		s.events.LogError(r.Context(), "Account lookup failed", err, log.OpLogin, log.NewFields().WithUser(username))
		s.renderPage(w, r, http.StatusInternalServerError, "login.html", pageData{Title: "Log in", Error: "Login is temporarily unavailable."})
		return
	}
	if err := auth.CheckPassword(account.PasswordHash, password); err != nil {
		slog.WarnContext(r.Context(), "Failed login", log.FieldUser, username)
		denied()
		return
	}

	token, err := s.deps.Issuer.Issue(account)
	if err != nil {
		s.events.LogError(r.Context(), "Session issue failed", err, log.OpLogin, log.NewFields().WithUser(username))
		s.renderPage(w, r, http.StatusInternalServerError, "login.html", pageData{Title: "Log in", Error: "Login is temporarily unavailable."})
		return
	}
	s.setSessionCookie(w, token)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.deps.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
