package httpapi

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"blogspark/internal/auth"
	"blogspark/internal/domain"
	"blogspark/internal/service"
)

const (
	githubStateCookie = "oauthState"
	githubStateTTL    = 10 * time.Minute
)

type signupRequest struct {
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	Gender    string `json:"gender"`
	Contact   string `json:"contact"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

func (a *api) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadJSON(w)
		return
	}

	u, err := a.authSvc.Register(r.Context(), service.SignupInput{
		Firstname: req.Firstname,
		Lastname:  req.Lastname,
		Gender:    req.Gender,
		Contact:   req.Contact,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}

	a.logger.Info("signup", "user_id", u.ID)
	writeMessage(w, http.StatusCreated, "User registered successfully")
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *api) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadJSON(w)
		return
	}

	now := time.Now()
	emailKey := "email:" + strings.ToLower(strings.TrimSpace(req.Email))
	if !a.loginLimiter.Allow("ip:"+clientIP(r), now) || !a.loginLimiter.Allow(emailKey, now) {
		WriteDomainError(w, domain.ErrRateLimited)
		return
	}

	u, token, err := a.authSvc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	a.loginLimiter.Reset(emailKey)

	auth.SetSessionCookie(w, token, a.sessionTTL, a.cookieSecure)
	a.logger.Info("login", "user_id", u.ID)
	writeMessage(w, http.StatusOK, "Login successful")
}

func (a *api) handleLogout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w, a.cookieSecure)
	writeMessage(w, http.StatusOK, "Logout successful")
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

func (a *api) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadJSON(w)
		return
	}

	if err := a.verifySvc.IssuePasswordReset(r.Context(), req.Email); err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Reset password link sent successfully.")
}

type idTokenRequest struct {
	IDToken string `json:"idToken"`
}

func (a *api) handleLoginGoogle(w http.ResponseWriter, r *http.Request) {
	a.handleIDTokenLogin(w, r, a.authSvc.LoginWithGoogle)
}

func (a *api) handleLoginApple(w http.ResponseWriter, r *http.Request) {
	a.handleIDTokenLogin(w, r, a.authSvc.LoginWithApple)
}

type idTokenLogin func(ctx context.Context, idToken string) (domain.User, string, error)

func (a *api) handleIDTokenLogin(w http.ResponseWriter, r *http.Request, login idTokenLogin) {
	var req idTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadJSON(w)
		return
	}
	if strings.TrimSpace(req.IDToken) == "" {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"idToken": "required"}))
		return
	}

	_, token, err := login(r.Context(), req.IDToken)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	a.writeSession(w, r, token, "Login successful")
}

func (a *api) handleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	if a.github == nil {
		WriteError(w, http.StatusServiceUnavailable, "github_unavailable", "github sign-in is not configured")
		return
	}
	state, err := auth.NewLinkToken(auth.LinkTokenLength)
	if err != nil {
		a.writeDomainError(w, r, domain.Dependency("generate oauth state", err))
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     githubStateCookie,
		Value:    state,
		Path:     "/auth/github",
		HttpOnly: true,
		Secure:   a.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(githubStateTTL.Seconds()),
	})
	http.Redirect(w, r, a.github.AuthCodeURL(state), http.StatusFound)
}

func (a *api) handleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(githubStateCookie)
	http.SetCookie(w, &http.Cookie{
		Name:     githubStateCookie,
		Value:    "",
		Path:     "/auth/github",
		HttpOnly: true,
		Secure:   a.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
	state := r.URL.Query().Get("state")
	if err != nil || c.Value == "" || subtle.ConstantTimeCompare([]byte(c.Value), []byte(state)) != 1 {
		WriteError(w, http.StatusBadRequest, "invalid_state", "oauth state mismatch")
		return
	}
	if msg := r.URL.Query().Get("error"); msg != "" {
		WriteDomainError(w, domain.ErrInvalidCredentials)
		return
	}

	_, token, err := a.authSvc.LoginWithGitHub(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	auth.SetSessionCookie(w, token, a.sessionTTL, a.cookieSecure)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleRefreshCookie re-mints the session from the stored user, typically
// after the realtime channel reported a completed verification.
func (a *api) handleRefreshCookie(w http.ResponseWriter, r *http.Request) {
	claims, ok := CurrentClaims(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	_, token, err := a.authSvc.RefreshToken(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			auth.ClearSessionCookie(w, a.cookieSecure)
		}
		a.writeDomainError(w, r, err)
		return
	}
	a.writeSession(w, r, token, "Session updated")
}

// writeSession stores a freshly minted token in the cookie and echoes the
// profile it carries.
func (a *api) writeSession(w http.ResponseWriter, r *http.Request, token, message string) {
	claims, err := a.sessions.Decode(token)
	if err != nil {
		a.writeDomainError(w, r, domain.Dependency("decode issued token", err))
		return
	}
	auth.SetSessionCookie(w, token, a.sessionTTL, a.cookieSecure)
	WriteJSON(w, http.StatusOK, userMessageResponse{
		Message: message,
		User:    profileFromClaims(claims),
	})
}
