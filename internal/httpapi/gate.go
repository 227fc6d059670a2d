package httpapi

import (
	"context"
	"net"
	"net/http"
	"strings"

	"blogspark/internal/auth"
	"blogspark/internal/domain"
)

// RequestContext is what the auth gate attaches to every gated request.
type RequestContext struct {
	Claims          domain.Claims
	IsAuthenticated bool
}

type authCtxKey int

const requestContextKey authCtxKey = iota

func withRequestContext(r *http.Request, rc RequestContext) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), requestContextKey, rc))
}

func FromContext(ctx context.Context) (RequestContext, bool) {
	rc, ok := ctx.Value(requestContextKey).(RequestContext)
	return rc, ok
}

// CurrentClaims returns the claims of an authenticated request.
func CurrentClaims(ctx context.Context) (domain.Claims, bool) {
	rc, ok := FromContext(ctx)
	if !ok || !rc.IsAuthenticated {
		return domain.Claims{}, false
	}
	return rc.Claims, true
}

type sessionState int

const (
	sessionAbsent sessionState = iota
	sessionInvalid
	sessionValid
)

func (a *api) readSession(r *http.Request) (domain.Claims, sessionState) {
	token, ok := auth.SessionToken(r)
	if !ok {
		return domain.Claims{}, sessionAbsent
	}
	claims, err := a.sessions.Decode(token)
	if err != nil {
		reason := "invalid"
		if domain.IsExpired(err) {
			reason = "expired"
		}
		a.logger.Debug("session token rejected", "reason", reason, "path", r.URL.Path)
		return domain.Claims{}, sessionInvalid
	}
	return claims, sessionValid
}

func (a *api) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, state := a.readSession(r)
		switch state {
		case sessionValid:
			next.ServeHTTP(w, withRequestContext(r, RequestContext{Claims: claims, IsAuthenticated: true}))
			return
		case sessionInvalid:
			auth.ClearSessionCookie(w, a.cookieSecure)
		}
		WriteDomainError(w, domain.ErrUnauthorized)
	}
}

// requireGuest admits only callers without a valid session. A stale or
// forged cookie is cleared and the caller proceeds as a guest.
func (a *api) requireGuest(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, state := a.readSession(r)
		switch state {
		case sessionValid:
			WriteDomainError(w, domain.ErrAlreadyAuthenticated)
			return
		case sessionInvalid:
			auth.ClearSessionCookie(w, a.cookieSecure)
		}
		next.ServeHTTP(w, withRequestContext(r, RequestContext{}))
	}
}

func (a *api) optionalAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, state := a.readSession(r)
		rc := RequestContext{}
		switch state {
		case sessionValid:
			rc = RequestContext{Claims: claims, IsAuthenticated: true}
		case sessionInvalid:
			auth.ClearSessionCookie(w, a.cookieSecure)
		}
		next.ServeHTTP(w, withRequestContext(r, rc))
	}
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
