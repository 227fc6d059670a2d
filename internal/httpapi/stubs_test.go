package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"blogspark/internal/auth"
	"blogspark/internal/domain"
	"blogspark/internal/service"
)

var testSecret = []byte("test-secret-0123456789abcdef0123")

type stubAuthService struct {
	t *testing.T

	registerFunc func(context.Context, service.SignupInput) (domain.User, error)
	loginFunc    func(context.Context, string, string) (domain.User, string, error)
	googleFunc   func(context.Context, string) (domain.User, string, error)
	appleFunc    func(context.Context, string) (domain.User, string, error)
	githubFunc   func(context.Context, string) (domain.User, string, error)
	refreshFunc  func(context.Context, string) (domain.User, string, error)
}

func (s *stubAuthService) Register(ctx context.Context, in service.SignupInput) (domain.User, error) {
	if s.registerFunc != nil {
		return s.registerFunc(ctx, in)
	}
	s.t.Fatalf("Register called unexpectedly")
	return domain.User{}, context.Canceled
}

func (s *stubAuthService) Login(ctx context.Context, email, password string) (domain.User, string, error) {
	if s.loginFunc != nil {
		return s.loginFunc(ctx, email, password)
	}
	s.t.Fatalf("Login called unexpectedly")
	return domain.User{}, "", context.Canceled
}

func (s *stubAuthService) LoginWithGoogle(ctx context.Context, idToken string) (domain.User, string, error) {
	if s.googleFunc != nil {
		return s.googleFunc(ctx, idToken)
	}
	s.t.Fatalf("LoginWithGoogle called unexpectedly")
	return domain.User{}, "", context.Canceled
}

func (s *stubAuthService) LoginWithApple(ctx context.Context, idToken string) (domain.User, string, error) {
	if s.appleFunc != nil {
		return s.appleFunc(ctx, idToken)
	}
	s.t.Fatalf("LoginWithApple called unexpectedly")
	return domain.User{}, "", context.Canceled
}

func (s *stubAuthService) LoginWithGitHub(ctx context.Context, code string) (domain.User, string, error) {
	if s.githubFunc != nil {
		return s.githubFunc(ctx, code)
	}
	s.t.Fatalf("LoginWithGitHub called unexpectedly")
	return domain.User{}, "", context.Canceled
}

func (s *stubAuthService) RefreshToken(ctx context.Context, userID string) (domain.User, string, error) {
	if s.refreshFunc != nil {
		return s.refreshFunc(ctx, userID)
	}
	s.t.Fatalf("RefreshToken called unexpectedly")
	return domain.User{}, "", context.Canceled
}

type stubVerificationService struct {
	t *testing.T

	issueEmailFunc   func(context.Context, string, string) error
	confirmLinkFunc  func(context.Context, string) error
	confirmOTPFunc   func(context.Context, string, string) error
	issueResetFunc   func(context.Context, string) error
	checkResetFunc   func(context.Context, string) error
	confirmResetFunc func(context.Context, string, string) error
}

func (s *stubVerificationService) IssueEmailVerification(ctx context.Context, userID, correlationID string) error {
	if s.issueEmailFunc != nil {
		return s.issueEmailFunc(ctx, userID, correlationID)
	}
	s.t.Fatalf("IssueEmailVerification called unexpectedly")
	return context.Canceled
}

func (s *stubVerificationService) ConfirmEmailLink(ctx context.Context, token string) error {
	if s.confirmLinkFunc != nil {
		return s.confirmLinkFunc(ctx, token)
	}
	s.t.Fatalf("ConfirmEmailLink called unexpectedly")
	return context.Canceled
}

func (s *stubVerificationService) ConfirmEmailOTP(ctx context.Context, userID, otp string) error {
	if s.confirmOTPFunc != nil {
		return s.confirmOTPFunc(ctx, userID, otp)
	}
	s.t.Fatalf("ConfirmEmailOTP called unexpectedly")
	return context.Canceled
}

func (s *stubVerificationService) IssuePasswordReset(ctx context.Context, email string) error {
	if s.issueResetFunc != nil {
		return s.issueResetFunc(ctx, email)
	}
	s.t.Fatalf("IssuePasswordReset called unexpectedly")
	return context.Canceled
}

func (s *stubVerificationService) CheckPasswordReset(ctx context.Context, token string) error {
	if s.checkResetFunc != nil {
		return s.checkResetFunc(ctx, token)
	}
	s.t.Fatalf("CheckPasswordReset called unexpectedly")
	return context.Canceled
}

func (s *stubVerificationService) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if s.confirmResetFunc != nil {
		return s.confirmResetFunc(ctx, token, newPassword)
	}
	s.t.Fatalf("ConfirmPasswordReset called unexpectedly")
	return context.Canceled
}

type profileFunc func(ctx context.Context, userID string, args ...string) (domain.User, string, error)

// stubProfileService routes every mutation through one callback keyed by the
// method name.
type stubProfileService struct {
	t     *testing.T
	funcs map[string]profileFunc
}

func (s *stubProfileService) call(ctx context.Context, method, userID string, args ...string) (domain.User, string, error) {
	if fn, ok := s.funcs[method]; ok {
		return fn(ctx, userID, args...)
	}
	s.t.Fatalf("%s called unexpectedly", method)
	return domain.User{}, "", context.Canceled
}

func (s *stubProfileService) UpdateName(ctx context.Context, userID, firstname, lastname string) (domain.User, string, error) {
	return s.call(ctx, "UpdateName", userID, firstname, lastname)
}

func (s *stubProfileService) UpdateBio(ctx context.Context, userID, bio string) (domain.User, string, error) {
	return s.call(ctx, "UpdateBio", userID, bio)
}

func (s *stubProfileService) UpdateGender(ctx context.Context, userID, gender string) (domain.User, string, error) {
	return s.call(ctx, "UpdateGender", userID, gender)
}

func (s *stubProfileService) UpdateContact(ctx context.Context, userID, contact string) (domain.User, string, error) {
	return s.call(ctx, "UpdateContact", userID, contact)
}

func (s *stubProfileService) UpdateEmail(ctx context.Context, userID, email string) (domain.User, string, error) {
	return s.call(ctx, "UpdateEmail", userID, email)
}

func (s *stubProfileService) UpdateAvatar(ctx context.Context, userID, filePath string) (domain.User, string, error) {
	return s.call(ctx, "UpdateAvatar", userID, filePath)
}

func (s *stubProfileService) UpdateCover(ctx context.Context, userID, filePath string) (domain.User, string, error) {
	return s.call(ctx, "UpdateCover", userID, filePath)
}

func (s *stubProfileService) ChangePassword(ctx context.Context, userID, current, next string) (domain.User, string, error) {
	return s.call(ctx, "ChangePassword", userID, current, next)
}

func (s *stubProfileService) SetPassword(ctx context.Context, userID, password string) (domain.User, string, error) {
	return s.call(ctx, "SetPassword", userID, password)
}

type stubGitHubFlow struct {
	states []string
}

func (s *stubGitHubFlow) AuthCodeURL(state string) string {
	s.states = append(s.states, state)
	return "https://github.com/login/oauth/authorize?state=" + state
}

func testCodec() *auth.TokenCodec {
	return auth.NewTokenCodec(testSecret, time.Hour)
}

func testClaims() domain.Claims {
	return domain.ClaimsFor(domain.UserWithPassword{
		User: domain.User{
			ID:        "user-1",
			Email:     "jane@example.com",
			Firstname: "Jane",
			Lastname:  "Doe",
			Gender:    domain.GenderFemale,
			Contact:   "+15550102030",
		},
		PasswordHash: "hash",
	})
}

func mustIssue(t *testing.T, codec *auth.TokenCodec, claims domain.Claims) string {
	t.Helper()
	token, err := codec.IssueClaims(claims)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func sessionCookie(t *testing.T, claims domain.Claims) *http.Cookie {
	t.Helper()
	return &http.Cookie{Name: auth.SessionCookieName, Value: mustIssue(t, testCodec(), claims)}
}

// newTestRouter fills the session decoder and a quiet logger, leaving the
// services to the caller.
func newTestRouter(opts RouterOpts) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Sessions == nil {
		opts.Sessions = testCodec()
	}
	return NewRouter(opts)
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func responseCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return v
}

func assertCleared(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	c := responseCookie(rec, auth.SessionCookieName)
	if c == nil {
		t.Fatalf("expected session cookie to be cleared")
	}
	if c.Value != "" || c.MaxAge >= 0 {
		t.Fatalf("expected cleared cookie, got value=%q max_age=%d", c.Value, c.MaxAge)
	}
}
