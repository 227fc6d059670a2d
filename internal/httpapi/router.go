package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"blogspark/internal/domain"
	"blogspark/internal/ratelimit"
	"blogspark/internal/service"
)

type AuthService interface {
	Register(ctx context.Context, in service.SignupInput) (domain.User, error)
	Login(ctx context.Context, email, password string) (domain.User, string, error)
	LoginWithGoogle(ctx context.Context, idToken string) (domain.User, string, error)
	LoginWithApple(ctx context.Context, idToken string) (domain.User, string, error)
	LoginWithGitHub(ctx context.Context, code string) (domain.User, string, error)
	RefreshToken(ctx context.Context, userID string) (domain.User, string, error)
}

type VerificationService interface {
	IssueEmailVerification(ctx context.Context, userID, correlationID string) error
	ConfirmEmailLink(ctx context.Context, token string) error
	ConfirmEmailOTP(ctx context.Context, userID, otp string) error
	IssuePasswordReset(ctx context.Context, email string) error
	CheckPasswordReset(ctx context.Context, token string) error
	ConfirmPasswordReset(ctx context.Context, token, newPassword string) error
}

type ProfileService interface {
	UpdateName(ctx context.Context, userID, firstname, lastname string) (domain.User, string, error)
	UpdateBio(ctx context.Context, userID, bio string) (domain.User, string, error)
	UpdateGender(ctx context.Context, userID, gender string) (domain.User, string, error)
	UpdateContact(ctx context.Context, userID, contact string) (domain.User, string, error)
	UpdateEmail(ctx context.Context, userID, email string) (domain.User, string, error)
	UpdateAvatar(ctx context.Context, userID, filePath string) (domain.User, string, error)
	UpdateCover(ctx context.Context, userID, filePath string) (domain.User, string, error)
	ChangePassword(ctx context.Context, userID, current, next string) (domain.User, string, error)
	SetPassword(ctx context.Context, userID, password string) (domain.User, string, error)
}

type SessionDecoder interface {
	Decode(token string) (domain.Claims, error)
}

// GitHubFlow starts the GitHub authorization-code flow.
type GitHubFlow interface {
	AuthCodeURL(state string) string
}

type RouterOpts struct {
	Logger *slog.Logger
	IsProd bool

	DBPing func(context.Context) error

	Auth         AuthService
	Verification VerificationService
	Profile      ProfileService
	Sessions     SessionDecoder
	GitHub       GitHubFlow
	Realtime     http.Handler

	CookieSecure bool
	SessionTTL   time.Duration
	UploadDir    string
	// LoginLimiter defaults to 10 attempts per 10 minutes per client and per email.
	LoginLimiter *ratelimit.Window
}

func NewRouter(opts RouterOpts) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 24 * time.Hour
	}
	if opts.LoginLimiter == nil {
		opts.LoginLimiter = ratelimit.NewWindow(10*time.Minute, 10)
	}

	api := &api{
		logger:       logger,
		isProd:       opts.IsProd,
		dbPing:       opts.DBPing,
		authSvc:      opts.Auth,
		verifySvc:    opts.Verification,
		profileSvc:   opts.Profile,
		sessions:     opts.Sessions,
		github:       opts.GitHub,
		uploadDir:    opts.UploadDir,
		cookieSecure: opts.CookieSecure,
		sessionTTL:   opts.SessionTTL,
		loginLimiter: opts.LoginLimiter,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", api.handleHealthz)
	mux.HandleFunc("GET /{$}", api.optionalAuth(api.handleHome))
	if opts.Realtime != nil {
		mux.Handle("GET /ws", opts.Realtime)
	}

	mux.HandleFunc("POST /user/signup", api.requireGuest(api.handleSignup))
	mux.HandleFunc("POST /user/login", api.requireGuest(api.handleLogin))
	mux.HandleFunc("POST /user/logout", api.requireAuth(api.handleLogout))
	mux.HandleFunc("POST /user/forgot-password", api.requireGuest(api.handleForgotPassword))

	mux.HandleFunc("GET /user/profile", api.requireAuth(api.handleProfile))
	mux.HandleFunc("PATCH /user/profile/user-name", api.requireAuth(api.handleUpdateName))
	mux.HandleFunc("PATCH /user/profile/bio", api.requireAuth(api.handleUpdateBio))
	mux.HandleFunc("PATCH /user/profile/gender", api.requireAuth(api.handleUpdateGender))
	mux.HandleFunc("PATCH /user/profile/contact", api.requireAuth(api.handleUpdateContact))
	mux.HandleFunc("PATCH /user/profile/email/update", api.requireAuth(api.handleUpdateEmail))
	mux.HandleFunc("POST /user/profile/email/verify", api.requireAuth(api.handleIssueEmailVerification))
	mux.HandleFunc("PATCH /user/profile/avatar-image", api.requireAuth(api.handleUpdateAvatar))
	mux.HandleFunc("PATCH /user/profile/cover-image", api.requireAuth(api.handleUpdateCover))
	mux.HandleFunc("PATCH /user/profile/password", api.requireAuth(api.handleChangePassword))
	mux.HandleFunc("POST /user/profile/password", api.requireAuth(api.handleSetPassword))

	mux.HandleFunc("POST /verify/email/verify-otp", api.requireAuth(api.handleVerifyOTP))
	mux.HandleFunc("GET /verify/email/{token}", api.handleVerifyEmailLink)
	mux.HandleFunc("GET /verify/reset-password/{token}", api.handleCheckResetLink)
	mux.HandleFunc("PATCH /verify/reset-password/{token}", api.handleResetPassword)
	mux.HandleFunc("PATCH /verify/set-cookie", api.requireAuth(api.handleRefreshCookie))

	mux.HandleFunc("POST /auth/google", api.requireGuest(api.handleLoginGoogle))
	mux.HandleFunc("POST /auth/apple", api.requireGuest(api.handleLoginApple))
	mux.HandleFunc("GET /auth/github/login", api.requireGuest(api.handleGitHubLogin))
	mux.HandleFunc("GET /auth/github/callback", api.requireGuest(api.handleGitHubCallback))

	root := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, pattern := mux.Handler(r); pattern == "" {
			WriteError(w, http.StatusNotFound, "not_found", "not found")
			return
		}
		mux.ServeHTTP(w, r)
	})

	var h http.Handler = root
	h = RequestLogger(logger)(h)
	h = RequestID()(h)
	h = Recoverer(logger, opts.IsProd)(h)
	return h
}

type api struct {
	logger *slog.Logger
	isProd bool

	dbPing func(context.Context) error

	authSvc    AuthService
	verifySvc  VerificationService
	profileSvc ProfileService
	sessions   SessionDecoder
	github     GitHubFlow

	uploadDir    string
	cookieSecure bool
	sessionTTL   time.Duration

	loginLimiter *ratelimit.Window
}

func (a *api) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if a.dbPing != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
		defer cancel()
		if err := a.dbPing(ctx); err != nil {
			a.logger.Warn("healthz: db ping failed", "err", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db down"))
			return
		}
	}

	_, _ = w.Write([]byte("ok"))
}

type homeResponse struct {
	IsLoggedIn        bool   `json:"isLoggedIn"`
	Fullname          string `json:"fullname,omitempty"`
	ProfileImg        string `json:"profileImg,omitempty"`
	NeedsVerification bool   `json:"needsVerification"`
}

func (a *api) handleHome(w http.ResponseWriter, r *http.Request) {
	rc, _ := FromContext(r.Context())
	if !rc.IsAuthenticated {
		WriteJSON(w, http.StatusOK, homeResponse{})
		return
	}
	WriteJSON(w, http.StatusOK, homeResponse{
		IsLoggedIn:        true,
		Fullname:          rc.Claims.FullName(),
		ProfileImg:        rc.Claims.ProfileImg,
		NeedsVerification: !rc.Claims.IsVerified,
	})
}

// writeDomainError logs dependency failures with request context before
// answering with the generic mapping.
func (a *api) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	if isInternal(err) {
		fields := []any{"err", err, "path", r.URL.Path}
		if rid, ok := GetRequestID(r.Context()); ok {
			fields = append(fields, "request_id", rid)
		}
		if c, ok := CurrentClaims(r.Context()); ok {
			fields = append(fields, "user_id", c.UserID)
		}
		a.logger.Error("request failed", fields...)
	}
	WriteDomainError(w, err)
}
