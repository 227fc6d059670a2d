package main

import (
	"context"
	"crypto/rand"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"blogspark/internal/auth"
	"blogspark/internal/config"
	"blogspark/internal/email"
	"blogspark/internal/httpapi"
	"blogspark/internal/imagestore"
	"blogspark/internal/ratelimit"
	"blogspark/internal/realtime"
	"blogspark/internal/service"
	"blogspark/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	logger := newLogger(cfg)
	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	if cfg.DBDSN == "" {
		return errors.New("APP_DB_DSN: required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !cfg.SkipMigrations {
		if err := postgres.Migrate(ctx, cfg.DBDSN); err != nil {
			return err
		}
		logger.Info("migrations applied")
	}

	pgPool, err := postgres.Open(ctx, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer pgPool.Close()

	users := postgres.NewUsersStore(pgPool)
	records := postgres.NewVerificationStore(pgPool)

	hub := realtime.NewHub(logger)
	go hub.Run(ctx)
	go postgres.NewSweeper(records, cfg.SweepInterval, logger).Run(ctx)

	secret := []byte(cfg.JWTSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return err
		}
		logger.Warn("APP_JWT_SECRET not set; sessions will not survive a restart")
	}
	tokens := auth.NewTokenCodec(secret, cfg.SessionTTL)

	authSvc := &service.AuthService{
		Users:          users,
		Tokens:         tokens,
		Log:            logger,
		GoogleClientID: cfg.OAuth.GoogleClientID,
		AppleServiceID: cfg.OAuth.AppleServiceID,
		VerifyGoogle:   auth.VerifyGoogleIDToken,
		VerifyApple:    auth.VerifyAppleIDToken,
	}
	var github httpapi.GitHubFlow
	if cfg.OAuth.GitHubClientID != "" {
		gh := auth.NewGitHubOAuth(cfg.OAuth.GitHubClientID, cfg.OAuth.GitHubClientSecret, cfg.BaseURL()+"/auth/github/callback")
		authSvc.GitHub = gh
		github = gh
	}

	verifySvc := &service.VerificationService{
		Users:         users,
		Records:       records,
		Mail:          newMailer(cfg, logger),
		Notifier:      hub,
		Log:           logger,
		BaseURL:       cfg.BaseURL(),
		TTL:           cfg.VerificationTTL,
		ResendLimiter: ratelimit.NewWindow(cfg.ResendCooldown, 1),
		OTPLimiter:    ratelimit.NewWindow(cfg.VerificationTTL, cfg.OTPMaxAttempts),
	}

	profileSvc := &service.ProfileService{
		Users:   users,
		Records: records,
		Tokens:  tokens,
		Log:     logger,
	}
	if cfg.S3.Enabled() {
		images, err := imagestore.NewS3Store(ctx, cfg.S3)
		if err != nil {
			return err
		}
		profileSvc.Images = images
		logger.Info("image uploads enabled", "bucket", cfg.S3.Bucket)
	} else {
		logger.Info("image uploads disabled: set APP_S3_BUCKET and APP_S3_REGION")
	}

	handler := httpapi.NewRouter(httpapi.RouterOpts{
		Logger:       logger,
		IsProd:       cfg.IsProd(),
		DBPing:       pgPool.Ping,
		Auth:         authSvc,
		Verification: verifySvc,
		Profile:      profileSvc,
		Sessions:     tokens,
		GitHub:       github,
		Realtime:     hub.Handler(originChecker(cfg)),
		CookieSecure: cfg.CookieSecure(),
		SessionTTL:   cfg.SessionTTL,
		UploadDir:    os.TempDir(),
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "env", cfg.Env, "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func newMailer(cfg config.Config, logger *slog.Logger) service.Mailer {
	if !cfg.SMTP.Enabled() {
		logger.Warn("smtp not configured; verification emails are logged instead of sent")
		return email.LogMailer{Log: logger}
	}
	return &email.Mailer{
		Settings: email.SMTPSettings{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			TLSMode:  cfg.SMTP.TLSMode,
		},
		FromName:  cfg.SMTP.FromName,
		FromEmail: cfg.SMTP.FromEmail,
	}
}

// originChecker admits websocket upgrades from the public origin only. In
// dev without a public URL any origin is accepted.
func originChecker(cfg config.Config) func(*http.Request) bool {
	if cfg.PublicURL == nil {
		if cfg.IsProd() {
			return nil
		}
		return func(*http.Request) bool { return true }
	}
	want := cfg.PublicURL.Scheme + "://" + cfg.PublicURL.Host
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(u.Scheme+"://"+u.Host, want)
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.IsProd() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
