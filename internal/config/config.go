package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env       string
	Addr      string
	PublicURL *url.URL
	DBDSN     string
	JWTSecret string
	LogLevel  string

	SessionTTL          time.Duration
	VerificationTTL     time.Duration
	ResendCooldown      time.Duration
	OTPMaxAttempts      int
	SweepInterval       time.Duration
	SkipMigrations      bool
	ShutdownGracePeriod time.Duration

	SMTP  SMTPConfig
	S3    S3Config
	OAuth OAuthConfig
}

type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	TLSMode   string
	FromEmail string
	FromName  string
}

func (c SMTPConfig) Enabled() bool { return c.Host != "" && c.FromEmail != "" }

type S3Config struct {
	Bucket        string
	Region        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
}

func (c S3Config) Enabled() bool { return c.Bucket != "" && c.Region != "" }

type OAuthConfig struct {
	GoogleClientID     string
	AppleServiceID     string
	GitHubClientID     string
	GitHubClientSecret string
}

func Load() (Config, error) {
	envFile := os.Getenv("APP_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := loadDotEnvFile(envFile, os.Setenv, os.Getenv); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("%s: %w", envFile, err)
	}
	return LoadFromEnv(os.Getenv)
}

func LoadFromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Env:       getenv("APP_ENV"),
		Addr:      getenv("APP_ADDR"),
		DBDSN:     getenv("APP_DB_DSN"),
		LogLevel:  getenv("APP_LOG_LEVEL"),
		JWTSecret: getenv("APP_JWT_SECRET"),
	}

	if cfg.Env == "" {
		cfg.Env = "dev"
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8000"
	}

	switch cfg.Env {
	case "dev", "prod", "test":
	default:
		return Config{}, errors.New("APP_ENV: must be one of dev, test, prod")
	}

	publicURLRaw := getenv("APP_PUBLIC_URL")
	if publicURLRaw != "" {
		parsed, err := url.Parse(publicURLRaw)
		if err != nil {
			return Config{}, fmt.Errorf("APP_PUBLIC_URL: %w", err)
		}
		if !parsed.IsAbs() || parsed.Host == "" {
			return Config{}, errors.New("APP_PUBLIC_URL: must be an absolute URL")
		}
		switch parsed.Scheme {
		case "http", "https":
		default:
			return Config{}, errors.New("APP_PUBLIC_URL: scheme must be http or https")
		}
		parsed.Path = strings.TrimRight(parsed.Path, "/")
		cfg.PublicURL = parsed
	}

	var err error
	if cfg.SessionTTL, err = durationVar(getenv, "APP_SESSION_TTL", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.VerificationTTL, err = durationVar(getenv, "APP_VERIFICATION_TTL", 6*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.ResendCooldown, err = durationVar(getenv, "APP_RESEND_COOLDOWN", 60*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.SweepInterval, err = durationVar(getenv, "APP_SWEEP_INTERVAL", time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownGracePeriod, err = durationVar(getenv, "APP_SHUTDOWN_GRACE", 10*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.OTPMaxAttempts, err = intVar(getenv, "APP_OTP_MAX_ATTEMPTS", 5); err != nil {
		return Config{}, err
	}
	cfg.SkipMigrations = getenv("APP_SKIP_MIGRATIONS") == "true"

	cfg.SMTP = SMTPConfig{
		Host:      strings.TrimSpace(getenv("APP_SMTP_HOST")),
		Username:  getenv("APP_SMTP_USERNAME"),
		Password:  getenv("APP_SMTP_PASSWORD"),
		TLSMode:   strings.ToLower(strings.TrimSpace(getenv("APP_SMTP_TLS_MODE"))),
		FromEmail: strings.TrimSpace(getenv("APP_SMTP_FROM_EMAIL")),
		FromName:  strings.TrimSpace(getenv("APP_SMTP_FROM_NAME")),
	}
	if cfg.SMTP.Port, err = intVar(getenv, "APP_SMTP_PORT", 587); err != nil {
		return Config{}, err
	}
	switch cfg.SMTP.TLSMode {
	case "", "starttls", "tls", "none":
	default:
		return Config{}, errors.New("APP_SMTP_TLS_MODE: must be one of starttls, tls, none")
	}

	cfg.S3 = S3Config{
		Bucket:        strings.TrimSpace(getenv("APP_S3_BUCKET")),
		Region:        strings.TrimSpace(getenv("APP_S3_REGION")),
		Endpoint:      strings.TrimSpace(getenv("APP_S3_ENDPOINT")),
		AccessKey:     getenv("APP_S3_ACCESS_KEY"),
		SecretKey:     getenv("APP_S3_SECRET_KEY"),
		PublicBaseURL: strings.TrimRight(strings.TrimSpace(getenv("APP_S3_PUBLIC_BASE_URL")), "/"),
	}

	cfg.OAuth = OAuthConfig{
		GoogleClientID:     strings.TrimSpace(getenv("APP_GOOGLE_CLIENT_ID")),
		AppleServiceID:     strings.TrimSpace(getenv("APP_APPLE_SERVICE_ID")),
		GitHubClientID:     strings.TrimSpace(getenv("APP_GITHUB_CLIENT_ID")),
		GitHubClientSecret: getenv("APP_GITHUB_CLIENT_SECRET"),
	}
	if (cfg.OAuth.GitHubClientID == "") != (cfg.OAuth.GitHubClientSecret == "") {
		return Config{}, errors.New("APP_GITHUB_CLIENT_ID and APP_GITHUB_CLIENT_SECRET must be set together")
	}

	if cfg.IsProd() {
		if cfg.PublicURL == nil {
			return Config{}, errors.New("APP_PUBLIC_URL: required in prod")
		}
		if cfg.DBDSN == "" {
			return Config{}, errors.New("APP_DB_DSN: required in prod")
		}
		if len(cfg.JWTSecret) < 32 {
			return Config{}, errors.New("APP_JWT_SECRET: must be at least 32 bytes in prod")
		}
	}

	return cfg, nil
}

func (c Config) IsProd() bool { return c.Env == "prod" }

func (c Config) CookieSecure() bool {
	if c.PublicURL != nil {
		return c.PublicURL.Scheme == "https"
	}
	return c.IsProd()
}

// BaseURL is the origin used in emailed links.
func (c Config) BaseURL() string {
	if c.PublicURL != nil {
		return c.PublicURL.String()
	}
	return "http://" + c.Addr
}

func durationVar(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(getenv(key))
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be > 0", key)
	}
	return d, nil
}

func intVar(getenv func(string) string, key string, def int) (int, error) {
	raw := strings.TrimSpace(getenv(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s: must be > 0", key)
	}
	return n, nil
}
