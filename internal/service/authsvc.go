package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"blogspark/internal/auth"
	"blogspark/internal/domain"
)

type IDTokenVerifier func(ctx context.Context, idToken, audience string) (*domain.ExternalProfile, error)

type CodeExchanger interface {
	Exchange(ctx context.Context, code string) (*domain.ExternalProfile, error)
}

type AuthService struct {
	Users  UsersStore
	Tokens TokenIssuer
	Log    *slog.Logger

	GoogleClientID string
	AppleServiceID string
	VerifyGoogle   IDTokenVerifier
	VerifyApple    IDTokenVerifier
	GitHub         CodeExchanger
}

type SignupInput struct {
	Firstname string
	Lastname  string
	Gender    string
	Contact   string
	Email     string
	Password  string
}

func (s *AuthService) log() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}

// Register creates an unverified password account. No session is issued;
// the client logs in afterwards.
func (s *AuthService) Register(ctx context.Context, in SignupInput) (domain.User, error) {
	nu := domain.NewUser{
		Email:     normalizeEmail(in.Email),
		Firstname: strings.TrimSpace(in.Firstname),
		Lastname:  strings.TrimSpace(in.Lastname),
		Gender:    domain.Gender(strings.ToLower(strings.TrimSpace(in.Gender))),
		Contact:   normalizeContact(in.Contact),
	}

	f := fieldErrors{}
	checkName(f, "firstname", nu.Firstname)
	checkName(f, "lastname", nu.Lastname)
	checkGender(f, nu.Gender)
	checkContact(f, nu.Contact)
	checkEmail(f, nu.Email)
	checkPassword(f, "password", in.Password)
	if err := f.err(); err != nil {
		return domain.User{}, err
	}

	if _, err := s.Users.GetUserByEmail(ctx, nu.Email); err == nil {
		return domain.User{}, domain.ErrEmailTaken
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, storeErr("get user by email", err)
	}
	if _, err := s.Users.GetUserByContact(ctx, nu.Contact); err == nil {
		return domain.User{}, domain.ErrContactTaken
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, storeErr("get user by contact", err)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, domain.Dependency("hash password", err)
	}
	nu.PasswordHash = hash

	u, err := s.Users.CreateUser(ctx, nu)
	if err != nil {
		return domain.User{}, storeErr("create user", err)
	}
	s.log().Info("user registered", slog.String("user_id", u.ID))
	return u.User, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (domain.User, string, error) {
	email = normalizeEmail(email)
	f := fieldErrors{}
	checkEmail(f, email)
	if password == "" {
		f["password"] = "Enter your password"
	}
	if err := f.err(); err != nil {
		return domain.User{}, "", err
	}

	u, err := s.Users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, "", domain.ErrUserNotRegistered
		}
		return domain.User{}, "", storeErr("get user by email", err)
	}
	if !u.HasPassword() || !auth.VerifyPassword(u.PasswordHash, password) {
		return domain.User{}, "", domain.ErrInvalidPassword
	}
	return s.issue(u)
}

func (s *AuthService) LoginWithGoogle(ctx context.Context, idToken string) (domain.User, string, error) {
	if s.VerifyGoogle == nil || s.GoogleClientID == "" {
		return domain.User{}, "", domain.Dependency("google sign-in", errors.New("not configured"))
	}
	p, err := s.VerifyGoogle(ctx, idToken, s.GoogleClientID)
	if err != nil {
		s.log().Info("google id token rejected", slog.String("error", err.Error()))
		return domain.User{}, "", domain.ErrInvalidCredentials
	}
	return s.loginExternal(ctx, p)
}

func (s *AuthService) LoginWithApple(ctx context.Context, idToken string) (domain.User, string, error) {
	if s.VerifyApple == nil || s.AppleServiceID == "" {
		return domain.User{}, "", domain.Dependency("apple sign-in", errors.New("not configured"))
	}
	p, err := s.VerifyApple(ctx, idToken, s.AppleServiceID)
	if err != nil {
		s.log().Info("apple id token rejected", slog.String("error", err.Error()))
		return domain.User{}, "", domain.ErrInvalidCredentials
	}
	return s.loginExternal(ctx, p)
}

func (s *AuthService) LoginWithGitHub(ctx context.Context, code string) (domain.User, string, error) {
	if s.GitHub == nil {
		return domain.User{}, "", domain.Dependency("github sign-in", errors.New("not configured"))
	}
	p, err := s.GitHub.Exchange(ctx, code)
	if err != nil {
		s.log().Info("github exchange failed", slog.String("error", err.Error()))
		return domain.User{}, "", domain.ErrInvalidCredentials
	}
	return s.loginExternal(ctx, p)
}

// loginExternal resolves a provider identity to a user: by provider id
// first, then by email (linking the provider), else a new account.
func (s *AuthService) loginExternal(ctx context.Context, p *domain.ExternalProfile) (domain.User, string, error) {
	if p == nil || p.ProviderID == "" || p.Email == "" {
		return domain.User{}, "", domain.ErrInvalidCredentials
	}

	u, err := s.Users.GetUserByExternalAccount(ctx, p.Provider, p.ProviderID)
	if err == nil {
		return s.issue(u)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, "", storeErr("get user by external account", err)
	}

	existing, err := s.Users.GetUserByEmail(ctx, p.Email)
	switch {
	case err == nil:
		u, err = s.Users.LinkExternalAccount(ctx, existing.ID, *p)
		if err != nil {
			return domain.User{}, "", storeErr("link external account", err)
		}
		s.log().Info("external account linked", slog.String("user_id", u.ID), slog.String("provider", p.Provider))
	case errors.Is(err, domain.ErrNotFound):
		profile := *p
		if profile.Firstname == "" {
			profile.Firstname, _, _ = strings.Cut(p.Email, "@")
		}
		u, err = s.Users.CreateUserWithExternalAccount(ctx, profile)
		if errors.Is(err, domain.ErrExternalAccountExists) {
			// lost a race with a concurrent first sign-in
			u, err = s.Users.GetUserByExternalAccount(ctx, p.Provider, p.ProviderID)
		}
		if err != nil {
			return domain.User{}, "", storeErr("create external user", err)
		}
		s.log().Info("user registered", slog.String("user_id", u.ID), slog.String("provider", p.Provider))
	default:
		return domain.User{}, "", storeErr("get user by email", err)
	}
	return s.issue(u)
}

// RefreshToken re-mints a session from the stored user so claims such as
// isVerified catch up with changes made outside this session.
func (s *AuthService) RefreshToken(ctx context.Context, userID string) (domain.User, string, error) {
	u, err := s.Users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, "", domain.ErrUnauthorized
		}
		return domain.User{}, "", storeErr("get user by id", err)
	}
	return s.issue(u)
}

func (s *AuthService) issue(u domain.UserWithPassword) (domain.User, string, error) {
	token, err := s.Tokens.Issue(u)
	if err != nil {
		return domain.User{}, "", domain.Dependency("issue session token", err)
	}
	return u.User, token, nil
}
