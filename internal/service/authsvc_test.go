package service

import (
	"context"
	"errors"
	"testing"

	"blogspark/internal/auth"
	"blogspark/internal/domain"
)

func janeSignup() SignupInput {
	return SignupInput{
		Firstname: "Jane",
		Lastname:  "Doe",
		Gender:    "Female",
		Contact:   "+1 (555) 010-2030",
		Email:     " Jane@X.com ",
		Password:  "Passw0rd!",
	}
}

func TestAuthServiceRegister(t *testing.T) {
	var created domain.NewUser
	users := &stubUsersStore{
		t: t,
		getUserByEmailFunc: func(_ context.Context, email string) (domain.UserWithPassword, error) {
			if email != "jane@x.com" {
				t.Fatalf("unexpected email lookup: %s", email)
			}
			return domain.UserWithPassword{}, domain.ErrNotFound
		},
		getUserByContactFunc: func(_ context.Context, contact string) (domain.UserWithPassword, error) {
			if contact != "+15550102030" {
				t.Fatalf("unexpected contact lookup: %s", contact)
			}
			return domain.UserWithPassword{}, domain.ErrNotFound
		},
		createUserFunc: func(_ context.Context, nu domain.NewUser) (domain.UserWithPassword, error) {
			created = nu
			return domain.UserWithPassword{
				User:         domain.User{ID: "user-1", Email: nu.Email, Firstname: nu.Firstname, Lastname: nu.Lastname},
				PasswordHash: nu.PasswordHash,
			}, nil
		},
	}
	svc := &AuthService{Users: users, Tokens: &stubTokens{}}

	u, err := svc.Register(context.Background(), janeSignup())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.ID != "user-1" || u.IsVerified {
		t.Fatalf("unexpected user: %+v", u)
	}
	if created.Email != "jane@x.com" || created.Gender != domain.GenderFemale || created.Contact != "+15550102030" {
		t.Fatalf("unexpected insert: %+v", created)
	}
	if created.PasswordHash == "" || created.PasswordHash == "Passw0rd!" {
		t.Fatalf("password must be stored hashed")
	}
	if !auth.VerifyPassword(created.PasswordHash, "Passw0rd!") {
		t.Fatalf("stored hash does not verify")
	}
}

func TestAuthServiceRegisterDuplicates(t *testing.T) {
	existing := domain.UserWithPassword{User: domain.User{ID: "user-9"}}
	cases := []struct {
		name    string
		users   func(t *testing.T) *stubUsersStore
		wantErr error
	}{
		{
			name: "email",
			users: func(t *testing.T) *stubUsersStore {
				return &stubUsersStore{
					t: t,
					getUserByEmailFunc: func(context.Context, string) (domain.UserWithPassword, error) {
						return existing, nil
					},
				}
			},
			wantErr: domain.ErrEmailTaken,
		},
		{
			name: "contact",
			users: func(t *testing.T) *stubUsersStore {
				return &stubUsersStore{
					t: t,
					getUserByEmailFunc: func(context.Context, string) (domain.UserWithPassword, error) {
						return domain.UserWithPassword{}, domain.ErrNotFound
					},
					getUserByContactFunc: func(context.Context, string) (domain.UserWithPassword, error) {
						return existing, nil
					},
				}
			},
			wantErr: domain.ErrContactTaken,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &AuthService{Users: tc.users(t), Tokens: &stubTokens{}}
			if _, err := svc.Register(context.Background(), janeSignup()); !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestAuthServiceRegisterValidatesBeforeStore(t *testing.T) {
	in := janeSignup()
	in.Firstname = "J"
	in.Password = "password"
	in.Gender = "unknown"

	svc := &AuthService{Users: &stubUsersStore{t: t}, Tokens: &stubTokens{}}
	_, err := svc.Register(context.Background(), in)

	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, field := range []string{"firstname", "password", "gender"} {
		if ve.Fields[field] == "" {
			t.Fatalf("expected %s to be reported, got %v", field, ve.Fields)
		}
	}
}

func TestAuthServiceLogin(t *testing.T) {
	hash, err := auth.HashPassword("Passw0rd!")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	stored := domain.UserWithPassword{
		User:         domain.User{ID: "user-1", Email: "jane@x.com", Firstname: "Jane"},
		PasswordHash: hash,
	}
	users := &stubUsersStore{
		t: t,
		getUserByEmailFunc: func(_ context.Context, email string) (domain.UserWithPassword, error) {
			if email != "jane@x.com" {
				return domain.UserWithPassword{}, domain.ErrNotFound
			}
			return stored, nil
		},
	}
	tokens := &stubTokens{}
	svc := &AuthService{Users: users, Tokens: tokens}
	ctx := context.Background()

	u, token, err := svc.Login(ctx, "JANE@x.com", "Passw0rd!")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if u.ID != "user-1" || token != "token-1" {
		t.Fatalf("unexpected login result: %+v %s", u, token)
	}
	if len(tokens.issued) != 1 || tokens.issued[0].PasswordHash != hash {
		t.Fatalf("token must be issued for the stored user")
	}

	if _, _, err := svc.Login(ctx, "jane@x.com", "Wrong-Passw0rd"); !errors.Is(err, domain.ErrInvalidPassword) {
		t.Fatalf("wrong password: expected invalid password, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "john@x.com", "Passw0rd!"); !errors.Is(err, domain.ErrUserNotRegistered) {
		t.Fatalf("unknown email: expected user not registered, got %v", err)
	}
	if len(tokens.issued) != 1 {
		t.Fatalf("failed logins must not issue tokens")
	}
}

func TestAuthServiceLoginWithoutPassword(t *testing.T) {
	users := &stubUsersStore{
		t: t,
		getUserByEmailFunc: func(_ context.Context, email string) (domain.UserWithPassword, error) {
			return domain.UserWithPassword{User: domain.User{ID: "user-1", Email: email, Providers: []string{"google"}}}, nil
		},
	}
	svc := &AuthService{Users: users, Tokens: &stubTokens{}}

	_, _, err := svc.Login(context.Background(), "jane@x.com", "Passw0rd!")
	if !errors.Is(err, domain.ErrInvalidPassword) {
		t.Fatalf("expected invalid password, got %v", err)
	}
}

func TestAuthServiceLoginStoreFailure(t *testing.T) {
	users := &stubUsersStore{
		t: t,
		getUserByEmailFunc: func(context.Context, string) (domain.UserWithPassword, error) {
			return domain.UserWithPassword{}, errors.New("connection refused")
		},
	}
	svc := &AuthService{Users: users, Tokens: &stubTokens{}}

	_, _, err := svc.Login(context.Background(), "jane@x.com", "Passw0rd!")
	if !errors.Is(err, domain.ErrDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestAuthServiceLoginWithGoogleExistingAccount(t *testing.T) {
	users := &stubUsersStore{
		t: t,
		getUserByExternalFunc: func(_ context.Context, provider, providerID string) (domain.UserWithPassword, error) {
			if provider != "google" || providerID != "sub-123" {
				t.Fatalf("unexpected provider lookup: %s %s", provider, providerID)
			}
			return domain.UserWithPassword{User: domain.User{ID: "user-1", Email: "player@example.com"}}, nil
		},
	}
	svc := &AuthService{
		Users:          users,
		Tokens:         &stubTokens{},
		GoogleClientID: "google-client",
		VerifyGoogle: func(_ context.Context, token, aud string) (*domain.ExternalProfile, error) {
			if token != "token-123" || aud != "google-client" {
				t.Fatalf("unexpected token/aud")
			}
			return &domain.ExternalProfile{Provider: "google", ProviderID: "sub-123", Email: "player@example.com"}, nil
		},
	}

	user, token, err := svc.LoginWithGoogle(context.Background(), "token-123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID != "user-1" || token != "token-1" {
		t.Fatalf("unexpected login result: %+v %s", user, token)
	}
}

func TestAuthServiceLoginWithGoogleCreatesUser(t *testing.T) {
	users := &stubUsersStore{
		t: t,
		getUserByExternalFunc: func(context.Context, string, string) (domain.UserWithPassword, error) {
			return domain.UserWithPassword{}, domain.ErrNotFound
		},
		getUserByEmailFunc: func(_ context.Context, email string) (domain.UserWithPassword, error) {
			if email != "player@example.com" {
				t.Fatalf("unexpected email lookup: %s", email)
			}
			return domain.UserWithPassword{}, domain.ErrNotFound
		},
		createUserWithExternalFunc: func(_ context.Context, p domain.ExternalProfile) (domain.UserWithPassword, error) {
			if p.Provider != "google" || p.ProviderID != "sub-456" || p.Email != "player@example.com" {
				t.Fatalf("unexpected create args: %+v", p)
			}
			if p.Firstname != "player" {
				t.Fatalf("expected firstname from email local part, got %q", p.Firstname)
			}
			return domain.UserWithPassword{User: domain.User{
				ID: "user-2", Email: p.Email, IsVerified: true, Providers: []string{p.Provider},
			}}, nil
		},
	}
	svc := &AuthService{
		Users:          users,
		Tokens:         &stubTokens{},
		GoogleClientID: "google-client",
		VerifyGoogle: func(context.Context, string, string) (*domain.ExternalProfile, error) {
			return &domain.ExternalProfile{Provider: "google", ProviderID: "sub-456", Email: "player@example.com"}, nil
		},
	}

	user, token, err := svc.LoginWithGoogle(context.Background(), "token-456")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID != "user-2" || !user.IsVerified || token == "" {
		t.Fatalf("unexpected login result: %+v %s", user, token)
	}
}

func TestAuthServiceLoginWithGoogleInvalidToken(t *testing.T) {
	svc := &AuthService{
		Users:          &stubUsersStore{t: t},
		Tokens:         &stubTokens{},
		GoogleClientID: "google-client",
		VerifyGoogle: func(context.Context, string, string) (*domain.ExternalProfile, error) {
			return nil, errors.New("bad token")
		},
	}

	_, _, err := svc.LoginWithGoogle(context.Background(), "bad-token")
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestAuthServiceLoginWithAppleLinksExistingEmail(t *testing.T) {
	var linked domain.ExternalProfile
	users := &stubUsersStore{
		t: t,
		getUserByExternalFunc: func(context.Context, string, string) (domain.UserWithPassword, error) {
			return domain.UserWithPassword{}, domain.ErrNotFound
		},
		getUserByEmailFunc: func(_ context.Context, email string) (domain.UserWithPassword, error) {
			return domain.UserWithPassword{User: domain.User{ID: "user-3", Email: email}}, nil
		},
		linkExternalAccountFunc: func(_ context.Context, userID string, p domain.ExternalProfile) (domain.UserWithPassword, error) {
			if userID != "user-3" {
				t.Fatalf("unexpected user id: %s", userID)
			}
			linked = p
			return domain.UserWithPassword{User: domain.User{
				ID: userID, Email: p.Email, IsVerified: true, Providers: []string{"apple"},
			}}, nil
		},
	}
	svc := &AuthService{
		Users:          users,
		Tokens:         &stubTokens{},
		AppleServiceID: "apple-service",
		VerifyApple: func(_ context.Context, _, aud string) (*domain.ExternalProfile, error) {
			if aud != "apple-service" {
				t.Fatalf("unexpected audience: %s", aud)
			}
			return &domain.ExternalProfile{Provider: "apple", ProviderID: "apple-sub", Email: "player@example.com"}, nil
		},
	}

	u, _, err := svc.LoginWithApple(context.Background(), "token")
	if err != nil {
		t.Fatalf("LoginWithApple: %v", err)
	}
	if linked.ProviderID != "apple-sub" || !u.IsVerified {
		t.Fatalf("unexpected link: %+v %+v", linked, u)
	}
}

func TestAuthServiceLoginWithAppleLinkConflict(t *testing.T) {
	users := &stubUsersStore{
		t: t,
		getUserByExternalFunc: func(context.Context, string, string) (domain.UserWithPassword, error) {
			return domain.UserWithPassword{}, domain.ErrNotFound
		},
		getUserByEmailFunc: func(_ context.Context, email string) (domain.UserWithPassword, error) {
			return domain.UserWithPassword{User: domain.User{ID: "user-3", Email: email}}, nil
		},
		linkExternalAccountFunc: func(context.Context, string, domain.ExternalProfile) (domain.UserWithPassword, error) {
			return domain.UserWithPassword{}, domain.ErrExternalAccountExists
		},
	}
	svc := &AuthService{
		Users:          users,
		Tokens:         &stubTokens{},
		AppleServiceID: "apple-service",
		VerifyApple: func(context.Context, string, string) (*domain.ExternalProfile, error) {
			return &domain.ExternalProfile{Provider: "apple", ProviderID: "apple-sub", Email: "player@example.com"}, nil
		},
	}

	_, _, err := svc.LoginWithApple(context.Background(), "token")
	if !errors.Is(err, domain.ErrExternalAccountExists) {
		t.Fatalf("expected external account exists, got %v", err)
	}
}

func TestAuthServiceLoginWithGitHubNotConfigured(t *testing.T) {
	svc := &AuthService{Users: &stubUsersStore{t: t}, Tokens: &stubTokens{}}

	_, _, err := svc.LoginWithGitHub(context.Background(), "code")
	if !errors.Is(err, domain.ErrDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

type stubExchanger struct {
	profile *domain.ExternalProfile
	err     error
}

func (s stubExchanger) Exchange(context.Context, string) (*domain.ExternalProfile, error) {
	return s.profile, s.err
}

func TestAuthServiceLoginWithGitHubCreateRace(t *testing.T) {
	lookups := 0
	users := &stubUsersStore{
		t: t,
		getUserByExternalFunc: func(context.Context, string, string) (domain.UserWithPassword, error) {
			lookups++
			if lookups == 1 {
				return domain.UserWithPassword{}, domain.ErrNotFound
			}
			return domain.UserWithPassword{User: domain.User{ID: "user-7"}}, nil
		},
		getUserByEmailFunc: func(context.Context, string) (domain.UserWithPassword, error) {
			return domain.UserWithPassword{}, domain.ErrNotFound
		},
		createUserWithExternalFunc: func(context.Context, domain.ExternalProfile) (domain.UserWithPassword, error) {
			return domain.UserWithPassword{}, domain.ErrExternalAccountExists
		},
	}
	svc := &AuthService{
		Users:  users,
		Tokens: &stubTokens{},
		GitHub: stubExchanger{profile: &domain.ExternalProfile{
			Provider: "github", ProviderID: "42", Email: "dev@x.com", Firstname: "Dev",
		}},
	}

	u, _, err := svc.LoginWithGitHub(context.Background(), "code")
	if err != nil {
		t.Fatalf("LoginWithGitHub: %v", err)
	}
	if u.ID != "user-7" || lookups != 2 {
		t.Fatalf("expected the concurrent account to win: %+v lookups=%d", u, lookups)
	}
}

func TestAuthServiceRefreshToken(t *testing.T) {
	user := &domain.UserWithPassword{User: domain.User{ID: "user-1", IsVerified: true}}
	tokens := &stubTokens{}
	svc := &AuthService{Users: memUsers(t, user), Tokens: tokens}

	u, token, err := svc.RefreshToken(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("RefreshToken: %v", err)
	}
	if !u.IsVerified || token != "token-1" || !tokens.issued[0].IsVerified {
		t.Fatalf("token must carry the stored verified flag")
	}

	if _, _, err := svc.RefreshToken(context.Background(), "user-2"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}
