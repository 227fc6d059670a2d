package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/HendrickPhan/go-verify-apple-id-token/validator"
	"google.golang.org/api/idtoken"

	"blogspark/internal/domain"
)

func VerifyGoogleIDToken(ctx context.Context, tokenString, expectedAud string) (*domain.ExternalProfile, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, errors.New("missing id token")
	}
	if strings.TrimSpace(expectedAud) == "" {
		return nil, errors.New("missing google client id")
	}

	payload, err := idtoken.Validate(ctx, tokenString, expectedAud)
	if err != nil {
		return nil, err
	}
	if payload.Issuer != "accounts.google.com" && payload.Issuer != "https://accounts.google.com" {
		return nil, fmt.Errorf("unexpected issuer: %s", payload.Issuer)
	}

	return &domain.ExternalProfile{
		Provider:   domain.ProviderGoogle,
		ProviderID: payload.Subject,
		Email:      normalizeEmail(stringClaim(payload.Claims, "email")),
		Firstname:  stringClaim(payload.Claims, "given_name"),
		Lastname:   stringClaim(payload.Claims, "family_name"),
	}, nil
}

func VerifyAppleIDToken(ctx context.Context, tokenString, expectedAud string) (*domain.ExternalProfile, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, errors.New("missing id token")
	}
	if strings.TrimSpace(expectedAud) == "" {
		return nil, errors.New("missing apple service id")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client := validator.NewClient()
	idToken, err := client.VerifyIdToken(expectedAud, tokenString)
	if err != nil {
		return nil, err
	}
	if idToken.Iss != "https://appleid.apple.com" {
		return nil, fmt.Errorf("unexpected issuer: %s", idToken.Iss)
	}

	return &domain.ExternalProfile{
		Provider:   domain.ProviderApple,
		ProviderID: idToken.Sub,
		Email:      normalizeEmail(idToken.Email),
	}, nil
}

func stringClaim(claims map[string]any, key string) string {
	raw, ok := claims[key]
	if !ok {
		return ""
	}
	v, _ := raw.(string)
	return strings.TrimSpace(v)
}

func normalizeEmail(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}
