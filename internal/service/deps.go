package service

import (
	"context"
	"errors"

	"blogspark/internal/domain"
)

type UsersStore interface {
	CreateUser(ctx context.Context, nu domain.NewUser) (domain.UserWithPassword, error)
	GetUserByID(ctx context.Context, id string) (domain.UserWithPassword, error)
	GetUserByEmail(ctx context.Context, email string) (domain.UserWithPassword, error)
	GetUserByContact(ctx context.Context, contact string) (domain.UserWithPassword, error)
	UpdateUser(ctx context.Context, id string, upd domain.UserUpdate) (domain.UserWithPassword, error)
	GetUserByExternalAccount(ctx context.Context, provider, providerID string) (domain.UserWithPassword, error)
	CreateUserWithExternalAccount(ctx context.Context, p domain.ExternalProfile) (domain.UserWithPassword, error)
	LinkExternalAccount(ctx context.Context, userID string, p domain.ExternalProfile) (domain.UserWithPassword, error)
}

type VerificationStore interface {
	Put(ctx context.Context, rec domain.VerificationRecord) (domain.VerificationRecord, error)
	FindActive(ctx context.Context, f domain.VerificationFilter) (domain.VerificationRecord, error)
	DeleteMatching(ctx context.Context, f domain.VerificationFilter) (int64, error)
}

type Mailer interface {
	SendVerification(ctx context.Context, to, otp, link string) error
	SendPasswordReset(ctx context.Context, to, link string) error
}

type ImageStore interface {
	Upload(ctx context.Context, filePath string) (string, error)
	Delete(ctx context.Context, url string) error
}

// Notifier delivers an event to a live client connection. Delivery is
// best-effort and never reports failure.
type Notifier interface {
	Notify(correlationID string, event any)
}

type TokenIssuer interface {
	Issue(u domain.UserWithPassword) (string, error)
}

// storeErr passes domain outcomes through and marks anything else as a
// dependency failure.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{
		domain.ErrNotFound,
		domain.ErrEmailTaken,
		domain.ErrContactTaken,
		domain.ErrExternalAccountExists,
		domain.ErrValidation,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	return domain.Dependency(op, err)
}
