package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"blogspark/internal/domain"
)

type UsersStore struct {
	db Querier
}

func NewUsersStore(db Querier) *UsersStore {
	return &UsersStore{db: db}
}

func (s *UsersStore) CreateUser(ctx context.Context, nu domain.NewUser) (domain.UserWithPassword, error) {
	q := `
		INSERT INTO users (email, firstname, lastname, gender, contact, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + userColumns

	u, err := scanUser(s.db.QueryRow(ctx, q,
		nu.Email,
		nu.Firstname,
		nu.Lastname,
		nullIfEmpty(string(nu.Gender)),
		nullIfEmpty(nu.Contact),
		nullIfEmpty(nu.PasswordHash),
	), "create user")
	if err != nil {
		return domain.UserWithPassword{}, mapUserWriteError(err)
	}
	return u, nil
}

func (s *UsersStore) GetUserByID(ctx context.Context, id string) (domain.UserWithPassword, error) {
	if !validID(id) {
		return domain.UserWithPassword{}, domain.ErrNotFound
	}
	q := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(s.db.QueryRow(ctx, q, id), "get user by id")
}

func (s *UsersStore) GetUserByEmail(ctx context.Context, email string) (domain.UserWithPassword, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(s.db.QueryRow(ctx, q, email), "get user by email")
}

func (s *UsersStore) GetUserByContact(ctx context.Context, contact string) (domain.UserWithPassword, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE contact = $1`
	return scanUser(s.db.QueryRow(ctx, q, contact), "get user by contact")
}

// UpdateUser applies the non-nil fields of upd and returns the stored row.
func (s *UsersStore) UpdateUser(ctx context.Context, id string, upd domain.UserUpdate) (domain.UserWithPassword, error) {
	if !validID(id) {
		return domain.UserWithPassword{}, domain.ErrNotFound
	}
	if upd.Empty() {
		return s.GetUserByID(ctx, id)
	}

	var (
		sets []string
		args = []any{id}
	)
	set := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, col+" = $"+strconv.Itoa(len(args)))
	}
	if upd.Email != nil {
		set("email", *upd.Email)
	}
	if upd.Firstname != nil {
		set("firstname", *upd.Firstname)
	}
	if upd.Lastname != nil {
		set("lastname", *upd.Lastname)
	}
	if upd.Gender != nil {
		set("gender", nullIfEmpty(string(*upd.Gender)))
	}
	if upd.Contact != nil {
		set("contact", nullIfEmpty(*upd.Contact))
	}
	if upd.Bio != nil {
		set("bio", nullIfEmpty(*upd.Bio))
	}
	if upd.ProfileImg != nil {
		set("profile_img", nullIfEmpty(*upd.ProfileImg))
	}
	if upd.CoverImg != nil {
		set("cover_img", nullIfEmpty(*upd.CoverImg))
	}
	if upd.PasswordHash != nil {
		set("password_hash", nullIfEmpty(*upd.PasswordHash))
	}
	if upd.IsVerified != nil {
		set("is_verified", *upd.IsVerified)
	}

	q := `UPDATE users SET ` + strings.Join(sets, ", ") + `, updated_at = now() WHERE id = $1 RETURNING ` + userColumns
	u, err := scanUser(s.db.QueryRow(ctx, q, args...), "update user")
	if err != nil {
		return domain.UserWithPassword{}, mapUserWriteError(err)
	}
	return u, nil
}

func (s *UsersStore) GetUserByExternalAccount(ctx context.Context, provider, providerID string) (domain.UserWithPassword, error) {
	q := `SELECT ` + userColumns + `
		FROM users
		WHERE id = (
			SELECT user_id FROM external_accounts WHERE provider = $1 AND provider_id = $2
		)`
	return scanUser(s.db.QueryRow(ctx, q, provider, providerID), "get user by external account")
}

// CreateUserWithExternalAccount creates a verified, password-less user
// owned by the given provider identity.
func (s *UsersStore) CreateUserWithExternalAccount(ctx context.Context, p domain.ExternalProfile) (domain.UserWithPassword, error) {
	var u domain.UserWithPassword
	err := withTx(ctx, s.db, func(tx pgx.Tx) error {
		q := `
			INSERT INTO users (email, firstname, lastname, is_verified, providers)
			VALUES ($1, $2, $3, true, ARRAY[$4::text])
			RETURNING ` + userColumns
		var err error
		u, err = scanUser(tx.QueryRow(ctx, q, p.Email, p.Firstname, p.Lastname, p.Provider), "create oauth user")
		if err != nil {
			return mapUserWriteError(err)
		}
		return insertExternalAccount(ctx, tx, u.ID, p)
	})
	if err != nil {
		return domain.UserWithPassword{}, err
	}
	return u, nil
}

// LinkExternalAccount attaches a provider identity to an existing user. The
// provider vouches for the email, so the user is marked verified.
func (s *UsersStore) LinkExternalAccount(ctx context.Context, userID string, p domain.ExternalProfile) (domain.UserWithPassword, error) {
	if !validID(userID) {
		return domain.UserWithPassword{}, domain.ErrNotFound
	}
	var u domain.UserWithPassword
	err := withTx(ctx, s.db, func(tx pgx.Tx) error {
		if err := insertExternalAccount(ctx, tx, userID, p); err != nil {
			return err
		}
		q := `
			UPDATE users
			SET is_verified = true,
				providers = CASE WHEN $2 = ANY(providers) THEN providers ELSE array_append(providers, $2) END,
				updated_at = now()
			WHERE id = $1
			RETURNING ` + userColumns
		var err error
		u, err = scanUser(tx.QueryRow(ctx, q, userID, p.Provider), "link external account")
		return err
	})
	if err != nil {
		return domain.UserWithPassword{}, err
	}
	return u, nil
}

func insertExternalAccount(ctx context.Context, tx pgx.Tx, userID string, p domain.ExternalProfile) error {
	const q = `
		INSERT INTO external_accounts (user_id, provider, provider_id, email)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := tx.Exec(ctx, q, userID, p.Provider, p.ProviderID, p.Email); err != nil {
		return mapUserWriteError(err)
	}
	return nil
}

func mapUserWriteError(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if constraint, ok := uniqueViolation(err); ok {
		switch constraint {
		case "users_email_uq":
			return domain.ErrEmailTaken
		case "users_contact_uq":
			return domain.ErrContactTaken
		case "external_accounts_provider_uq":
			return domain.ErrExternalAccountExists
		default:
			return fmt.Errorf("unique violation (%s): %w", constraint, err)
		}
	}
	return err
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
