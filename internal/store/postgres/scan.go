package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"blogspark/internal/domain"
)

// userColumns is selected by every users query. Nullable columns are
// coalesced so rows scan into plain strings.
const userColumns = `id::text, email, firstname, lastname, COALESCE(gender, ''), COALESCE(contact, ''),
		COALESCE(bio, ''), COALESCE(profile_img, ''), COALESCE(cover_img, ''), is_verified,
		COALESCE(password_hash, ''), providers, created_at, updated_at`

func scanUser(row pgx.Row, op string) (domain.UserWithPassword, error) {
	var (
		u      domain.UserWithPassword
		gender string
	)
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Firstname,
		&u.Lastname,
		&gender,
		&u.Contact,
		&u.Bio,
		&u.ProfileImg,
		&u.CoverImg,
		&u.IsVerified,
		&u.PasswordHash,
		&u.Providers,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.UserWithPassword{}, domain.ErrNotFound
		}
		return domain.UserWithPassword{}, fmt.Errorf("%s: %w", op, err)
	}
	u.Gender = domain.Gender(gender)
	if u.Providers == nil {
		u.Providers = []string{}
	}
	return u, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
