package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"blogspark/internal/domain"
)

// VerificationStore keeps short-lived email verification and password reset
// records. Lookups ignore rows whose expires_at has passed; the sweeper
// removes them physically.
type VerificationStore struct {
	db  Querier
	Now func() time.Time
}

func NewVerificationStore(db Querier) *VerificationStore {
	return &VerificationStore{db: db, Now: time.Now}
}

func (s *VerificationStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Put inserts rec as-is. Earlier records for the same user and purpose are
// not touched.
func (s *VerificationStore) Put(ctx context.Context, rec domain.VerificationRecord) (domain.VerificationRecord, error) {
	if !rec.Purpose.Valid() {
		return domain.VerificationRecord{}, domain.NewValidationError(map[string]string{"purpose": "unknown purpose"})
	}
	if !validID(rec.UserID) {
		return domain.VerificationRecord{}, domain.NewValidationError(map[string]string{"userId": "invalid user id"})
	}

	const q = `
		INSERT INTO verifications (user_id, purpose, token, otp, correlation_id, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id::text, created_at
	`
	err := s.db.QueryRow(ctx, q,
		rec.UserID,
		string(rec.Purpose),
		rec.Token,
		rec.OTP,
		rec.CorrelationID,
		rec.ExpiresAt,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return domain.VerificationRecord{}, fmt.Errorf("put verification: %w", err)
	}
	return rec, nil
}

// FindActive returns the newest unexpired record matching f.
func (s *VerificationStore) FindActive(ctx context.Context, f domain.VerificationFilter) (domain.VerificationRecord, error) {
	where, args, err := filterClause(f)
	if errors.Is(err, errMatchesNothing) {
		return domain.VerificationRecord{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.VerificationRecord{}, err
	}
	args = append(args, s.now())
	q := `
		SELECT id::text, user_id::text, purpose, token, otp, correlation_id, expires_at, created_at
		FROM verifications
		WHERE ` + where + ` AND expires_at > $` + strconv.Itoa(len(args)) + `
		ORDER BY created_at DESC
		LIMIT 1`

	var (
		rec     domain.VerificationRecord
		purpose string
	)
	err = s.db.QueryRow(ctx, q, args...).Scan(
		&rec.ID,
		&rec.UserID,
		&purpose,
		&rec.Token,
		&rec.OTP,
		&rec.CorrelationID,
		&rec.ExpiresAt,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.VerificationRecord{}, domain.ErrNotFound
		}
		return domain.VerificationRecord{}, fmt.Errorf("find verification: %w", err)
	}
	rec.Purpose = domain.Purpose(purpose)
	return rec, nil
}

// DeleteMatching removes every record matching f, expired or not, and
// reports how many went away.
func (s *VerificationStore) DeleteMatching(ctx context.Context, f domain.VerificationFilter) (int64, error) {
	where, args, err := filterClause(f)
	if errors.Is(err, errMatchesNothing) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	tag, err := s.db.Exec(ctx, `DELETE FROM verifications WHERE `+where, args...)
	if err != nil {
		return 0, fmt.Errorf("delete verifications: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *VerificationStore) DeleteExpired(ctx context.Context) (int64, error) {
	const q = `DELETE FROM verifications WHERE expires_at <= $1`
	tag, err := s.db.Exec(ctx, q, s.now())
	if err != nil {
		return 0, fmt.Errorf("delete expired verifications: %w", err)
	}
	return tag.RowsAffected(), nil
}

// errMatchesNothing marks a filter that cannot select any row, such as one
// keyed by a malformed user id.
var errMatchesNothing = errors.New("filter matches nothing")

func filterClause(f domain.VerificationFilter) (string, []any, error) {
	if !f.Purpose.Valid() {
		return "", nil, domain.NewValidationError(map[string]string{"purpose": "unknown purpose"})
	}
	if f.UserID == "" && f.Token == "" && f.OTP == "" {
		return "", nil, domain.NewValidationError(map[string]string{"filter": "at least one of user, token or otp is required"})
	}

	conds := []string{"purpose = $1"}
	args := []any{string(f.Purpose)}
	add := func(col, v string) {
		args = append(args, v)
		conds = append(conds, col+" = $"+strconv.Itoa(len(args)))
	}
	if f.UserID != "" {
		if !validID(f.UserID) {
			return "", nil, errMatchesNothing
		}
		add("user_id", f.UserID)
	}
	if f.Token != "" {
		add("token", f.Token)
	}
	if f.OTP != "" {
		add("otp", f.OTP)
	}
	return strings.Join(conds, " AND "), args, nil
}
