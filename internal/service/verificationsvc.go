package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"blogspark/internal/auth"
	"blogspark/internal/domain"
	"blogspark/internal/ratelimit"
)

const DefaultVerificationTTL = 6 * time.Minute

// VerificationService runs the email verification and password reset
// challenges. Each (user, purpose) has at most one live record; issuing a
// new one deletes the previous one first.
type VerificationService struct {
	Users    UsersStore
	Records  VerificationStore
	Mail     Mailer
	Notifier Notifier
	Log      *slog.Logger

	// BaseURL prefixes the links sent by email.
	BaseURL string
	TTL     time.Duration

	// ResendLimiter throttles issuance per user and purpose; OTPLimiter
	// counts wrong codes per user. Nil disables either.
	ResendLimiter *ratelimit.Window
	OTPLimiter    *ratelimit.Window

	Now          func() time.Time
	NewLinkToken func() (string, error)
	NewOTP       func() (string, error)
}

func (s *VerificationService) log() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}

func (s *VerificationService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *VerificationService) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return DefaultVerificationTTL
}

func (s *VerificationService) linkToken() (string, error) {
	if s.NewLinkToken != nil {
		return s.NewLinkToken()
	}
	return auth.NewLinkToken(auth.LinkTokenLength)
}

func (s *VerificationService) otp() (string, error) {
	if s.NewOTP != nil {
		return s.NewOTP()
	}
	return auth.NewOTP()
}

func (s *VerificationService) link(path, token string) string {
	return strings.TrimRight(s.BaseURL, "/") + path + token
}

// IssueEmailVerification mails a fresh OTP and link to the user's current
// address. correlationID names the live connection to notify on success.
func (s *VerificationService) IssueEmailVerification(ctx context.Context, userID, correlationID string) error {
	u, err := s.Users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrUnauthorized
		}
		return storeErr("get user by id", err)
	}
	if u.IsVerified {
		return domain.ErrAlreadyVerified
	}

	otp, err := s.otp()
	if err != nil {
		return domain.Dependency("generate otp", err)
	}
	token, err := s.linkToken()
	if err != nil {
		return domain.Dependency("generate link token", err)
	}

	rec := domain.VerificationRecord{
		UserID:        u.ID,
		Purpose:       domain.PurposeEmailVerification,
		Token:         token,
		OTP:           otp,
		CorrelationID: strings.TrimSpace(correlationID),
	}
	send := func(ctx context.Context) error {
		return s.Mail.SendVerification(ctx, u.Email, otp, s.link("/verify/email/", token))
	}
	if err := s.issue(ctx, rec, send); err != nil {
		return err
	}
	// attempts against the previous code do not carry over
	if s.OTPLimiter != nil {
		s.OTPLimiter.Reset(u.ID)
	}
	return nil
}

// IssuePasswordReset mails a reset link to a registered address.
func (s *VerificationService) IssuePasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	f := fieldErrors{}
	checkEmail(f, email)
	if err := f.err(); err != nil {
		return err
	}

	u, err := s.Users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrUserNotRegistered
		}
		return storeErr("get user by email", err)
	}

	token, err := s.linkToken()
	if err != nil {
		return domain.Dependency("generate link token", err)
	}
	rec := domain.VerificationRecord{
		UserID:  u.ID,
		Purpose: domain.PurposeResetPassword,
		Token:   token,
	}
	send := func(ctx context.Context) error {
		return s.Mail.SendPasswordReset(ctx, u.Email, s.link("/verify/reset-password/", token))
	}
	return s.issue(ctx, rec, send)
}

// issue replaces the user's live record for rec.Purpose and dispatches the
// mail. A failed dispatch removes the new record again, so callers see
// either a sent challenge or an error.
func (s *VerificationService) issue(ctx context.Context, rec domain.VerificationRecord, send func(context.Context) error) error {
	now := s.now()
	key := rec.UserID + ":" + string(rec.Purpose)
	if s.ResendLimiter != nil && !s.ResendLimiter.Allow(key, now) {
		return domain.ErrRateLimited
	}
	release := func() {
		if s.ResendLimiter != nil {
			s.ResendLimiter.Reset(key)
		}
	}

	rec.ExpiresAt = now.Add(s.ttl())
	prior := domain.VerificationFilter{Purpose: rec.Purpose, UserID: rec.UserID}
	if _, err := s.Records.DeleteMatching(ctx, prior); err != nil {
		release()
		return storeErr("delete prior verification", err)
	}
	stored, err := s.Records.Put(ctx, rec)
	if err != nil {
		release()
		return storeErr("put verification", err)
	}

	if err := send(ctx); err != nil {
		release()
		own := domain.VerificationFilter{Purpose: rec.Purpose, UserID: rec.UserID, Token: rec.Token}
		if _, derr := s.Records.DeleteMatching(context.WithoutCancel(ctx), own); derr != nil {
			s.log().Error("remove undelivered verification",
				slog.String("user_id", rec.UserID),
				slog.String("error", derr.Error()))
		}
		return domain.Dependency("send "+strings.ToLower(string(rec.Purpose))+" email", err)
	}

	s.log().Info("verification issued",
		slog.String("user_id", rec.UserID),
		slog.String("purpose", string(rec.Purpose)),
		slog.String("record_id", stored.ID),
		slog.Time("expires_at", rec.ExpiresAt))
	return nil
}

// ConfirmEmailLink consumes an emailed verification link. The link is the
// credential; no session is needed.
func (s *VerificationService) ConfirmEmailLink(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.ErrVerificationLinkInvalid
	}
	rec, err := s.consume(ctx, domain.VerificationFilter{Purpose: domain.PurposeEmailVerification, Token: token})
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrVerificationLinkInvalid
	}
	if err != nil {
		return err
	}
	return s.markVerified(ctx, rec, domain.ErrVerificationLinkInvalid)
}

// ConfirmEmailOTP consumes the code mailed to userID. A wrong code and a
// missing record look the same to the caller.
func (s *VerificationService) ConfirmEmailOTP(ctx context.Context, userID, otp string) error {
	otp = strings.TrimSpace(otp)
	f := fieldErrors{}
	checkOTP(f, otp)
	if err := f.err(); err != nil {
		return err
	}

	now := s.now()
	if s.OTPLimiter != nil && s.OTPLimiter.Blocked(userID, now) {
		return domain.ErrRateLimited
	}

	rec, err := s.consume(ctx, domain.VerificationFilter{
		Purpose: domain.PurposeEmailVerification,
		UserID:  userID,
		OTP:     otp,
	})
	if errors.Is(err, domain.ErrNotFound) {
		if s.OTPLimiter != nil {
			s.OTPLimiter.Record(userID, now)
		}
		return domain.ErrInvalidOTP
	}
	if err != nil {
		return err
	}
	if s.OTPLimiter != nil {
		s.OTPLimiter.Reset(userID)
	}
	return s.markVerified(ctx, rec, domain.ErrInvalidOTP)
}

func (s *VerificationService) markVerified(ctx context.Context, rec domain.VerificationRecord, gone error) error {
	verified := true
	if _, err := s.Users.UpdateUser(ctx, rec.UserID, domain.UserUpdate{IsVerified: &verified}); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return gone
		}
		s.restore(ctx, rec)
		return storeErr("mark user verified", err)
	}
	s.log().Info("email verified", slog.String("user_id", rec.UserID))

	if s.Notifier != nil && rec.CorrelationID != "" {
		s.Notifier.Notify(rec.CorrelationID, domain.RealtimeEvent{
			Type:   domain.EventEmailVerificationStatus,
			Status: true,
		})
	}
	return nil
}

// CheckPasswordReset reports whether a reset link is still live.
func (s *VerificationService) CheckPasswordReset(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.ErrResetLinkInvalid
	}
	rec, err := s.Records.FindActive(ctx, domain.VerificationFilter{Purpose: domain.PurposeResetPassword, Token: token})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrResetLinkInvalid
		}
		return storeErr("find reset link", err)
	}
	if rec.State(s.now()) != domain.VerificationPending {
		return domain.ErrResetLinkInvalid
	}
	return nil
}

// ConfirmPasswordReset consumes a reset link and stores the new password.
func (s *VerificationService) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.ErrResetLinkInvalid
	}
	f := fieldErrors{}
	checkPassword(f, "newPassword", newPassword)
	if err := f.err(); err != nil {
		return err
	}

	// hash before consuming so a hashing failure leaves the link usable
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return domain.Dependency("hash password", err)
	}

	rec, err := s.consume(ctx, domain.VerificationFilter{Purpose: domain.PurposeResetPassword, Token: token})
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrResetLinkInvalid
	}
	if err != nil {
		return err
	}

	if _, err := s.Users.UpdateUser(ctx, rec.UserID, domain.UserUpdate{PasswordHash: &hash}); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrResetLinkInvalid
		}
		s.restore(ctx, rec)
		return storeErr("update password", err)
	}
	s.log().Info("password reset", slog.String("user_id", rec.UserID))
	return nil
}

// restore puts back a record claimed by consume when the user write that
// should follow it failed, so the same code or link can be retried.
func (s *VerificationService) restore(ctx context.Context, rec domain.VerificationRecord) {
	if _, err := s.Records.Put(context.WithoutCancel(ctx), rec); err != nil {
		s.log().Error("restore consumed verification",
			slog.String("user_id", rec.UserID),
			slog.String("purpose", string(rec.Purpose)),
			slog.String("error", err.Error()))
	}
}

// consume finds the live record matching f and deletes it. Only the caller
// whose delete removes the row wins, so a record is used at most once.
func (s *VerificationService) consume(ctx context.Context, f domain.VerificationFilter) (domain.VerificationRecord, error) {
	rec, err := s.Records.FindActive(ctx, f)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.VerificationRecord{}, domain.ErrNotFound
		}
		return domain.VerificationRecord{}, storeErr("find verification", err)
	}
	if rec.State(s.now()) != domain.VerificationPending {
		return domain.VerificationRecord{}, domain.ErrNotFound
	}

	n, err := s.Records.DeleteMatching(ctx, domain.VerificationFilter{
		Purpose: rec.Purpose,
		UserID:  rec.UserID,
		Token:   rec.Token,
	})
	if err != nil {
		return domain.VerificationRecord{}, storeErr("consume verification", err)
	}
	if n == 0 {
		return domain.VerificationRecord{}, domain.ErrNotFound
	}
	return rec, nil
}
