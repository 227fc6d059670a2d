package domain

import "time"

type Purpose string

const (
	PurposeEmailVerification Purpose = "EMAIL_VERIFICATION"
	PurposeResetPassword     Purpose = "RESET_PASSWORD"
)

func (p Purpose) Valid() bool {
	return p == PurposeEmailVerification || p == PurposeResetPassword
}

// VerificationState is the lifecycle of a record for one (user, purpose).
// None covers both "never issued" and "gone": consumed, superseded and
// expired records all read back as None.
type VerificationState int

const (
	VerificationNone VerificationState = iota
	VerificationPending
	VerificationExpired
)

func (s VerificationState) String() string {
	switch s {
	case VerificationPending:
		return "pending"
	case VerificationExpired:
		return "expired"
	default:
		return "none"
	}
}

type VerificationRecord struct {
	ID            string
	UserID        string
	Purpose       Purpose
	Token         string
	OTP           string
	CorrelationID string
	ExpiresAt     time.Time
	CreatedAt     time.Time
}

func (r VerificationRecord) State(now time.Time) VerificationState {
	if r.UserID == "" {
		return VerificationNone
	}
	if !r.ExpiresAt.After(now) {
		return VerificationExpired
	}
	return VerificationPending
}

// VerificationFilter selects records by purpose plus any non-empty field.
type VerificationFilter struct {
	Purpose Purpose
	UserID  string
	Token   string
	OTP     string
}

// RealtimeEvent is pushed to a live client connection by correlation id.
type RealtimeEvent struct {
	Type   string `json:"type"`
	Status bool   `json:"status"`
}

const EventEmailVerificationStatus = "emailVerificationStatus"
