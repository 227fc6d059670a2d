package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"blogspark/internal/domain"
)

type stubUsersStore struct {
	t *testing.T

	createUserFunc             func(context.Context, domain.NewUser) (domain.UserWithPassword, error)
	getUserByIDFunc            func(context.Context, string) (domain.UserWithPassword, error)
	getUserByEmailFunc         func(context.Context, string) (domain.UserWithPassword, error)
	getUserByContactFunc       func(context.Context, string) (domain.UserWithPassword, error)
	updateUserFunc             func(context.Context, string, domain.UserUpdate) (domain.UserWithPassword, error)
	getUserByExternalFunc      func(context.Context, string, string) (domain.UserWithPassword, error)
	createUserWithExternalFunc func(context.Context, domain.ExternalProfile) (domain.UserWithPassword, error)
	linkExternalAccountFunc    func(context.Context, string, domain.ExternalProfile) (domain.UserWithPassword, error)
}

func (s *stubUsersStore) CreateUser(ctx context.Context, nu domain.NewUser) (domain.UserWithPassword, error) {
	if s.createUserFunc != nil {
		return s.createUserFunc(ctx, nu)
	}
	s.t.Fatalf("CreateUser called unexpectedly")
	return domain.UserWithPassword{}, errors.New("unexpected call")
}

func (s *stubUsersStore) GetUserByID(ctx context.Context, id string) (domain.UserWithPassword, error) {
	if s.getUserByIDFunc != nil {
		return s.getUserByIDFunc(ctx, id)
	}
	s.t.Fatalf("GetUserByID called unexpectedly")
	return domain.UserWithPassword{}, errors.New("unexpected call")
}

func (s *stubUsersStore) GetUserByEmail(ctx context.Context, email string) (domain.UserWithPassword, error) {
	if s.getUserByEmailFunc != nil {
		return s.getUserByEmailFunc(ctx, email)
	}
	s.t.Fatalf("GetUserByEmail called unexpectedly")
	return domain.UserWithPassword{}, errors.New("unexpected call")
}

func (s *stubUsersStore) GetUserByContact(ctx context.Context, contact string) (domain.UserWithPassword, error) {
	if s.getUserByContactFunc != nil {
		return s.getUserByContactFunc(ctx, contact)
	}
	s.t.Fatalf("GetUserByContact called unexpectedly")
	return domain.UserWithPassword{}, errors.New("unexpected call")
}

func (s *stubUsersStore) UpdateUser(ctx context.Context, id string, upd domain.UserUpdate) (domain.UserWithPassword, error) {
	if s.updateUserFunc != nil {
		return s.updateUserFunc(ctx, id, upd)
	}
	s.t.Fatalf("UpdateUser called unexpectedly")
	return domain.UserWithPassword{}, errors.New("unexpected call")
}

func (s *stubUsersStore) GetUserByExternalAccount(ctx context.Context, provider, providerID string) (domain.UserWithPassword, error) {
	if s.getUserByExternalFunc != nil {
		return s.getUserByExternalFunc(ctx, provider, providerID)
	}
	s.t.Fatalf("GetUserByExternalAccount called unexpectedly")
	return domain.UserWithPassword{}, errors.New("unexpected call")
}

func (s *stubUsersStore) CreateUserWithExternalAccount(ctx context.Context, p domain.ExternalProfile) (domain.UserWithPassword, error) {
	if s.createUserWithExternalFunc != nil {
		return s.createUserWithExternalFunc(ctx, p)
	}
	s.t.Fatalf("CreateUserWithExternalAccount called unexpectedly")
	return domain.UserWithPassword{}, errors.New("unexpected call")
}

func (s *stubUsersStore) LinkExternalAccount(ctx context.Context, userID string, p domain.ExternalProfile) (domain.UserWithPassword, error) {
	if s.linkExternalAccountFunc != nil {
		return s.linkExternalAccountFunc(ctx, userID, p)
	}
	s.t.Fatalf("LinkExternalAccount called unexpectedly")
	return domain.UserWithPassword{}, errors.New("unexpected call")
}

// memUsers backs stubUsersStore with a single mutable user.
func memUsers(t *testing.T, u *domain.UserWithPassword) *stubUsersStore {
	return &stubUsersStore{
		t: t,
		getUserByIDFunc: func(_ context.Context, id string) (domain.UserWithPassword, error) {
			if id != u.ID {
				return domain.UserWithPassword{}, domain.ErrNotFound
			}
			return *u, nil
		},
		getUserByEmailFunc: func(_ context.Context, email string) (domain.UserWithPassword, error) {
			if email != u.Email {
				return domain.UserWithPassword{}, domain.ErrNotFound
			}
			return *u, nil
		},
		updateUserFunc: func(_ context.Context, id string, upd domain.UserUpdate) (domain.UserWithPassword, error) {
			if id != u.ID {
				return domain.UserWithPassword{}, domain.ErrNotFound
			}
			applyUpdate(u, upd)
			return *u, nil
		},
	}
}

func applyUpdate(u *domain.UserWithPassword, upd domain.UserUpdate) {
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.Firstname != nil {
		u.Firstname = *upd.Firstname
	}
	if upd.Lastname != nil {
		u.Lastname = *upd.Lastname
	}
	if upd.Gender != nil {
		u.Gender = *upd.Gender
	}
	if upd.Contact != nil {
		u.Contact = *upd.Contact
	}
	if upd.Bio != nil {
		u.Bio = *upd.Bio
	}
	if upd.ProfileImg != nil {
		u.ProfileImg = *upd.ProfileImg
	}
	if upd.CoverImg != nil {
		u.CoverImg = *upd.CoverImg
	}
	if upd.PasswordHash != nil {
		u.PasswordHash = *upd.PasswordHash
	}
	if upd.IsVerified != nil {
		u.IsVerified = *upd.IsVerified
	}
}

// memRecords is an in-memory VerificationStore with the same lookup rules as
// the Postgres one: expired rows are invisible and the newest match wins.
type memRecords struct {
	mu      sync.Mutex
	now     func() time.Time
	records []domain.VerificationRecord
	seq     int

	putErr    error
	deleteErr error
}

func (m *memRecords) Put(_ context.Context, rec domain.VerificationRecord) (domain.VerificationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return domain.VerificationRecord{}, m.putErr
	}
	m.seq++
	rec.ID = fmt.Sprintf("rec-%d", m.seq)
	rec.CreatedAt = m.now()
	m.records = append(m.records, rec)
	return rec, nil
}

func (m *memRecords) FindActive(_ context.Context, f domain.VerificationFilter) (domain.VerificationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for i := len(m.records) - 1; i >= 0; i-- {
		r := m.records[i]
		if matches(r, f) && r.ExpiresAt.After(now) {
			return r, nil
		}
	}
	return domain.VerificationRecord{}, domain.ErrNotFound
}

func (m *memRecords) DeleteMatching(_ context.Context, f domain.VerificationFilter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	kept := m.records[:0]
	var n int64
	for _, r := range m.records {
		if matches(r, f) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	m.records = kept
	return n, nil
}

func (m *memRecords) live(userID string, p domain.Purpose) []domain.VerificationRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.VerificationRecord
	for _, r := range m.records {
		if r.UserID == userID && r.Purpose == p {
			out = append(out, r)
		}
	}
	return out
}

func matches(r domain.VerificationRecord, f domain.VerificationFilter) bool {
	if r.Purpose != f.Purpose {
		return false
	}
	if f.UserID != "" && r.UserID != f.UserID {
		return false
	}
	if f.Token != "" && r.Token != f.Token {
		return false
	}
	if f.OTP != "" && r.OTP != f.OTP {
		return false
	}
	return true
}

type sentMail struct {
	to, otp, link string
}

type stubMailer struct {
	verifications []sentMail
	resets        []sentMail
	err           error
}

func (m *stubMailer) SendVerification(_ context.Context, to, otp, link string) error {
	if m.err != nil {
		return m.err
	}
	m.verifications = append(m.verifications, sentMail{to: to, otp: otp, link: link})
	return nil
}

func (m *stubMailer) SendPasswordReset(_ context.Context, to, link string) error {
	if m.err != nil {
		return m.err
	}
	m.resets = append(m.resets, sentMail{to: to, link: link})
	return nil
}

type notified struct {
	id    string
	event any
}

type stubNotifier struct {
	events []notified
}

func (n *stubNotifier) Notify(correlationID string, event any) {
	n.events = append(n.events, notified{id: correlationID, event: event})
}

type stubTokens struct {
	issued []domain.UserWithPassword
	err    error
}

func (s *stubTokens) Issue(u domain.UserWithPassword) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.issued = append(s.issued, u)
	return fmt.Sprintf("token-%d", len(s.issued)), nil
}

type stubImages struct {
	t *testing.T

	uploadFunc func(context.Context, string) (string, error)
	deleted    []string
	deleteErr  error
}

func (s *stubImages) Upload(ctx context.Context, filePath string) (string, error) {
	if s.uploadFunc != nil {
		return s.uploadFunc(ctx, filePath)
	}
	s.t.Fatalf("Upload called unexpectedly")
	return "", errors.New("unexpected call")
}

func (s *stubImages) Delete(_ context.Context, url string) error {
	s.deleted = append(s.deleted, url)
	return s.deleteErr
}

// sequence returns a generator yielding vals in order.
func sequence(vals ...string) func() (string, error) {
	i := 0
	return func() (string, error) {
		if i >= len(vals) {
			return "", errors.New("sequence exhausted")
		}
		v := vals[i]
		i++
		return v, nil
	}
}
