package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"blogspark/internal/auth"
	"blogspark/internal/domain"
)

// ProfileService applies single-field profile mutations. Every successful
// mutation returns the stored user and a freshly minted session token, since
// the token carries the profile fields.
type ProfileService struct {
	Users   UsersStore
	Records VerificationStore
	Tokens  TokenIssuer
	Images  ImageStore
	Log     *slog.Logger
}

func (s *ProfileService) log() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}

func (s *ProfileService) UpdateName(ctx context.Context, userID, firstname, lastname string) (domain.User, string, error) {
	firstname = strings.TrimSpace(firstname)
	lastname = strings.TrimSpace(lastname)
	f := fieldErrors{}
	checkName(f, "firstname", firstname)
	checkName(f, "lastname", lastname)
	if err := f.err(); err != nil {
		return domain.User{}, "", err
	}
	return s.update(ctx, userID, domain.UserUpdate{Firstname: &firstname, Lastname: &lastname})
}

func (s *ProfileService) UpdateBio(ctx context.Context, userID, bio string) (domain.User, string, error) {
	bio = strings.TrimSpace(bio)
	f := fieldErrors{}
	checkBio(f, bio)
	if err := f.err(); err != nil {
		return domain.User{}, "", err
	}
	return s.update(ctx, userID, domain.UserUpdate{Bio: &bio})
}

func (s *ProfileService) UpdateGender(ctx context.Context, userID, gender string) (domain.User, string, error) {
	g := domain.Gender(strings.ToLower(strings.TrimSpace(gender)))
	f := fieldErrors{}
	checkGender(f, g)
	if err := f.err(); err != nil {
		return domain.User{}, "", err
	}
	return s.update(ctx, userID, domain.UserUpdate{Gender: &g})
}

func (s *ProfileService) UpdateContact(ctx context.Context, userID, contact string) (domain.User, string, error) {
	contact = normalizeContact(contact)
	f := fieldErrors{}
	checkContact(f, contact)
	if err := f.err(); err != nil {
		return domain.User{}, "", err
	}

	other, err := s.Users.GetUserByContact(ctx, contact)
	switch {
	case err == nil && other.ID != userID:
		return domain.User{}, "", domain.ErrContactTaken
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		return domain.User{}, "", storeErr("get user by contact", err)
	}
	return s.update(ctx, userID, domain.UserUpdate{Contact: &contact})
}

// UpdateEmail moves the account to a new address. The new address is
// unverified and any code or link sent to the old one stops working.
func (s *ProfileService) UpdateEmail(ctx context.Context, userID, email string) (domain.User, string, error) {
	email = normalizeEmail(email)
	f := fieldErrors{}
	checkEmail(f, email)
	if err := f.err(); err != nil {
		return domain.User{}, "", err
	}

	existing, err := s.Users.GetUserByEmail(ctx, email)
	switch {
	case err == nil && existing.ID == userID:
		// same address: nothing to change, verification state stays
		return s.reissue(existing)
	case err == nil:
		return domain.User{}, "", domain.ErrEmailTaken
	case !errors.Is(err, domain.ErrNotFound):
		return domain.User{}, "", storeErr("get user by email", err)
	}

	// drop pending challenges first so a failure here changes nothing
	pending := domain.VerificationFilter{Purpose: domain.PurposeEmailVerification, UserID: userID}
	if _, err := s.Records.DeleteMatching(ctx, pending); err != nil {
		return domain.User{}, "", storeErr("delete pending verification", err)
	}

	verified := false
	return s.update(ctx, userID, domain.UserUpdate{Email: &email, IsVerified: &verified})
}

func (s *ProfileService) UpdateAvatar(ctx context.Context, userID, filePath string) (domain.User, string, error) {
	return s.replaceImage(ctx, userID, filePath, "profileImg", func(url string) domain.UserUpdate {
		return domain.UserUpdate{ProfileImg: &url}
	}, func(u domain.UserWithPassword) string { return u.ProfileImg })
}

func (s *ProfileService) UpdateCover(ctx context.Context, userID, filePath string) (domain.User, string, error) {
	return s.replaceImage(ctx, userID, filePath, "coverImg", func(url string) domain.UserUpdate {
		return domain.UserUpdate{CoverImg: &url}
	}, func(u domain.UserWithPassword) string { return u.CoverImg })
}

// replaceImage uploads the file, points the user at it and then retires the
// previous image. Retiring is best-effort.
func (s *ProfileService) replaceImage(
	ctx context.Context,
	userID, filePath, field string,
	set func(url string) domain.UserUpdate,
	current func(domain.UserWithPassword) string,
) (domain.User, string, error) {
	if strings.TrimSpace(filePath) == "" {
		return domain.User{}, "", domain.NewValidationError(map[string]string{field: "file is required"})
	}
	if s.Images == nil {
		return domain.User{}, "", domain.Dependency("upload image", errors.New("image store not configured"))
	}

	before, err := s.Users.GetUserByID(ctx, userID)
	if err != nil {
		return domain.User{}, "", s.userErr("get user by id", err)
	}

	url, err := s.Images.Upload(ctx, filePath)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			return domain.User{}, "", err
		}
		return domain.User{}, "", domain.Dependency("upload image", err)
	}

	u, token, err := s.update(ctx, userID, set(url))
	if err != nil {
		if derr := s.Images.Delete(context.WithoutCancel(ctx), url); derr != nil {
			s.log().Warn("remove orphaned image", slog.String("url", url), slog.String("error", derr.Error()))
		}
		return domain.User{}, "", err
	}

	if old := current(before); old != "" && old != url {
		if err := s.Images.Delete(ctx, old); err != nil {
			s.log().Warn("remove replaced image", slog.String("user_id", userID), slog.String("error", err.Error()))
		}
	}
	return u, token, nil
}

func (s *ProfileService) ChangePassword(ctx context.Context, userID, current, next string) (domain.User, string, error) {
	f := fieldErrors{}
	if current == "" {
		f["currentPassword"] = "Enter your current password"
	}
	checkPassword(f, "newPassword", next)
	if err := f.err(); err != nil {
		return domain.User{}, "", err
	}

	u, err := s.Users.GetUserByID(ctx, userID)
	if err != nil {
		return domain.User{}, "", s.userErr("get user by id", err)
	}
	if !u.HasPassword() {
		return domain.User{}, "", domain.ErrNoPassword
	}
	if !auth.VerifyPassword(u.PasswordHash, current) {
		return domain.User{}, "", domain.ErrInvalidPassword
	}
	return s.setPassword(ctx, userID, next)
}

// SetPassword gives an account created through a sign-in provider its first
// password.
func (s *ProfileService) SetPassword(ctx context.Context, userID, password string) (domain.User, string, error) {
	f := fieldErrors{}
	checkPassword(f, "password", password)
	if err := f.err(); err != nil {
		return domain.User{}, "", err
	}

	u, err := s.Users.GetUserByID(ctx, userID)
	if err != nil {
		return domain.User{}, "", s.userErr("get user by id", err)
	}
	if u.HasPassword() {
		return domain.User{}, "", domain.ErrPasswordAlreadySet
	}
	return s.setPassword(ctx, userID, password)
}

func (s *ProfileService) setPassword(ctx context.Context, userID, password string) (domain.User, string, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, "", domain.Dependency("hash password", err)
	}
	return s.update(ctx, userID, domain.UserUpdate{PasswordHash: &hash})
}

func (s *ProfileService) update(ctx context.Context, userID string, upd domain.UserUpdate) (domain.User, string, error) {
	u, err := s.Users.UpdateUser(ctx, userID, upd)
	if err != nil {
		return domain.User{}, "", s.userErr("update user", err)
	}
	return s.reissue(u)
}

func (s *ProfileService) reissue(u domain.UserWithPassword) (domain.User, string, error) {
	token, err := s.Tokens.Issue(u)
	if err != nil {
		return domain.User{}, "", domain.Dependency("issue session token", err)
	}
	return u.User, token, nil
}

// userErr treats a vanished user as a dead session.
func (s *ProfileService) userErr(op string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrUnauthorized
	}
	return storeErr(op, err)
}
