package domain

import "time"

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

const (
	ProviderGoogle = "google"
	ProviderApple  = "apple"
	ProviderGitHub = "github"
)

type User struct {
	ID         string
	Email      string
	Firstname  string
	Lastname   string
	Gender     Gender
	Contact    string
	Bio        string
	ProfileImg string
	CoverImg   string
	IsVerified bool
	Providers  []string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type UserWithPassword struct {
	User
	PasswordHash string
}

func (u UserWithPassword) HasPassword() bool { return u.PasswordHash != "" }

// NewUser is the insert shape for a password signup.
type NewUser struct {
	Email        string
	Firstname    string
	Lastname     string
	Gender       Gender
	Contact      string
	PasswordHash string
}

// UserUpdate carries the fields of a single profile mutation. Nil fields are
// left untouched.
type UserUpdate struct {
	Email        *string
	Firstname    *string
	Lastname     *string
	Gender       *Gender
	Contact      *string
	Bio          *string
	ProfileImg   *string
	CoverImg     *string
	PasswordHash *string
	IsVerified   *bool
}

func (u UserUpdate) Empty() bool {
	return u.Email == nil && u.Firstname == nil && u.Lastname == nil && u.Gender == nil &&
		u.Contact == nil && u.Bio == nil && u.ProfileImg == nil && u.CoverImg == nil &&
		u.PasswordHash == nil && u.IsVerified == nil
}

type ExternalAccount struct {
	ID         string
	UserID     string
	Provider   string
	ProviderID string
	Email      string
	CreatedAt  time.Time
}

// ExternalProfile is what a sign-in provider tells us about the person.
type ExternalProfile struct {
	Provider   string
	ProviderID string
	Email      string
	Firstname  string
	Lastname   string
}
