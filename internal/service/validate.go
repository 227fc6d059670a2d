package service

import (
	"regexp"
	"strings"
	"unicode"

	"blogspark/internal/domain"
)

var (
	emailRe = regexp.MustCompile(`^[a-zA-Z0-9](?:[a-zA-Z0-9._+-]*[a-zA-Z0-9])?@[a-zA-Z0-9](?:[a-zA-Z0-9.-]*[a-zA-Z0-9])?\.[a-zA-Z]{2,}$`)
	nameRe  = regexp.MustCompile(`^[\p{L}]+(?:[ '-][\p{L}]+)*$`)
)

const passwordSpecials = "!@#$%^&*()_+-=[]{};':\"\\|,.<>/?`~"

type fieldErrors map[string]string

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return domain.NewValidationError(f)
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func checkEmail(f fieldErrors, email string) {
	switch {
	case email == "":
		f["email"] = "Enter your email address"
	case len(email) > 254:
		f["email"] = "Email should not exceed 254 characters"
	case !emailRe.MatchString(email):
		f["email"] = "Enter a valid email, e.g. user@example.com"
	case len(email[:strings.IndexByte(email, '@')]) > 64:
		f["email"] = "Local part should not exceed 64 characters"
	}
}

func checkName(f fieldErrors, key, name string) {
	n := len([]rune(name))
	switch {
	case name == "":
		f[key] = "Enter your name"
	case n < 2 || n > 25:
		f[key] = "Name should be between 2 and 25 characters long"
	case !nameRe.MatchString(name):
		f[key] = "Name should contain letters only"
	}
}

func checkGender(f fieldErrors, g domain.Gender) {
	if !g.Valid() {
		f["gender"] = "Select your gender"
	}
}

// normalizeContact strips formatting and keeps an optional leading plus.
func normalizeContact(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for i, r := range s {
		if r == '+' && i == 0 {
			b.WriteRune(r)
			continue
		}
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func checkContact(f fieldErrors, contact string) {
	digits := strings.TrimPrefix(contact, "+")
	switch {
	case contact == "":
		f["contact"] = "Enter your contact number"
	case len(digits) < 10 || len(digits) > 15:
		f["contact"] = "Contact number should contain 10 to 15 digits"
	}
}

func checkBio(f fieldErrors, bio string) {
	n := len([]rune(bio))
	if n < 10 || n > 300 {
		f["bio"] = "Bio should be between 10 and 300 characters long"
	}
}

func checkPassword(f fieldErrors, key, pw string) {
	var lower, upper, digit, special, space bool
	for _, r := range pw {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsSpace(r):
			space = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		}
	}
	n := len([]rune(pw))
	switch {
	case pw == "":
		f[key] = "Enter your password"
	case n < 8 || n > 128:
		f[key] = "Password should be between 8 and 128 characters long"
	case !lower:
		f[key] = "Password must contain at least one lowercase letter"
	case !upper:
		f[key] = "Password must contain at least one uppercase letter"
	case !digit:
		f[key] = "Password must contain at least one digit"
	case !special:
		f[key] = "Password must contain at least one special character"
	case space:
		f[key] = "Password must not contain any whitespace characters"
	}
}

func checkOTP(f fieldErrors, otp string) {
	if len([]rune(otp)) != 6 || strings.IndexFunc(otp, unicode.IsSpace) >= 0 {
		f["otp"] = "Enter a valid OTP"
	}
}
