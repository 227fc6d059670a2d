package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"blogspark/internal/domain"
)

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, errorEnvelope{Error: apiError{Code: code, Message: message}})
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, messageResponse{Message: message})
}

func WriteDomainError(w http.ResponseWriter, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		WriteJSON(w, http.StatusBadRequest, errorEnvelope{Error: apiError{
			Code:    "validation_error",
			Message: "invalid request",
			Fields:  ve.Fields,
		}})
	case errors.Is(err, domain.ErrValidation):
		WriteError(w, http.StatusBadRequest, "validation_error", "invalid request")
	case errors.Is(err, domain.ErrUserNotRegistered):
		WriteError(w, http.StatusNotFound, "user_not_registered", "User not Registered")
	case errors.Is(err, domain.ErrInvalidPassword):
		WriteError(w, http.StatusBadRequest, "invalid_password", "Invalid password")
	case errors.Is(err, domain.ErrInvalidOTP):
		WriteError(w, http.StatusBadRequest, "invalid_otp", "Invalid OTP. Enter a valid OTP.")
	case errors.Is(err, domain.ErrVerificationLinkInvalid):
		WriteError(w, http.StatusNotFound, "verification_link_invalid", "Verification link not found")
	case errors.Is(err, domain.ErrResetLinkInvalid):
		WriteError(w, http.StatusBadRequest, "reset_link_invalid", "Invalid reset password link")
	case errors.Is(err, domain.ErrEmailTaken):
		WriteError(w, http.StatusConflict, "email_taken", "User email already exists")
	case errors.Is(err, domain.ErrContactTaken):
		WriteError(w, http.StatusConflict, "contact_taken", "User contact already exists")
	case errors.Is(err, domain.ErrExternalAccountExists):
		WriteError(w, http.StatusConflict, "external_account_exists", "account already linked to another user")
	case errors.Is(err, domain.ErrAlreadyVerified):
		WriteError(w, http.StatusConflict, "already_verified", "email already verified")
	case errors.Is(err, domain.ErrPasswordAlreadySet):
		WriteError(w, http.StatusConflict, "password_already_set", "password already set")
	case errors.Is(err, domain.ErrNoPassword):
		WriteError(w, http.StatusBadRequest, "no_password", "account has no password; set one first")
	case errors.Is(err, domain.ErrInvalidCredentials):
		WriteError(w, http.StatusUnauthorized, "invalid_credentials", "invalid sign-in credentials")
	case errors.Is(err, domain.ErrUnauthorized):
		WriteError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
	case errors.Is(err, domain.ErrAlreadyAuthenticated):
		WriteError(w, http.StatusForbidden, "already_authenticated", "already logged in")
	case errors.Is(err, domain.ErrRateLimited):
		WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
	case errors.Is(err, domain.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not_found", "not found")
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "Internal Server Error")
	}
}

// profileResponse is the public view of the session claims.
type profileResponse struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	Firstname   string   `json:"firstname"`
	Lastname    string   `json:"lastname"`
	Gender      string   `json:"gender"`
	Contact     string   `json:"contact"`
	Bio         string   `json:"bio"`
	ProfileImg  string   `json:"profileImg"`
	CoverImg    string   `json:"coverImg"`
	IsVerified  bool     `json:"isVerified"`
	HasPassword bool     `json:"hasPassword"`
	Providers   []string `json:"oauthProvider"`
}

func profileFromClaims(c domain.Claims) profileResponse {
	providers := c.Providers
	if providers == nil {
		providers = []string{}
	}
	return profileResponse{
		ID:          c.UserID,
		Email:       c.Email,
		Firstname:   c.Firstname,
		Lastname:    c.Lastname,
		Gender:      string(c.Gender),
		Contact:     c.Contact,
		Bio:         c.Bio,
		ProfileImg:  c.ProfileImg,
		CoverImg:    c.CoverImg,
		IsVerified:  c.IsVerified,
		HasPassword: c.HasPassword,
		Providers:   providers,
	}
}

type userMessageResponse struct {
	Message string          `json:"message"`
	User    profileResponse `json:"user"`
}

var clientErrors = []error{
	domain.ErrValidation,
	domain.ErrUserNotRegistered,
	domain.ErrInvalidPassword,
	domain.ErrInvalidOTP,
	domain.ErrVerificationLinkInvalid,
	domain.ErrResetLinkInvalid,
	domain.ErrEmailTaken,
	domain.ErrContactTaken,
	domain.ErrExternalAccountExists,
	domain.ErrAlreadyVerified,
	domain.ErrPasswordAlreadySet,
	domain.ErrNoPassword,
	domain.ErrInvalidCredentials,
	domain.ErrUnauthorized,
	domain.ErrAlreadyAuthenticated,
	domain.ErrRateLimited,
	domain.ErrNotFound,
}

// isInternal reports whether err maps to a 500.
func isInternal(err error) bool {
	for _, known := range clientErrors {
		if errors.Is(err, known) {
			return false
		}
	}
	return true
}
