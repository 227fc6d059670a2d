package httpapi

import (
	"net/http"

	"blogspark/internal/domain"
)

type issueVerificationRequest struct {
	CorrelationID string `json:"correlationId"`
}

func (a *api) handleIssueEmailVerification(w http.ResponseWriter, r *http.Request) {
	claims, ok := CurrentClaims(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}
	var req issueVerificationRequest
	if _, err := decodeJSONAllowEmpty(w, r, &req); err != nil {
		writeBadJSON(w)
		return
	}

	if err := a.verifySvc.IssueEmailVerification(r.Context(), claims.UserID, req.CorrelationID); err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Verification email sent successfully!")
}

type verifyOTPRequest struct {
	OTPCode string `json:"otpCode"`
}

func (a *api) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	claims, ok := CurrentClaims(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}
	var req verifyOTPRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadJSON(w)
		return
	}

	if err := a.verifySvc.ConfirmEmailOTP(r.Context(), claims.UserID, req.OTPCode); err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "OTP verified successfully")
}

func (a *api) handleVerifyEmailLink(w http.ResponseWriter, r *http.Request) {
	if err := a.verifySvc.ConfirmEmailLink(r.Context(), r.PathValue("token")); err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Email verified successfully")
}

func (a *api) handleCheckResetLink(w http.ResponseWriter, r *http.Request) {
	if err := a.verifySvc.CheckPasswordReset(r.Context(), r.PathValue("token")); err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Reset password link is valid")
}

type resetPasswordRequest struct {
	NewPassword string `json:"newPassword"`
}

func (a *api) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadJSON(w)
		return
	}

	if err := a.verifySvc.ConfirmPasswordReset(r.Context(), r.PathValue("token"), req.NewPassword); err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Password updated successfully")
}
