package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"strconv"

	"blogspark/internal/domain"
)

const (
	maxAvatarSize = 5 << 20
	maxCoverSize  = 10 << 20
)

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
}

func (a *api) handleProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := CurrentClaims(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}
	WriteJSON(w, http.StatusOK, profileFromClaims(claims))
}

type profileUpdate func(ctx context.Context, userID string) (domain.User, string, error)

// runProfileUpdate applies one mutation for the current user and swaps the
// session cookie for the re-minted token.
func (a *api) runProfileUpdate(w http.ResponseWriter, r *http.Request, message string, update profileUpdate) {
	claims, ok := CurrentClaims(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}
	_, token, err := update(r.Context(), claims.UserID)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	a.writeSession(w, r, token, message)
}

type updateNameRequest struct {
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
}

func (a *api) handleUpdateName(w http.ResponseWriter, r *http.Request) {
	var req updateNameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadJSON(w)
		return
	}
	a.runProfileUpdate(w, r, "Username updated successfully!", func(ctx context.Context, id string) (domain.User, string, error) {
		return a.profileSvc.UpdateName(ctx, id, req.Firstname, req.Lastname)
	})
}

type updateBioRequest struct {
	Bio string `json:"bio"`
}

func (a *api) handleUpdateBio(w http.ResponseWriter, r *http.Request) {
	var req updateBioRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadJSON(w)
		return
	}
	a.runProfileUpdate(w, r, "Bio updated successfully!", func(ctx context.Context, id string) (domain.User, string, error) {
		return a.profileSvc.UpdateBio(ctx, id, req.Bio)
	})
}

type updateGenderRequest struct {
	Gender string `json:"gender"`
}

func (a *api) handleUpdateGender(w http.ResponseWriter, r *http.Request) {
	var req updateGenderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadJSON(w)
		return
	}
	a.runProfileUpdate(w, r, "Gender updated successfully!", func(ctx context.Context, id string) (domain.User, string, error) {
		return a.profileSvc.UpdateGender(ctx, id, req.Gender)
	})
}

type updateContactRequest struct {
	Contact string `json:"contact"`
}

func (a *api) handleUpdateContact(w http.ResponseWriter, r *http.Request) {
	var req updateContactRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadJSON(w)
		return
	}
	a.runProfileUpdate(w, r, "Contact updated successfully!", func(ctx context.Context, id string) (domain.User, string, error) {
		return a.profileSvc.UpdateContact(ctx, id, req.Contact)
	})
}

type updateEmailRequest struct {
	Email string `json:"email"`
}

func (a *api) handleUpdateEmail(w http.ResponseWriter, r *http.Request) {
	var req updateEmailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadJSON(w)
		return
	}
	a.runProfileUpdate(w, r, "Email updated successfully!", func(ctx context.Context, id string) (domain.User, string, error) {
		return a.profileSvc.UpdateEmail(ctx, id, req.Email)
	})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (a *api) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadJSON(w)
		return
	}
	a.runProfileUpdate(w, r, "Password updated successfully!", func(ctx context.Context, id string) (domain.User, string, error) {
		return a.profileSvc.ChangePassword(ctx, id, req.CurrentPassword, req.NewPassword)
	})
}

type setPasswordRequest struct {
	Password string `json:"password"`
}

func (a *api) handleSetPassword(w http.ResponseWriter, r *http.Request) {
	var req setPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadJSON(w)
		return
	}
	a.runProfileUpdate(w, r, "Password set successfully!", func(ctx context.Context, id string) (domain.User, string, error) {
		return a.profileSvc.SetPassword(ctx, id, req.Password)
	})
}

func (a *api) handleUpdateAvatar(w http.ResponseWriter, r *http.Request) {
	a.handleImageUpload(w, r, "avatarImage", maxAvatarSize, "Profile picture updated successfully!", a.profileSvc.UpdateAvatar)
}

func (a *api) handleUpdateCover(w http.ResponseWriter, r *http.Request) {
	a.handleImageUpload(w, r, "coverImage", maxCoverSize, "Cover image updated successfully!", a.profileSvc.UpdateCover)
}

func (a *api) handleImageUpload(
	w http.ResponseWriter,
	r *http.Request,
	field string,
	maxSize int64,
	message string,
	update func(ctx context.Context, userID, filePath string) (domain.User, string, error),
) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+(1<<20))
	if err := r.ParseMultipartForm(maxSize); err != nil {
		WriteDomainError(w, domain.NewValidationError(map[string]string{field: "image must be a multipart upload of at most " + humanSize(maxSize)}))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile(field)
	if err != nil {
		WriteDomainError(w, domain.NewValidationError(map[string]string{field: "image file is required"}))
		return
	}
	defer file.Close()
	if header.Size > maxSize {
		WriteDomainError(w, domain.NewValidationError(map[string]string{field: "image must be at most " + humanSize(maxSize)}))
		return
	}

	path, err := a.spoolUpload(file)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			WriteDomainError(w, domain.NewValidationError(map[string]string{field: "image must be a JPEG or PNG file"}))
			return
		}
		a.writeDomainError(w, r, domain.Dependency("spool upload", err))
		return
	}
	defer os.Remove(path)

	a.runProfileUpdate(w, r, message, func(ctx context.Context, id string) (domain.User, string, error) {
		return update(ctx, id, path)
	})
}

// spoolUpload copies an accepted image into a temp file named with the
// extension matching its sniffed type.
func (a *api) spoolUpload(src io.Reader) (string, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(src, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	head = head[:n]
	ext, ok := imageExtensions[http.DetectContentType(head)]
	if !ok {
		return "", domain.ErrValidation
	}

	f, err := os.CreateTemp(a.uploadDir, "upload-*"+ext)
	if err != nil {
		return "", err
	}
	_, err = f.Write(head)
	if err == nil {
		_, err = io.Copy(f, src)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func humanSize(n int64) string {
	const mb = 1 << 20
	return strconv.FormatInt(n/mb, 10) + "MB"
}
