package diagnose

import (
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ayush/helsa/backend/internal/apperr"
	"github.com/ayush/helsa/backend/internal/auth"
	"github.com/ayush/helsa/backend/internal/intake"
	"github.com/ayush/helsa/backend/internal/models"
)

const (
	maxBodyBytes   = 32 << 20
	maxMemoryBytes = 8 << 20
	imagesField    = "symptom_images"
)

// Handler serves POST /diagnose.
type Handler struct {
	svc     *Service
	log     zerolog.Logger
	maxBody int64
}

func NewHandler(svc *Service, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, log: log, maxBody: maxBodyBytes}
}

// Diagnose parses the consultation form and runs the pipeline. Both
// multipart and urlencoded bodies are accepted; only multipart can carry
// images.
func (h *Handler) Diagnose(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		apperr.Write(w, h.log, apperr.New(apperr.Unauthenticated, auth.MsgInvalidCredentials))
		return
	}

	values, files, err := h.parseForm(w, r, user)
	if err != nil {
		apperr.Write(w, h.log, err)
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	report, err := parseReport(values)
	if err != nil {
		apperr.Write(w, h.log, err)
		return
	}
	uploads := collectUploads(files)

	res, err := h.svc.Diagnose(r.Context(), user, report, uploads)
	if err != nil {
		apperr.Write(w, h.log, err)
		return
	}
	apperr.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) parseForm(w http.ResponseWriter, r *http.Request, user *models.User) (map[string][]string, []*multipart.FileHeader, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	err := r.ParseMultipartForm(maxMemoryBytes)
	switch {
	case err == nil:
		return r.MultipartForm.Value, r.MultipartForm.File[imagesField], nil
	case errors.Is(err, http.ErrNotMultipart):
		// ParseForm already ran and filled PostForm.
		return r.PostForm, nil, nil
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		// An oversized multipart body carries files, and files need premium.
		if !user.HasPremiumTier && isMultipart(r) {
			return nil, nil, apperr.Wrap(apperr.PaymentRequired, intake.MsgNoPremiumTier, err)
		}
		return nil, nil, apperr.Wrap(apperr.PayloadTooLarge, "Request body is too large", err)
	}
	return nil, nil, apperr.Wrap(apperr.BadInput, "Invalid form body", err)
}

func isMultipart(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && strings.HasPrefix(mt, "multipart/")
}

func formValue(values map[string][]string, key string) string {
	if v := values[key]; len(v) > 0 {
		return strings.TrimSpace(v[0])
	}
	return ""
}

func parseReport(values map[string][]string) (models.PatientReport, error) {
	var report models.PatientReport
	var err error

	if report.ResponseTone, err = models.ParseResponseTone(formValue(values, "response_tone")); err != nil {
		return report, apperr.Wrap(apperr.BadInput, "Response tone must be one of: professional, friendly, funny", err)
	}
	if report.LanguageStyle, err = models.ParseLanguageStyle(formValue(values, "language_style")); err != nil {
		return report, apperr.Wrap(apperr.BadInput, "Language style must be one of: medical, simple", err)
	}
	if report.SexAtBirth, err = models.ParseSexAtBirth(formValue(values, "sex_at_birth")); err != nil {
		return report, apperr.Wrap(apperr.BadInput, "Sex at birth must be one of: male, female, intersex", err)
	}
	if s := formValue(values, "age_years"); s != "" {
		age, err := strconv.Atoi(s)
		if err != nil {
			return report, apperr.Wrap(apperr.BadInput, "Age must be a non-negative number", err)
		}
		report.AgeYears = &age
	}
	report.Symptoms = formValue(values, "symptoms")
	report.Duration = formValue(values, "duration")
	return report, nil
}

func collectUploads(files []*multipart.FileHeader) []intake.Upload {
	uploads := make([]intake.Upload, 0, len(files))
	for _, fh := range files {
		uploads = append(uploads, intake.Upload{
			Filename: fh.Filename,
			Size:     fh.Size,
			Open: func() (io.ReadCloser, error) {
				return fh.Open()
			},
		})
	}
	return uploads
}
