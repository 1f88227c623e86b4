package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ayush/helsa/backend/internal/apperr"
	"github.com/ayush/helsa/backend/internal/models"
)

// Handler holds access-related HTTP handlers.
type Handler struct {
	svc *Service
	log zerolog.Logger
}

func NewHandler(svc *Service, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Register creates a new user from a JSON body.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.Write(w, h.log, apperr.Wrap(apperr.BadInput, "invalid request body", err))
		return
	}
	req.Username = strings.TrimSpace(req.Username)

	if _, err := h.svc.Register(r.Context(), req); err != nil {
		apperr.Write(w, h.log, err)
		return
	}
	apperr.WriteJSON(w, http.StatusCreated, map[string]string{"message": MsgUserCreated})
}

// GetAccessToken exchanges form credentials for a bearer token.
func (h *Handler) GetAccessToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		apperr.Write(w, h.log, apperr.Wrap(apperr.BadInput, "invalid form body", err))
		return
	}
	username := strings.TrimSpace(r.PostForm.Get("username"))
	password := r.PostForm.Get("password")
	if username == "" || password == "" {
		apperr.Write(w, h.log, apperr.New(apperr.BadInput, "username and password are required"))
		return
	}

	tok, err := h.svc.Login(r.Context(), username, password)
	if err != nil {
		apperr.Write(w, h.log, err)
		return
	}
	apperr.WriteJSON(w, http.StatusOK, tok)
}

// RevokeToken invalidates the bearer token used for this request.
func (h *Handler) RevokeToken(w http.ResponseWriter, r *http.Request) {
	token, ok := BearerToken(r)
	if !ok {
		apperr.Write(w, h.log, apperr.New(apperr.Unauthenticated, MsgInvalidCredentials))
		return
	}
	if err := h.svc.Revoke(r.Context(), token); err != nil {
		apperr.Write(w, h.log, err)
		return
	}
	apperr.WriteJSON(w, http.StatusOK, map[string]string{"message": "token revoked"})
}

// Me returns the currently authenticated user.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u := UserFromContext(r.Context())
	if u == nil {
		apperr.Write(w, h.log, apperr.New(apperr.Unauthenticated, MsgInvalidCredentials))
		return
	}
	apperr.WriteJSON(w, http.StatusOK, u)
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
