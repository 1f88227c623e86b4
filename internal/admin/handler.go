package admin

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ayush/helsa/backend/internal/apperr"
	"github.com/ayush/helsa/backend/internal/models"
)

// Handler holds admin HTTP handlers. Routes must be mounted behind
// RequireAuth and RequireAdmin.
type Handler struct {
	svc *Service
	log zerolog.Logger
}

func NewHandler(svc *Service, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// SetUserFlags updates the flags of an existing user.
func (h *Handler) SetUserFlags(w http.ResponseWriter, r *http.Request) {
	var req models.UserFlagsRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		apperr.Write(w, h.log, apperr.Wrap(apperr.BadInput, "Invalid request body", err))
		return
	}

	msg, _, err := h.svc.SetFlags(r.Context(), req)
	if err != nil {
		apperr.Write(w, h.log, err)
		return
	}
	apperr.WriteJSON(w, http.StatusOK, map[string]string{"message": msg})
}

// ListExchanges returns recent model exchanges of a user.
func (h *Handler) ListExchanges(w http.ResponseWriter, r *http.Request) {
	var limit int64
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			apperr.Write(w, h.log, apperr.Wrap(apperr.BadInput, "limit must be a number", err))
			return
		}
		limit = n
	}

	out, err := h.svc.Exchanges(r.Context(), chi.URLParam(r, "username"), limit)
	if err != nil {
		apperr.Write(w, h.log, err)
		return
	}
	apperr.WriteJSON(w, http.StatusOK, out)
}
