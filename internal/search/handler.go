package search

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ayush/helsa/backend/internal/apperr"
	"github.com/ayush/helsa/backend/internal/auth"
)

// Handler serves the search history of the authenticated user.
type Handler struct {
	rec *Recorder
	log zerolog.Logger
}

func NewHandler(rec *Recorder, log zerolog.Logger) *Handler {
	return &Handler{rec: rec, log: log}
}

// List returns all searches of the caller.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	if u == nil {
		apperr.Write(w, h.log, apperr.New(apperr.Unauthenticated, auth.MsgInvalidCredentials))
		return
	}
	out, err := h.rec.List(r.Context(), u.ID)
	if err != nil {
		apperr.Write(w, h.log, err)
		return
	}
	apperr.WriteJSON(w, http.StatusOK, out)
}

// Get returns one search of the caller.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	if u == nil {
		apperr.Write(w, h.log, apperr.New(apperr.Unauthenticated, auth.MsgInvalidCredentials))
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apperr.Write(w, h.log, apperr.Wrap(apperr.NotFound, MsgSearchNotFound, err))
		return
	}
	s, err := h.rec.Get(r.Context(), id, u.ID)
	if err != nil {
		apperr.Write(w, h.log, err)
		return
	}
	apperr.WriteJSON(w, http.StatusOK, s)
}

// Image streams one stored image of a search of the caller.
func (h *Handler) Image(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	if u == nil {
		apperr.Write(w, h.log, apperr.New(apperr.Unauthenticated, auth.MsgInvalidCredentials))
		return
	}
	searchID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apperr.Write(w, h.log, apperr.Wrap(apperr.NotFound, MsgSearchNotFound, err))
		return
	}
	imageID, err := uuid.Parse(chi.URLParam(r, "imageID"))
	if err != nil {
		apperr.Write(w, h.log, apperr.Wrap(apperr.NotFound, MsgImageNotFound, err))
		return
	}

	data, ct, err := h.rec.Image(r.Context(), searchID, imageID, u.ID)
	if err != nil {
		apperr.Write(w, h.log, err)
		return
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
