// Package search assembles consultation records and persists them together
// with their images.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ayush/helsa/backend/internal/apperr"
	"github.com/ayush/helsa/backend/internal/intake"
	"github.com/ayush/helsa/backend/internal/models"
	"github.com/ayush/helsa/backend/internal/store"
)

const imageContentType = "image/jpeg"

const (
	// MsgSearchNotFound is returned for unknown or foreign search ids.
	MsgSearchNotFound = "Search was not found"
	MsgImageNotFound  = "Image was not found"
)

// SearchStore defines the relational persistence used for searches.
type SearchStore interface {
	InsertSearch(ctx context.Context, s *models.Search) error
	ListSearches(ctx context.Context, userID uuid.UUID) ([]models.Search, error)
	GetSearch(ctx context.Context, id, userID uuid.UUID) (*models.Search, error)
}

// ImageStore defines object storage for normalized images.
type ImageStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Download(ctx context.Context, key string) ([]byte, string, error)
	Remove(ctx context.Context, key string) error
}

// Create assembles a Search from a report and the model's answer. It does
// no I/O; images and diagnoses keep their input order.
func Create(report models.PatientReport, user *models.User, resp *models.DoctorsResponse, images []intake.NormalizedImage) *models.Search {
	s := &models.Search{
		ID:              uuid.New(),
		UserID:          user.ID,
		Symptoms:        report.Symptoms,
		PatientAgeYears: report.AgeYears,
		ResponseTone:    report.ResponseTone,
		LanguageStyle:   report.LanguageStyle,
		Diagnoses:       make([]models.SearchDiagnose, 0, len(resp.Diagnoses)),
		Images:          make([]models.SearchImage, 0, len(images)),
		CreatedAt:       time.Now().UTC(),
	}
	if report.Duration != "" {
		d := report.Duration
		s.Duration = &d
	}
	if report.SexAtBirth != "" {
		sex := report.SexAtBirth
		s.SexAtBirth = &sex
	}
	for i, d := range resp.Diagnoses {
		s.Diagnoses = append(s.Diagnoses, models.SearchDiagnose{
			ID:                uuid.New(),
			SearchID:          s.ID,
			Position:          i,
			Name:              d.Name,
			Description:       d.Description,
			RecommendedAction: d.RecommendedAction,
		})
	}
	for i, img := range images {
		s.Images = append(s.Images, models.SearchImage{
			ID:       uuid.New(),
			SearchID: s.ID,
			Position: i,
			ImageSrc: img.Name,
			Width:    img.Width,
			Height:   img.Height,
		})
	}
	return s
}

// Recorder writes searches and their image objects.
type Recorder struct {
	searches SearchStore
	images   ImageStore
	log      zerolog.Logger
}

func NewRecorder(searches SearchStore, images ImageStore, log zerolog.Logger) *Recorder {
	return &Recorder{searches: searches, images: images, log: log}
}

// Persist uploads the image objects and then inserts the search with all
// children in one transaction. If the insert fails the uploaded objects
// are removed again.
func (r *Recorder) Persist(ctx context.Context, s *models.Search, images []intake.NormalizedImage) error {
	if len(s.Diagnoses) == 0 {
		return apperr.New(apperr.RequestFailed, "Requesting diagnose failed, please try again later.")
	}

	uploaded := make([]string, 0, len(images))
	for _, img := range images {
		if err := r.images.Upload(ctx, img.Name, img.Data, imageContentType); err != nil {
			r.cleanup(uploaded)
			return apperr.Wrap(apperr.StorageIOFailure, intake.MsgSavingIOError, err)
		}
		uploaded = append(uploaded, img.Name)
	}

	if err := r.searches.InsertSearch(ctx, s); err != nil {
		r.cleanup(uploaded)
		return apperr.Wrap(apperr.Unexpected, apperr.InternalMessage, fmt.Errorf("persist search: %w", err))
	}

	r.log.Info().
		Str("search_id", s.ID.String()).
		Str("user_id", s.UserID.String()).
		Int("diagnoses", len(s.Diagnoses)).
		Int("images", len(s.Images)).
		Msg("search recorded")
	return nil
}

// cleanup uses a fresh context so a cancelled request still removes its objects.
func (r *Recorder) cleanup(keys []string) {
	if len(keys) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, k := range keys {
		if err := r.images.Remove(ctx, k); err != nil {
			r.log.Error().Err(err).Str("object", k).Msg("remove orphaned image")
		}
	}
}

// List returns the searches of a user, newest first.
func (r *Recorder) List(ctx context.Context, userID uuid.UUID) ([]models.Search, error) {
	out, err := r.searches.ListSearches(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Unexpected, apperr.InternalMessage, err)
	}
	return out, nil
}

// Get returns one search owned by userID.
func (r *Recorder) Get(ctx context.Context, id, userID uuid.UUID) (*models.Search, error) {
	s, err := r.searches.GetSearch(ctx, id, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.Wrap(apperr.NotFound, MsgSearchNotFound, err)
		}
		return nil, apperr.Wrap(apperr.Unexpected, apperr.InternalMessage, err)
	}
	return s, nil
}

// Image returns the bytes of one image of a search owned by userID.
func (r *Recorder) Image(ctx context.Context, searchID, imageID, userID uuid.UUID) ([]byte, string, error) {
	s, err := r.Get(ctx, searchID, userID)
	if err != nil {
		return nil, "", err
	}
	for _, img := range s.Images {
		if img.ID != imageID {
			continue
		}
		data, ct, err := r.images.Download(ctx, img.ImageSrc)
		if errors.Is(err, store.ErrNotFound) {
			return nil, "", apperr.Wrap(apperr.NotFound, MsgImageNotFound, err)
		}
		if err != nil {
			return nil, "", apperr.Wrap(apperr.StorageIOFailure, "Image could not be loaded", err)
		}
		if ct == "" {
			ct = imageContentType
		}
		return data, ct, nil
	}
	return nil, "", apperr.New(apperr.NotFound, MsgImageNotFound)
}
