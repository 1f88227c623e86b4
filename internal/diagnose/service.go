// Package diagnose runs a consultation: image intake, prompt, model call
// and persistence of the resulting search.
package diagnose

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ayush/helsa/backend/internal/apperr"
	"github.com/ayush/helsa/backend/internal/intake"
	"github.com/ayush/helsa/backend/internal/models"
	"github.com/ayush/helsa/backend/internal/prompt"
	"github.com/ayush/helsa/backend/internal/search"
)

// DiagnosisRequester asks the model for diagnoses.
type DiagnosisRequester interface {
	RequestDiagnosis(ctx context.Context, p models.Prompt, images []intake.NormalizedImage, user *models.User) (*models.DoctorsResponse, error)
}

// SearchRecorder persists a finished consultation.
type SearchRecorder interface {
	Persist(ctx context.Context, s *models.Search, images []intake.NormalizedImage) error
}

// ExchangeLog records every model call.
type ExchangeLog interface {
	RecordExchange(ctx context.Context, ex *models.Exchange) (string, error)
}

// Result is the body of a successful consultation.
type Result struct {
	SearchID  uuid.UUID         `json:"search_id"`
	Diagnoses []models.Diagnose `json:"diagnoses"`
}

// Service wires the consultation pipeline together.
type Service struct {
	requester DiagnosisRequester
	recorder  SearchRecorder
	exchanges ExchangeLog
	model     string
	log       zerolog.Logger
}

func NewService(requester DiagnosisRequester, recorder SearchRecorder, exchanges ExchangeLog, model string, log zerolog.Logger) *Service {
	return &Service{
		requester: requester,
		recorder:  recorder,
		exchanges: exchanges,
		model:     model,
		log:       log,
	}
}

// Diagnose runs the full pipeline for one report. Nothing is persisted
// unless the model returned at least one diagnose.
func (s *Service) Diagnose(ctx context.Context, user *models.User, report models.PatientReport, uploads []intake.Upload) (*Result, error) {
	report.Symptoms = strings.TrimSpace(report.Symptoms)
	report.Duration = strings.TrimSpace(report.Duration)

	// Step 1: account limits, before any image is read
	if err := intake.CheckCriteria(user, uploads); err != nil {
		return nil, err
	}

	// Step 2: validate and render the prompt
	p, err := prompt.Build(report)
	if err != nil {
		return nil, err
	}

	// Step 3: normalize images in memory
	images := make([]intake.NormalizedImage, 0, len(uploads))
	for _, u := range uploads {
		data, err := u.ReadAll()
		if err != nil {
			return nil, err
		}
		img, err := intake.Normalize(data)
		if err != nil {
			return nil, err
		}
		images = append(images, *img)
	}

	// Step 4: ask the model
	start := time.Now()
	resp, err := s.requester.RequestDiagnosis(ctx, p, images, user)
	ex := &models.Exchange{
		UserID:            user.ID.String(),
		Model:             s.model,
		Temperature:       p.Temperature,
		SystemInstruction: p.SystemInstruction,
		Query:             p.Query,
		ImageCount:        len(images),
		LatencyMillis:     time.Since(start).Milliseconds(),
		CreatedAt:         time.Now().UTC(),
	}
	if err != nil {
		ex.Outcome = apperr.KindOf(err).String()
		ex.Detail = err.Error()
		s.recordExchange(ex)
		return nil, err
	}

	// Step 5: assemble and persist
	rec := search.Create(report, user, resp, images)
	ex.SearchID = rec.ID.String()
	ex.Diagnoses = resp.Diagnoses
	if err := s.recorder.Persist(ctx, rec, images); err != nil {
		ex.Outcome = "persist_failed"
		ex.Detail = err.Error()
		s.recordExchange(ex)
		return nil, err
	}
	ex.Outcome = "ok"
	s.recordExchange(ex)

	s.log.Info().
		Str("user_id", user.ID.String()).
		Str("search_id", rec.ID.String()).
		Int("images", len(images)).
		Int("diagnoses", len(resp.Diagnoses)).
		Msg("consultation completed")

	return &Result{SearchID: rec.ID, Diagnoses: resp.Diagnoses}, nil
}

// recordExchange is best effort; a logging failure never fails the request.
func (s *Service) recordExchange(ex *models.Exchange) {
	if s.exchanges == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := s.exchanges.RecordExchange(ctx, ex); err != nil {
		s.log.Warn().Err(err).Str("user_id", ex.UserID).Msg("record exchange")
	}
}
