package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayush/helsa/backend/internal/models"
)

func sampleSearch() *models.Search {
	id := uuid.New()
	return &models.Search{
		ID:            id,
		UserID:        uuid.New(),
		Symptoms:      "itchy red rash on forearm",
		ResponseTone:  models.ToneProfessional,
		LanguageStyle: models.StyleSimple,
		Diagnoses: []models.SearchDiagnose{
			{ID: uuid.New(), SearchID: id, Position: 0, Name: "Contact dermatitis", Description: "d", RecommendedAction: "a"},
			{ID: uuid.New(), SearchID: id, Position: 1, Name: "Eczema", Description: "d", RecommendedAction: "a"},
		},
		Images: []models.SearchImage{
			{ID: uuid.New(), SearchID: id, Position: 0, ImageSrc: "searches/x.jpg", Width: 640, Height: 480},
		},
	}
}

func TestInsertSearch_Commits(t *testing.T) {
	s, mock := newStoreWithMock(t)
	sr := sampleSearch()
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO searches`).
		WithArgs(sr.ID, sr.UserID, sr.Symptoms, (*string)(nil), (*int)(nil), (*string)(nil), "professional", "simple").
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(created))
	mock.ExpectExec(`INSERT INTO search_diagnoses`).
		WithArgs(sr.Diagnoses[0].ID, sr.ID, 0, "Contact dermatitis", "d", "a").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO search_diagnoses`).
		WithArgs(sr.Diagnoses[1].ID, sr.ID, 1, "Eczema", "d", "a").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO search_images`).
		WithArgs(sr.Images[0].ID, sr.ID, 0, "searches/x.jpg", 640, 480).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, s.InsertSearch(context.Background(), sr))
	assert.Equal(t, created, sr.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertSearch_ChildFailureRollsBack(t *testing.T) {
	s, mock := newStoreWithMock(t)
	sr := sampleSearch()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO searches`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	mock.ExpectExec(`INSERT INTO search_diagnoses`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := s.InsertSearch(context.Background(), sr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert search diagnose")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSearch_NotFound(t *testing.T) {
	s, mock := newStoreWithMock(t)
	id, owner := uuid.New(), uuid.New()

	mock.ExpectQuery(`SELECT .+ FROM searches WHERE id = \$1 AND user_id = \$2`).
		WithArgs(id, owner).
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetSearch(context.Background(), id, owner)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListSearches_Empty(t *testing.T) {
	s, mock := newStoreWithMock(t)
	owner := uuid.New()

	mock.ExpectQuery(`SELECT .+ FROM searches WHERE user_id = \$1`).
		WithArgs(owner).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "symptoms", "duration", "patient_age_years",
			"sex_at_birth", "response_tone", "language_style", "created_at"}))

	got, err := s.ListSearches(context.Background(), owner)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
}
