package models

import (
	"time"

	"github.com/google/uuid"
)

// Search is one persisted consultation. It owns its diagnoses and images;
// children only keep the parent's id.
type Search struct {
	ID              uuid.UUID        `json:"id"`
	UserID          uuid.UUID        `json:"user_id"`
	Symptoms        string           `json:"symptoms"`
	Duration        *string          `json:"duration,omitempty"`
	PatientAgeYears *int             `json:"patient_age_years,omitempty"`
	SexAtBirth      *SexAtBirth      `json:"sex_at_birth,omitempty"`
	ResponseTone    ResponseTone     `json:"response_tone"`
	LanguageStyle   LanguageStyle    `json:"language_style"`
	Diagnoses       []SearchDiagnose `json:"diagnoses"`
	Images          []SearchImage    `json:"images"`
	CreatedAt       time.Time        `json:"created_at"`
}

// SearchDiagnose is a diagnose row belonging to a Search.
type SearchDiagnose struct {
	ID                uuid.UUID `json:"id"`
	SearchID          uuid.UUID `json:"-"`
	Position          int       `json:"position"`
	Name              string    `json:"name"`
	Description       string    `json:"description"`
	RecommendedAction string    `json:"recommended_action"`
}

// SearchImage references a normalized image stored in object storage.
type SearchImage struct {
	ID       uuid.UUID `json:"id"`
	SearchID uuid.UUID `json:"-"`
	Position int       `json:"position"`
	ImageSrc string    `json:"image_src"`
	Width    int       `json:"width"`
	Height   int       `json:"height"`
}
