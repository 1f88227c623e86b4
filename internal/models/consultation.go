package models

import "fmt"

// ResponseTone is the requested tone of the answer.
type ResponseTone string

const (
	ToneProfessional ResponseTone = "professional"
	ToneFriendly     ResponseTone = "friendly"
	ToneFunny        ResponseTone = "funny"
)

// ParseResponseTone maps a form value onto a tone. Empty input yields the default.
func ParseResponseTone(s string) (ResponseTone, error) {
	switch ResponseTone(s) {
	case "":
		return ToneProfessional, nil
	case ToneProfessional, ToneFriendly, ToneFunny:
		return ResponseTone(s), nil
	}
	return "", fmt.Errorf("unknown response tone %q", s)
}

// LanguageStyle is the requested register of the answer.
type LanguageStyle string

const (
	StyleMedical LanguageStyle = "medical"
	StyleSimple  LanguageStyle = "simple"
)

// ParseLanguageStyle maps a form value onto a style. Empty input yields the default.
func ParseLanguageStyle(s string) (LanguageStyle, error) {
	switch LanguageStyle(s) {
	case "":
		return StyleSimple, nil
	case StyleMedical, StyleSimple:
		return LanguageStyle(s), nil
	}
	return "", fmt.Errorf("unknown language style %q", s)
}

// SexAtBirth is the sex assigned at birth. The zero value means not provided.
type SexAtBirth string

const (
	SexMale     SexAtBirth = "male"
	SexFemale   SexAtBirth = "female"
	SexIntersex SexAtBirth = "intersex"
)

// ParseSexAtBirth maps a form value onto SexAtBirth. Empty input stays empty.
func ParseSexAtBirth(s string) (SexAtBirth, error) {
	switch SexAtBirth(s) {
	case "", SexMale, SexFemale, SexIntersex:
		return SexAtBirth(s), nil
	}
	return "", fmt.Errorf("unknown sex at birth %q", s)
}

// PatientReport is the structured input of a consultation.
type PatientReport struct {
	ResponseTone  ResponseTone  `validate:"required,oneof=professional friendly funny"`
	LanguageStyle LanguageStyle `validate:"required,oneof=medical simple"`
	SexAtBirth    SexAtBirth    `validate:"omitempty,oneof=male female intersex"`
	Symptoms      string        `validate:"required,min=5,max=500"`
	Duration      string        `validate:"omitempty,min=5,max=250"`
	AgeYears      *int          `validate:"omitempty,gte=0"`
}

// Prompt is the rendered instruction sent to the model.
type Prompt struct {
	SystemInstruction string
	Query             string
	Temperature       float32
}

// Diagnose is one entry of the model's structured answer.
type Diagnose struct {
	Name              string `json:"name"`
	Description       string `json:"description"`
	RecommendedAction string `json:"recommended_action"`
}

// DoctorsResponse is the structured answer expected from the model.
type DoctorsResponse struct {
	Diagnoses []Diagnose `json:"diagnoses"`
}
