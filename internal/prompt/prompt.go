// Package prompt renders a patient report into the instruction sent to the
// language model.
package prompt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ayush/helsa/backend/internal/apperr"
	"github.com/ayush/helsa/backend/internal/models"
)

const notAvailable = "N/A"

var validate = validator.New()

// Temperature returns the sampling temperature for a tone. Lighter tones
// get a little more room.
func Temperature(tone models.ResponseTone) float32 {
	switch tone {
	case models.ToneFunny, models.ToneFriendly:
		return 0.3
	case models.ToneProfessional:
		return 0.1
	}
	return 0.1
}

// Build validates the report and renders it. The same report always
// yields the same prompt.
func Build(report models.PatientReport) (models.Prompt, error) {
	report.Symptoms = strings.TrimSpace(report.Symptoms)
	report.Duration = strings.TrimSpace(report.Duration)
	if err := Validate(report); err != nil {
		return models.Prompt{}, err
	}

	age := notAvailable
	if report.AgeYears != nil {
		age = strconv.Itoa(*report.AgeYears)
	}
	sex := notAvailable
	if report.SexAtBirth != "" {
		sex = string(report.SexAtBirth)
	}
	duration := notAvailable
	if report.Duration != "" {
		duration = report.Duration
	}

	var b strings.Builder
	b.WriteString("The patient provided following information:\n")
	fmt.Fprintf(&b, "Age in years: %s.\n", age)
	fmt.Fprintf(&b, "Sex assigned at birth is: %s.\n", sex)
	fmt.Fprintf(&b, "Symptoms: '%s'\n", report.Symptoms)
	fmt.Fprintf(&b, "Duration of the symptoms: '%s'\n", duration)
	b.WriteString("If patient provided images, please take them in the account when finding appropriate diagnoses.\n")
	b.WriteString("Briefly describe what you see on the images and how it supports/disapproves the diagnoses of your choice.\n")
	b.WriteString("If patient provided images that do not display symptoms of a medical condition or unrelated images, e.g. images ")
	b.WriteString("of objects instead of body parts, do NOT take them into account and inform the patient about it.\n")
	fmt.Fprintf(&b, "Answer shortly, and use %s tone.\n", report.ResponseTone)
	b.WriteString("Answer using the same subject and framing as the input.\n")
	b.WriteString("For example, if the input uses 'I' pronoun, respond with using 'you'.\n")
	b.WriteString("If the input indirectly mentions symptoms of 'the patient', respond indirectly too using 'the patient' in the answer.\n")
	fmt.Fprintf(&b, "Use %s language in the answer, as if you were speaking to an average person aged: %s.\n", report.LanguageStyle, age)
	b.WriteString("What would be the possible diagnosis and what are the recommended steps for the patient to do?\n")
	b.WriteString("Please provide at least one possible diagnose, with considering all other possible diagnoses.\n")

	return models.Prompt{
		SystemInstruction: fmt.Sprintf("You are a %s doctor.", report.ResponseTone),
		Query:             b.String(),
		Temperature:       Temperature(report.ResponseTone),
	}, nil
}

// Validate checks field bounds and enum membership.
func Validate(report models.PatientReport) error {
	err := validate.Struct(report)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Wrap(apperr.BadInput, "Invalid input", err)
	}
	return apperr.Wrap(apperr.BadInput, fieldMessage(verrs[0]), err)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Field() {
	case "Symptoms":
		return "Symptoms must be between 5 and 500 characters long"
	case "Duration":
		return "Duration must be between 5 and 250 characters long"
	case "AgeYears":
		return "Age must be a non-negative number"
	case "ResponseTone":
		return "Response tone must be one of: professional, friendly, funny"
	case "LanguageStyle":
		return "Language style must be one of: medical, simple"
	case "SexAtBirth":
		return "Sex at birth must be one of: male, female, intersex"
	}
	return "Invalid input"
}
