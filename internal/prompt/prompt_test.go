package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayush/helsa/backend/internal/apperr"
	"github.com/ayush/helsa/backend/internal/models"
)

func intPtr(v int) *int { return &v }

func baseReport() models.PatientReport {
	return models.PatientReport{
		ResponseTone:  models.ToneProfessional,
		LanguageStyle: models.StyleSimple,
		Symptoms:      "I have a headache and a runny nose",
	}
}

func TestBuild(t *testing.T) {
	r := baseReport()
	r.AgeYears = intPtr(34)
	r.SexAtBirth = models.SexFemale
	r.Duration = "three days"

	p, err := Build(r)
	require.NoError(t, err)

	assert.Equal(t, "You are a professional doctor.", p.SystemInstruction)
	assert.Equal(t, float32(0.1), p.Temperature)
	assert.Contains(t, p.Query, "Age in years: 34.")
	assert.Contains(t, p.Query, "Sex assigned at birth is: female.")
	assert.Contains(t, p.Query, "Symptoms: 'I have a headache and a runny nose'")
	assert.Contains(t, p.Query, "Duration of the symptoms: 'three days'")
	assert.Contains(t, p.Query, "Use simple language")
	assert.Contains(t, p.Query, "at least one possible diagnose")
	assert.Contains(t, p.Query, "respond with using 'you'")
}

func TestBuild_MissingValuesAreNA(t *testing.T) {
	p, err := Build(baseReport())
	require.NoError(t, err)
	assert.Contains(t, p.Query, "Age in years: N/A.")
	assert.Contains(t, p.Query, "Sex assigned at birth is: N/A.")
	assert.Contains(t, p.Query, "Duration of the symptoms: 'N/A'")
}

func TestBuild_AgeZeroIsRendered(t *testing.T) {
	r := baseReport()
	r.AgeYears = intPtr(0)
	p, err := Build(r)
	require.NoError(t, err)
	assert.Contains(t, p.Query, "Age in years: 0.")
}

func TestBuild_Deterministic(t *testing.T) {
	r := baseReport()
	r.ResponseTone = models.ToneFunny
	r.LanguageStyle = models.StyleMedical
	a, err := Build(r)
	require.NoError(t, err)
	b, err := Build(r)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestTemperature(t *testing.T) {
	tests := map[models.ResponseTone]float32{
		models.ToneProfessional: 0.1,
		models.ToneFriendly:     0.3,
		models.ToneFunny:        0.3,
	}
	for tone, want := range tests {
		r := baseReport()
		r.ResponseTone = tone
		p, err := Build(r)
		require.NoError(t, err)
		assert.Equal(t, want, p.Temperature, string(tone))
		assert.Equal(t, "You are a "+string(tone)+" doctor.", p.SystemInstruction)
	}
}

func TestBuild_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*models.PatientReport)
		wantMsg string
	}{
		{"short symptoms", func(r *models.PatientReport) { r.Symptoms = "ache" }, "Symptoms must be between 5 and 500 characters long"},
		{"whitespace symptoms", func(r *models.PatientReport) { r.Symptoms = "   ab   " }, "Symptoms must be between 5 and 500 characters long"},
		{"long symptoms", func(r *models.PatientReport) { r.Symptoms = strings.Repeat("a", 501) }, "Symptoms must be between 5 and 500 characters long"},
		{"short duration", func(r *models.PatientReport) { r.Duration = "2d" }, "Duration must be between 5 and 250 characters long"},
		{"negative age", func(r *models.PatientReport) { r.AgeYears = intPtr(-1) }, "Age must be a non-negative number"},
		{"unknown tone", func(r *models.PatientReport) { r.ResponseTone = "sarcastic" }, "Response tone must be one of: professional, friendly, funny"},
		{"unknown style", func(r *models.PatientReport) { r.LanguageStyle = "legal" }, "Language style must be one of: medical, simple"},
		{"unknown sex", func(r *models.PatientReport) { r.SexAtBirth = "other" }, "Sex at birth must be one of: male, female, intersex"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := baseReport()
			tt.mutate(&r)
			_, err := Build(r)
			var ae *apperr.Error
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, apperr.BadInput, ae.Kind)
			assert.Equal(t, tt.wantMsg, ae.Message)
		})
	}
}

func TestBuild_BoundaryLengths(t *testing.T) {
	r := baseReport()
	r.Symptoms = strings.Repeat("a", 5)
	_, err := Build(r)
	assert.NoError(t, err)

	r.Symptoms = strings.Repeat("a", 500)
	r.Duration = strings.Repeat("b", 250)
	_, err = Build(r)
	assert.NoError(t, err)
}
