package diagnose

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/ayush/helsa/backend/internal/apperr"
	"github.com/ayush/helsa/backend/internal/intake"
	"github.com/ayush/helsa/backend/internal/models"
)

// Client-facing messages for each failure class of the model call.
const (
	MsgRequestFailed   = "Requesting diagnose failed, please try again later."
	MsgValidationError = "Invalid output from AI service. Please try again later."
	MsgAPIError        = "AI service is not available. Please try again later."
	MsgRateLimit       = "Too many requests. Please wait and retry later."
	MsgBadRequest      = "Invalid input"
	MsgAuthentication  = "Authentication with AI service failed."
	MsgUnexpected      = "Unexpected error occurred during obtaining diagnoses from AI service."
)

const schemaName = "doctors_response"

// ChatClient is the subset of the OpenAI client used here.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Requester asks the language model for diagnoses.
type Requester struct {
	client ChatClient
	model  string
}

func NewRequester(client ChatClient, model string) *Requester {
	return &Requester{client: client, model: model}
}

// Model returns the configured model name.
func (r *Requester) Model() string { return r.model }

var responseSchema = jsonschema.Definition{
	Type: jsonschema.Object,
	Properties: map[string]jsonschema.Definition{
		"diagnoses": {
			Type: jsonschema.Array,
			Items: &jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"name":               {Type: jsonschema.String},
					"description":        {Type: jsonschema.String},
					"recommended_action": {Type: jsonschema.String},
				},
				Required:             []string{"name", "description", "recommended_action"},
				AdditionalProperties: false,
			},
		},
	},
	Required:             []string{"diagnoses"},
	AdditionalProperties: false,
}

// RequestDiagnosis sends the prompt and images and decodes the structured
// answer. Every failure comes back as an *apperr.Error whose message is
// safe to show; provider error text is only kept as the wrapped cause.
func (r *Requester) RequestDiagnosis(ctx context.Context, p models.Prompt, images []intake.NormalizedImage, user *models.User) (*models.DoctorsResponse, error) {
	req := openai.ChatCompletionRequest{
		Model:       r.model,
		Temperature: p.Temperature,
		User:        user.ID.String(),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.SystemInstruction},
			userMessage(p.Query, images),
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   schemaName,
				Schema: &responseSchema,
				Strict: true,
			},
		},
	}

	resp, err := r.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, apperr.New(apperr.RequestFailed, MsgRequestFailed)
	}
	msg := resp.Choices[0].Message
	if msg.Refusal != "" {
		return nil, apperr.Wrap(apperr.RequestFailed, MsgRequestFailed, fmt.Errorf("model refused: %s", msg.Refusal))
	}
	if strings.TrimSpace(msg.Content) == "" {
		return nil, apperr.New(apperr.RequestFailed, MsgRequestFailed)
	}

	out, err := decodeResponse(msg.Content)
	if err != nil {
		return nil, apperr.Wrap(apperr.ValidationFailure, MsgValidationError, err)
	}
	if len(out.Diagnoses) == 0 {
		return nil, apperr.New(apperr.RequestFailed, MsgRequestFailed)
	}
	return out, nil
}

func userMessage(query string, images []intake.NormalizedImage) openai.ChatCompletionMessage {
	if len(images) == 0 {
		return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: query}
	}
	parts := make([]openai.ChatMessagePart, 0, len(images)+1)
	parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: query})
	for _, img := range images {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(img.Data),
				Detail: openai.ImageURLDetailHigh,
			},
		})
	}
	return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, MultiContent: parts}
}

type rawDiagnose struct {
	Name              *string `json:"name"`
	Description       *string `json:"description"`
	RecommendedAction *string `json:"recommended_action"`
}

type rawResponse struct {
	Diagnoses *[]rawDiagnose `json:"diagnoses"`
}

var errMissingField = errors.New("missing field")

// decodeResponse parses content and requires every schema field.
func decodeResponse(content string) (*models.DoctorsResponse, error) {
	var raw rawResponse
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("decode model output: %w", err)
	}
	if raw.Diagnoses == nil {
		return nil, fmt.Errorf("diagnoses: %w", errMissingField)
	}

	out := &models.DoctorsResponse{Diagnoses: make([]models.Diagnose, 0, len(*raw.Diagnoses))}
	for i, d := range *raw.Diagnoses {
		if d.Name == nil || d.Description == nil || d.RecommendedAction == nil {
			return nil, fmt.Errorf("diagnoses[%d]: %w", i, errMissingField)
		}
		out.Diagnoses = append(out.Diagnoses, models.Diagnose{
			Name:              *d.Name,
			Description:       *d.Description,
			RecommendedAction: *d.RecommendedAction,
		})
	}
	return out, nil
}

// classify maps a client error onto the failure taxonomy.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Wrap(apperr.UpstreamUnavailable, MsgAPIError, err)
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch {
	case status == http.StatusTooManyRequests:
		return apperr.Wrap(apperr.RateLimited, MsgRateLimit, err)
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return apperr.Wrap(apperr.AuthFailure, MsgAuthentication, err)
	case status == http.StatusBadRequest, status == http.StatusNotFound,
		status == http.StatusConflict, status == http.StatusUnprocessableEntity:
		return apperr.Wrap(apperr.BadInput, MsgBadRequest, err)
	case status >= http.StatusInternalServerError:
		return apperr.Wrap(apperr.UpstreamUnavailable, MsgAPIError, err)
	case status != 0:
		return apperr.Wrap(apperr.Unexpected, MsgUnexpected, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return apperr.Wrap(apperr.UpstreamUnavailable, MsgAPIError, err)
	}
	return apperr.Wrap(apperr.Unexpected, MsgUnexpected, err)
}
