package claude

import (
	"context"
	"errors"
	"fmt"

	"github.com/liushuangls/go-anthropic/v2"

	"siteproof/internal/domain"
	"siteproof/internal/vision"
)

// messagesAPI is the slice of the Anthropic client the assessor uses.
// Tests substitute a fake; production code passes *anthropic.Client.
type messagesAPI interface {
	CreateMessages(ctx context.Context, request anthropic.MessagesRequest) (anthropic.MessagesResponse, error)
}

// Assessor implements vision.Provider on top of the Anthropic Messages API.
type Assessor struct {
	api       messagesAPI
	model     anthropic.Model
	maxTokens int
}

func New(apiKey, model string, maxTokens int) *Assessor {
	return &Assessor{
		api:       anthropic.NewClient(apiKey),
		model:     anthropic.Model(model),
		maxTokens: maxTokens,
	}
}

func (a *Assessor) Assess(ctx context.Context, img vision.Image) (*domain.Analysis, error) {
	resp, err := a.api.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		Messages: []anthropic.Message{
			{
				Role: anthropic.RoleUser,
				Content: []anthropic.MessageContent{
					anthropic.NewImageMessageContent(
						anthropic.NewMessageContentSource(
							anthropic.MessagesContentSourceTypeBase64,
							normalizeMediaType(img.MediaType),
							img.Data,
						),
					),
					anthropic.NewTextMessageContent(vision.AssessmentPrompt),
				},
			},
		},
	})
	if err != nil {
		var apiErr *anthropic.APIError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("anthropic %s: %s", apiErr.Type, apiErr.Message)
		}
		return nil, fmt.Errorf("anthropic request: %w", err)
	}

	var text string
	for _, content := range resp.Content {
		if t := content.GetText(); t != "" {
			text = t
			break
		}
	}
	if text == "" {
		return nil, vision.ErrEmptyAssessment
	}

	return vision.ParseAssessment(text)
}

// normalizeMediaType maps arbitrary MIME types onto the four the Messages API
// accepts, coercing anything else to jpeg.
func normalizeMediaType(mediaType string) string {
	switch mediaType {
	case "image/png", "image/gif", "image/webp":
		return mediaType
	default:
		return "image/jpeg"
	}
}
