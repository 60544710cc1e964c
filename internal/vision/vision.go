package vision

import (
	"context"
	"errors"

	"siteproof/internal/domain"
)

// ErrEmptyAssessment is returned when the provider answered but produced no
// usable analysis. Callers must treat this as a failure, not a success.
var ErrEmptyAssessment = errors.New("vision: empty assessment")

// Image is one photo handed to a provider. MediaType must be an image MIME
// type; providers coerce unsupported types to jpeg.
type Image struct {
	Data      []byte
	MediaType string
}

// Provider assesses damage in a single inspection photo.
type Provider interface {
	Assess(ctx context.Context, img Image) (*domain.Analysis, error)
}

// AssessmentPrompt is the shared prompt used by all vision providers. The
// model is told to answer with bare JSON; ParseAssessment tolerates fenced or
// prose-wrapped responses anyway.
const AssessmentPrompt = `You are reviewing a construction site inspection photo for a contractor.
Respond with a single JSON object and nothing else, using exactly these keys:
{
  "description": "one or two sentences describing what the photo shows",
  "tags": ["short lowercase labels, e.g. roof, crack, water-damage"],
  "damage_detected": true or false,
  "severity": "none" | "minor" | "moderate" | "severe",
  "confidence": 0.0 to 1.0,
  "recommended_action": "next step for the contractor, empty string if none"
}`
