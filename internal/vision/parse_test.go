package vision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siteproof/internal/domain"
)

func TestParseAssessment_BareJSON(t *testing.T) {
	raw := `{
		"description": "Cracked foundation wall along the east side.",
		"tags": ["Foundation", " crack ", ""],
		"damage_detected": true,
		"severity": "severe",
		"confidence": 0.92,
		"recommended_action": "Engage a structural engineer."
	}`

	analysis, err := ParseAssessment(raw)
	require.NoError(t, err)

	assert.Equal(t, "Cracked foundation wall along the east side.", analysis.Description)
	assert.Equal(t, []string{"foundation", "crack"}, analysis.Tags)
	assert.True(t, analysis.DamageDetected)
	assert.Equal(t, domain.SeveritySevere, analysis.Severity)
	assert.InDelta(t, 0.92, analysis.Confidence, 1e-9)
	assert.Equal(t, "Engage a structural engineer.", analysis.RecommendedAction)
}

func TestParseAssessment_FencedWithProse(t *testing.T) {
	raw := "Here is the assessment you asked for:\n```json\n" +
		`{"description": "Intact roofline, no visible defects.", "tags": [], "damage_detected": false, "severity": "none", "confidence": 0.8, "recommended_action": ""}` +
		"\n```\nLet me know if you need more detail."

	analysis, err := ParseAssessment(raw)
	require.NoError(t, err)
	assert.Equal(t, "Intact roofline, no visible defects.", analysis.Description)
	assert.False(t, analysis.DamageDetected)
	assert.Equal(t, domain.SeverityNone, analysis.Severity)
}

func TestParseAssessment_UnknownSeverityWithDamage(t *testing.T) {
	raw := `{"description": "Water staining on ceiling.", "damage_detected": true, "severity": "significant", "confidence": 1.7}`

	analysis, err := ParseAssessment(raw)
	require.NoError(t, err)

	// Unknown severity on a damaged photo must not collapse to "none".
	assert.Equal(t, domain.SeverityModerate, analysis.Severity)
	assert.Equal(t, 1.0, analysis.Confidence)
}

func TestParseAssessment_NoJSON(t *testing.T) {
	_, err := ParseAssessment("I cannot analyze this image.")
	assert.ErrorIs(t, err, ErrEmptyAssessment)
}

func TestParseAssessment_EmptyPayload(t *testing.T) {
	_, err := ParseAssessment(`{"description": "", "tags": [], "damage_detected": false}`)
	assert.ErrorIs(t, err, ErrEmptyAssessment)
}

func TestParseAssessment_MalformedJSON(t *testing.T) {
	_, err := ParseAssessment(`{"description": "truncated`)
	assert.ErrorIs(t, err, ErrEmptyAssessment)
}
