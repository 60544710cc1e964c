package vision

import (
	"encoding/json"
	"strings"

	"siteproof/internal/domain"
)

// ParseAssessment extracts a structured analysis from a model response.
// Models occasionally wrap the JSON in markdown fences or lead with prose, so
// the parser looks for the outermost object instead of unmarshalling the raw
// text. Returns ErrEmptyAssessment when no usable analysis is present.
func ParseAssessment(raw string) (*domain.Analysis, error) {
	obj := extractObject(raw)
	if obj == "" {
		return nil, ErrEmptyAssessment
	}

	var parsed struct {
		Description       string   `json:"description"`
		Tags              []string `json:"tags"`
		DamageDetected    bool     `json:"damage_detected"`
		Severity          string   `json:"severity"`
		Confidence        float64  `json:"confidence"`
		RecommendedAction string   `json:"recommended_action"`
	}
	if err := json.Unmarshal([]byte(obj), &parsed); err != nil {
		return nil, ErrEmptyAssessment
	}

	analysis := &domain.Analysis{
		Description:       strings.TrimSpace(parsed.Description),
		Tags:              cleanTags(parsed.Tags),
		DamageDetected:    parsed.DamageDetected,
		Severity:          normalizeSeverity(parsed.Severity, parsed.DamageDetected),
		Confidence:        clamp01(parsed.Confidence),
		RecommendedAction: strings.TrimSpace(parsed.RecommendedAction),
	}
	if analysis.Empty() {
		return nil, ErrEmptyAssessment
	}
	return analysis, nil
}

// extractObject returns the outermost {...} in raw, or "" when there is none.
func extractObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// normalizeSeverity maps free-form severity strings onto the known scale.
// Unknown values fall back to moderate when damage was detected so a flagged
// photo is never silently downgraded to "none".
func normalizeSeverity(s string, damaged bool) domain.Severity {
	switch domain.Severity(strings.ToLower(strings.TrimSpace(s))) {
	case domain.SeverityNone:
		return domain.SeverityNone
	case domain.SeverityMinor:
		return domain.SeverityMinor
	case domain.SeverityModerate:
		return domain.SeverityModerate
	case domain.SeveritySevere:
		return domain.SeveritySevere
	}
	if damaged {
		return domain.SeverityModerate
	}
	return domain.SeverityNone
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
