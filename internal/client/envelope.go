package client

import "siteproof/internal/domain"

// The server's response envelope is not treated as stable: results have been
// seen flat, nested under data, and as a bare array. Each shape gets its own
// pure probe; ExtractResults runs them in order and the first hit wins.

type envelopeProbe func(body any) ([]map[string]any, bool)

var envelopeProbes = []envelopeProbe{
	probeFlatResults,
	probeNested,
	probeBareArray,
}

// ExtractResults pulls the per-item result array out of a response body of
// any known shape. ok is false when no probe recognizes the body; an empty
// array is a valid (if useless) result and returns ok with length zero.
func ExtractResults(body any) ([]map[string]any, bool) {
	for _, probe := range envelopeProbes {
		if items, ok := probe(body); ok {
			return items, true
		}
	}
	return nil, false
}

// ExtractDescriptors is ExtractResults plus the single-object shapes the
// chunked-complete endpoint answers with ({data: {photo: {...}}}).
func ExtractDescriptors(body any) ([]map[string]any, bool) {
	if items, ok := ExtractResults(body); ok {
		return items, true
	}
	return probeSinglePhoto(body)
}

func probeSinglePhoto(body any) ([]map[string]any, bool) {
	obj, ok := body.(map[string]any)
	if !ok {
		return nil, false
	}
	if data, ok := obj["data"].(map[string]any); ok {
		if m, ok := data["photo"].(map[string]any); ok {
			return []map[string]any{m}, true
		}
	}
	if m, ok := obj["photo"].(map[string]any); ok {
		return []map[string]any{m}, true
	}
	return nil, false
}

func probeFlatResults(body any) ([]map[string]any, bool) {
	obj, ok := body.(map[string]any)
	if !ok {
		return nil, false
	}
	return itemArray(obj["results"])
}

func probeNested(body any) ([]map[string]any, bool) {
	obj, ok := body.(map[string]any)
	if !ok {
		return nil, false
	}
	if data, ok := obj["data"].(map[string]any); ok {
		if items, ok := itemArray(data["results"]); ok {
			return items, true
		}
		if items, ok := itemArray(data["photos"]); ok {
			return items, true
		}
	}
	return itemArray(obj["photos"])
}

func probeBareArray(body any) ([]map[string]any, bool) {
	arr, ok := body.([]any)
	if !ok {
		return nil, false
	}
	return itemArray(arr)
}

// itemArray converts a decoded JSON array into result objects. A single
// non-object element disqualifies the whole candidate, so a probe never
// half-matches.
func itemArray(v any) ([]map[string]any, bool) {
	arr, ok := v.([]any)
	if !ok {
		return nil, false
	}
	items := make([]map[string]any, 0, len(arr))
	for _, e := range arr {
		m, ok := e.(map[string]any)
		if !ok {
			return nil, false
		}
		items = append(items, m)
	}
	return items, true
}

// Result-entry field helpers. Shapes vary between snake_case and camelCase;
// these probe both.

func entryString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func entryBool(m map[string]any, keys ...string) bool {
	for _, k := range keys {
		if b, ok := m[k].(bool); ok {
			return b
		}
	}
	return false
}

func entryFloat(m map[string]any, keys ...string) float64 {
	for _, k := range keys {
		if f, ok := m[k].(float64); ok {
			return f
		}
	}
	return 0
}

func entryStrings(m map[string]any, keys ...string) []string {
	for _, k := range keys {
		arr, ok := m[k].([]any)
		if !ok {
			continue
		}
		var out []string
		for _, e := range arr {
			if s, ok := e.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// entryPhotoID extracts the echoed photo id from a result entry, if any.
func entryPhotoID(m map[string]any) string {
	return entryString(m, "photo_id", "photoId", "id", "_id")
}

// entryClientID extracts the echoed client id from an upload descriptor.
func entryClientID(m map[string]any) string {
	return entryString(m, "client_id", "clientId")
}

// DecodeAnalysis maps a result entry onto the canonical analysis struct,
// tolerating both field casings. When the entry nests the payload under
// "analysis" that object is used; a bare entry (positional arrays) is treated
// as the payload itself. Returns nil when nothing usable is present.
func DecodeAnalysis(entry map[string]any) *domain.Analysis {
	payload := entry
	if sub, ok := entry["analysis"].(map[string]any); ok {
		payload = sub
	}

	a := &domain.Analysis{
		Description:       entryString(payload, "description"),
		Tags:              entryStrings(payload, "tags"),
		DamageDetected:    entryBool(payload, "damage_detected", "damageDetected"),
		Severity:          domain.Severity(entryString(payload, "severity")),
		Confidence:        entryFloat(payload, "confidence"),
		RecommendedAction: entryString(payload, "recommended_action", "recommendedAction"),
	}
	if a.Empty() {
		return nil
	}
	return a
}
