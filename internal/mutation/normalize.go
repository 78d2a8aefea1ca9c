package mutation

import "strings"

// Normalize maps the known response shape variants of the mutation service
// into the canonical Response. The service has spelled its fields differently
// across versions (explanation vs response, suggestions vs suggestedOptions),
// so every accepted spelling is honored here and nowhere else.
func Normalize(obj map[string]any) Response {
	resp := Response{
		Explanation: firstString(obj, "explanation", "response"),
		EditCount:   intField(obj, "editsApplied", "editCount"),
	}

	if doc, ok := stringField(obj, "updatedDocument"); ok {
		resp.UpdatedDocument = doc
		resp.HasDocument = true
	}

	resp.SuggestedActions = stringSlice(obj, "suggestions", "suggestedNextActions")
	resp.ClarifyingOptions = optionSlice(obj, "suggestedOptions", "clarifyingOptions")

	return resp
}

func firstString(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := stringField(obj, k); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

func stringField(obj map[string]any, key string) (string, bool) {
	v, ok := obj[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func intField(obj map[string]any, keys ...string) int {
	for _, k := range keys {
		if v, ok := obj[k]; ok {
			if f, ok := v.(float64); ok {
				return int(f)
			}
		}
	}
	return 0
}

func stringSlice(obj map[string]any, keys ...string) []string {
	for _, k := range keys {
		raw, ok := obj[k].([]any)
		if !ok {
			continue
		}
		var out []string
		for _, item := range raw {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

func optionSlice(obj map[string]any, keys ...string) []Option {
	for _, k := range keys {
		raw, ok := obj[k].([]any)
		if !ok {
			continue
		}
		var out []Option
		for _, item := range raw {
			m, ok := item.(map[string]any)
			if !ok {
				// Bare strings are accepted as label-only options.
				if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
					out = append(out, Option{Label: s})
				}
				continue
			}
			opt := Option{
				ID:    firstString(m, "id", "optionId"),
				Label: firstString(m, "label", "text"),
			}
			if opt.Label != "" {
				out = append(out, opt)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}
