package mutation

import (
	"encoding/json"
	"testing"
)

func decode(t *testing.T, raw string) map[string]any {
	t.Helper()
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		t.Fatalf("unmarshal fixture: %v", err)
	}
	return obj
}

func TestNormalizeCurrentShape(t *testing.T) {
	obj := decode(t, `{
		"explanation": "Made the headline bolder.",
		"updatedDocument": "<h1><b>Hi</b></h1>",
		"editsApplied": 2,
		"suggestions": ["Change the hero image"]
	}`)

	resp := Normalize(obj)
	if resp.Explanation != "Made the headline bolder." {
		t.Fatalf("Explanation = %q", resp.Explanation)
	}
	if !resp.HasDocument || resp.UpdatedDocument != "<h1><b>Hi</b></h1>" {
		t.Fatalf("UpdatedDocument = %q, HasDocument = %v", resp.UpdatedDocument, resp.HasDocument)
	}
	if resp.EditCount != 2 {
		t.Fatalf("EditCount = %d, want 2", resp.EditCount)
	}
	if len(resp.SuggestedActions) != 1 || resp.SuggestedActions[0] != "Change the hero image" {
		t.Fatalf("SuggestedActions = %v", resp.SuggestedActions)
	}
}

func TestNormalizeLegacyFieldSpellings(t *testing.T) {
	obj := decode(t, `{
		"response": "Here's an idea instead.",
		"suggestedOptions": [
			{"id": "opt-1", "label": "Use a darker blue"},
			{"id": "opt-2", "label": "Keep it as-is"}
		]
	}`)

	resp := Normalize(obj)
	if resp.Explanation != "Here's an idea instead." {
		t.Fatalf("Explanation = %q, legacy 'response' field not honored", resp.Explanation)
	}
	if resp.HasDocument {
		t.Fatalf("HasDocument = true for a response without updatedDocument")
	}
	if len(resp.ClarifyingOptions) != 2 || resp.ClarifyingOptions[0].ID != "opt-1" {
		t.Fatalf("ClarifyingOptions = %v", resp.ClarifyingOptions)
	}
}

func TestNormalizePrefersPrimarySpelling(t *testing.T) {
	obj := decode(t, `{"explanation": "primary", "response": "legacy"}`)
	if got := Normalize(obj).Explanation; got != "primary" {
		t.Fatalf("Explanation = %q, want %q", got, "primary")
	}
}

func TestNormalizeBareStringOptions(t *testing.T) {
	obj := decode(t, `{"suggestedOptions": ["Option A", "Option B"]}`)
	resp := Normalize(obj)
	if len(resp.ClarifyingOptions) != 2 || resp.ClarifyingOptions[1].Label != "Option B" {
		t.Fatalf("ClarifyingOptions = %v", resp.ClarifyingOptions)
	}
}

func TestNormalizeEmptyObject(t *testing.T) {
	resp := Normalize(map[string]any{})
	if resp.HasDocument || resp.Explanation != "" || resp.SuggestedActions != nil {
		t.Fatalf("Normalize(empty) = %+v, want zero response", resp)
	}
}
