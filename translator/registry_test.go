package translator

import (
	"testing"
)

func TestRegistryBuiltinPairs(t *testing.T) {
	r := NewRegistry()
	for _, pair := range [][2]string{
		{FormatOpenAI, FormatGemini},
		{FormatGemini, FormatOpenAI},
	} {
		if _, ok := r.Lookup(pair[0], pair[1]); !ok {
			t.Errorf("pair %s -> %s not registered", pair[0], pair[1])
		}
	}
}

func TestRegistryUnknownPair(t *testing.T) {
	r := NewRegistry()
	res := r.TranslateRequest(FormatOpenAI, FormatClaude, map[string]any{})
	if res.Success || res.ErrorCode != ErrCodeTranslatorNotFound {
		t.Fatalf("expected translator_not_found, got %+v", res)
	}
	res = r.TranslateResponse(FormatOpenAI, FormatClaude, map[string]any{})
	if res.Success || res.ErrorCode != ErrCodeTranslatorNotFound {
		t.Fatalf("expected translator_not_found for response, got %+v", res)
	}
}

// A client speaking OpenAI calls a Gemini upstream: the request goes out as
// Gemini and the Gemini response comes back in OpenAI shape.
func TestRegistryRoundTrip(t *testing.T) {
	r := NewRegistry()

	req := r.TranslateRequest(FormatOpenAI, FormatGemini, map[string]any{
		"model":       "gpt-4",
		"messages":    []any{map[string]any{"role": "user", "content": "hi"}},
		"temperature": 0.5,
	})
	if !req.Success {
		t.Fatalf("request translation failed: %s", req.Error)
	}
	if req.Data["model"] != "gemini-pro" || req.Data["temperature"] != 0.5 {
		t.Fatalf("outbound request = %v", req.Data)
	}

	resp := r.TranslateResponse(FormatOpenAI, FormatGemini, map[string]any{
		"candidates": []any{
			map[string]any{
				"content": map[string]any{
					"role":  "model",
					"parts": []any{map[string]any{"text": "hello"}},
				},
				"finishReason": "STOP",
			},
		},
		"usageMetadata": map[string]any{
			"promptTokenCount":     float64(3),
			"candidatesTokenCount": float64(1),
			"totalTokenCount":      float64(4),
		},
	})
	if !resp.Success {
		t.Fatalf("response translation failed: %s", resp.Error)
	}

	choices := resp.Data["choices"].([]any)
	if len(choices) != 1 {
		t.Fatalf("choices = %d, want 1", len(choices))
	}
	msg := choices[0].(map[string]any)["message"].(map[string]any)
	if msg["content"] != "hello" {
		t.Fatalf("round trip content = %v", msg["content"])
	}
	usage := resp.Data["usage"].(map[string]any)
	if usage["total_tokens"] != float64(4) {
		t.Fatalf("round trip usage = %v", usage)
	}
}

func TestRegistryConversions(t *testing.T) {
	r := NewRegistry()
	conv := r.Conversions()
	if len(conv[FormatOpenAI]) == 0 || len(conv[FormatGemini]) == 0 {
		t.Fatalf("conversions = %v", conv)
	}
}
