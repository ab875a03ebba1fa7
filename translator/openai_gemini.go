package translator

import (
	"github.com/google/uuid"
)

// Model-name mapping between the two ecosystems. Unknown models fall back
// to the pair's default rather than failing.
var (
	openaiToGeminiModels = map[string]string{
		"gpt-3.5-turbo": "gemini-pro",
		"gpt-4":         "gemini-pro",
		"gpt-4-turbo":   "gemini-1.5-pro",
		"gpt-4o":        "gemini-1.5-flash",
	}
	geminiToOpenAIModels = map[string]string{
		"gemini-pro":       "gpt-3.5-turbo",
		"gemini-1.5-pro":   "gpt-4-turbo",
		"gemini-1.5-flash": "gpt-4o",
	}
)

const (
	defaultGeminiModel = "gemini-pro"
	defaultOpenAIModel = "gpt-3.5-turbo"
)

// OpenAIToGemini translates OpenAI chat-completions payloads into Gemini
// generateContent payloads.
type OpenAIToGemini struct{}

func NewOpenAIToGemini() *OpenAIToGemini { return &OpenAIToGemini{} }

func (t *OpenAIToGemini) SourceFormat() string { return FormatOpenAI }
func (t *OpenAIToGemini) TargetFormat() string { return FormatGemini }

func (t *OpenAIToGemini) TranslateRequest(data map[string]any) *Result {
	messages, err := extractOpenAIMessages(data)
	if err != nil {
		return errorResult(ErrCodeTranslationFailed, "failed to translate request: "+err.Error(),
			FormatOpenAI, FormatGemini)
	}

	out := map[string]any{
		"contents": geminiContents(messages),
	}
	if model, ok := data["model"].(string); ok {
		out["model"] = mapModel(model, openaiToGeminiModels, defaultGeminiModel)
	}
	copyParam(data, out, "temperature", "temperature")
	copyParam(data, out, "max_tokens", "maxOutputTokens")
	copyParam(data, out, "top_p", "topP")
	copyParam(data, out, "frequency_penalty", "frequencyPenalty")
	copyParam(data, out, "presence_penalty", "presencePenalty")
	copyParam(data, out, "stop", "stopSequences")

	return successResult(out, FormatOpenAI, FormatGemini)
}

// TranslateResponse converts an OpenAI chat-completions response into the
// Gemini candidates shape.
func (t *OpenAIToGemini) TranslateResponse(data map[string]any) *Result {
	choices, _ := data["choices"].([]any)
	candidates := make([]any, 0, len(choices))
	for _, c := range choices {
		choice, ok := c.(map[string]any)
		if !ok {
			continue
		}
		content := ""
		if msg, ok := choice["message"].(map[string]any); ok {
			content, _ = msg["content"].(string)
		}
		candidate := map[string]any{
			"content": map[string]any{
				"role":  RoleModel,
				"parts": []any{map[string]any{"text": content}},
			},
		}
		if reason, ok := choice["finish_reason"].(string); ok {
			candidate["finishReason"] = reason
		}
		candidates = append(candidates, candidate)
	}

	out := map[string]any{"candidates": candidates}
	if usage, ok := data["usage"].(map[string]any); ok {
		out["usageMetadata"] = map[string]any{
			"promptTokenCount":     numberOr(usage["prompt_tokens"], 0),
			"candidatesTokenCount": numberOr(usage["completion_tokens"], 0),
			"totalTokenCount":      numberOr(usage["total_tokens"], 0),
		}
	}
	return successResult(out, FormatOpenAI, FormatGemini)
}

// GeminiToOpenAI translates Gemini generateContent payloads into OpenAI
// chat-completions payloads.
type GeminiToOpenAI struct{}

func NewGeminiToOpenAI() *GeminiToOpenAI { return &GeminiToOpenAI{} }

func (t *GeminiToOpenAI) SourceFormat() string { return FormatGemini }
func (t *GeminiToOpenAI) TargetFormat() string { return FormatOpenAI }

func (t *GeminiToOpenAI) TranslateRequest(data map[string]any) *Result {
	messages, err := extractGeminiMessages(data)
	if err != nil {
		return errorResult(ErrCodeTranslationFailed, "failed to translate request: "+err.Error(),
			FormatGemini, FormatOpenAI)
	}

	list := make([]any, 0, len(messages))
	for _, msg := range messages {
		role := msg.Role
		if role == RoleModel {
			role = RoleAssistant
		}
		list = append(list, map[string]any{"role": role, "content": msg.Content})
	}

	out := map[string]any{"messages": list}
	if model, ok := data["model"].(string); ok {
		out["model"] = mapModel(model, geminiToOpenAIModels, defaultOpenAIModel)
	}
	copyParam(data, out, "temperature", "temperature")
	copyParam(data, out, "maxOutputTokens", "max_tokens")
	copyParam(data, out, "topP", "top_p")
	copyParam(data, out, "frequencyPenalty", "frequency_penalty")
	copyParam(data, out, "presencePenalty", "presence_penalty")
	copyParam(data, out, "stopSequences", "stop")

	return successResult(out, FormatGemini, FormatOpenAI)
}

// TranslateResponse converts a Gemini candidates response into the OpenAI
// choices shape.
func (t *GeminiToOpenAI) TranslateResponse(data map[string]any) *Result {
	candidates, _ := data["candidates"].([]any)
	choices := make([]any, 0, len(candidates))
	for _, c := range candidates {
		candidate, ok := c.(map[string]any)
		if !ok {
			continue
		}
		content, ok := candidate["content"].(map[string]any)
		if !ok {
			continue
		}
		parts, ok := content["parts"].([]any)
		if !ok {
			continue
		}
		for _, p := range parts {
			part, ok := p.(map[string]any)
			if !ok {
				continue
			}
			text, ok := part["text"].(string)
			if !ok {
				continue
			}
			choice := map[string]any{
				"index": len(choices),
				"message": map[string]any{
					"role":    RoleAssistant,
					"content": text,
				},
				"finish_reason": "stop",
			}
			if reason, ok := candidate["finishReason"].(string); ok {
				choice["finish_reason"] = reason
			}
			choices = append(choices, choice)
		}
	}

	id, ok := data["id"].(string)
	if !ok || id == "" {
		id = "chatcmpl-" + uuid.NewString()
	}
	model, ok := data["model"].(string)
	if !ok || model == "" {
		model = defaultGeminiModel
	}

	out := map[string]any{
		"id":      id,
		"object":  "chat.completion",
		"created": numberOr(data["created"], 0),
		"model":   model,
		"choices": choices,
	}
	usage := map[string]any{
		"prompt_tokens":     float64(0),
		"completion_tokens": float64(0),
		"total_tokens":      float64(0),
	}
	if meta, ok := data["usageMetadata"].(map[string]any); ok {
		usage["prompt_tokens"] = numberOr(meta["promptTokenCount"], 0)
		usage["completion_tokens"] = numberOr(meta["candidatesTokenCount"], 0)
		usage["total_tokens"] = numberOr(meta["totalTokenCount"], 0)
	}
	out["usage"] = usage

	return successResult(out, FormatGemini, FormatOpenAI)
}

// geminiContents encodes canonical messages as Gemini contents. Gemini has
// no system role: a system message is prepended to the preceding user
// message's text, and a system message with no user message to attach to
// is dropped.
func geminiContents(messages []Message) []any {
	contents := make([]any, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			if len(contents) == 0 {
				continue
			}
			last := contents[len(contents)-1].(map[string]any)
			if last["role"] != RoleUser {
				continue
			}
			parts := last["parts"].([]any)
			part := parts[0].(map[string]any)
			part["text"] = msg.Content + "\n\n" + part["text"].(string)
		case RoleAssistant, RoleModel:
			contents = append(contents, map[string]any{
				"role":  RoleModel,
				"parts": []any{map[string]any{"text": msg.Content}},
			})
		default:
			contents = append(contents, map[string]any{
				"role":  RoleUser,
				"parts": []any{map[string]any{"text": msg.Content}},
			})
		}
	}
	return contents
}

func mapModel(model string, table map[string]string, fallback string) string {
	if mapped, ok := table[model]; ok {
		return mapped
	}
	return fallback
}

func copyParam(src, dst map[string]any, from, to string) {
	if v, ok := src[from]; ok {
		dst[to] = v
	}
}

// numberOr normalizes decoded JSON numbers, which arrive as float64.
func numberOr(v any, fallback float64) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return fallback
	}
}
