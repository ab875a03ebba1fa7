package translator

import (
	"errors"
	"fmt"
)

// Canonical chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleModel     = "model"
)

// Message is the canonical chat message both wire formats reduce to:
// a role, the text content, and an optional participant name.
type Message struct {
	Role    string
	Content string
	Name    string
}

// extractOpenAIMessages pulls canonical messages out of an OpenAI
// chat-completions request body.
func extractOpenAIMessages(data map[string]any) ([]Message, error) {
	raw, ok := data["messages"]
	if !ok {
		return nil, errors.New("request has no messages")
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, errors.New("messages is not an array")
	}

	messages := make([]Message, 0, len(list))
	for i, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("message %d is not an object", i)
		}
		msg := Message{Role: RoleUser}
		if role, ok := obj["role"].(string); ok && role != "" {
			msg.Role = role
		}
		if content, ok := obj["content"].(string); ok {
			msg.Content = content
		}
		if name, ok := obj["name"].(string); ok {
			msg.Name = name
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// extractGeminiMessages pulls canonical messages out of a Gemini
// generateContent request body. Each text part becomes one message
// carrying its content's role.
func extractGeminiMessages(data map[string]any) ([]Message, error) {
	raw, ok := data["contents"]
	if !ok {
		return nil, errors.New("request has no contents")
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, errors.New("contents is not an array")
	}

	var messages []Message
	for i, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("content %d is not an object", i)
		}
		role := RoleUser
		if r, ok := obj["role"].(string); ok && r != "" {
			role = r
		}
		parts, ok := obj["parts"].([]any)
		if !ok {
			continue
		}
		for _, p := range parts {
			part, ok := p.(map[string]any)
			if !ok {
				continue
			}
			if text, ok := part["text"].(string); ok {
				messages = append(messages, Message{Role: role, Content: text})
			}
		}
	}
	return messages, nil
}
