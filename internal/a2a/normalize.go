package a2a

import (
	"encoding/json"
	"errors"
	"strings"
)

// Specialists reply in one of two envelope shapes: a message list
// ({"messages":[{"role","content"}]}) or content parts
// ({"content":[{"type","text"}]}). Normalize folds both into Response so no
// caller ever branches on the wire shape.
func Normalize(raw []byte) (*Response, error) {
	if len(raw) == 0 {
		return nil, errors.New("empty specialist response")
	}

	var messageList struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(raw, &messageList); err == nil && len(messageList.Messages) > 0 {
		var parts []string
		for _, m := range messageList.Messages {
			if m.Role != "" && m.Role != "assistant" {
				continue
			}
			if m.Content != "" {
				parts = append(parts, m.Content)
			}
		}
		if len(parts) > 0 {
			return &Response{Text: strings.Join(parts, "\n"), Raw: json.RawMessage(raw)}, nil
		}
	}

	var contentParts struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(raw, &contentParts); err == nil && len(contentParts.Content) > 0 {
		var parts []string
		for _, p := range contentParts.Content {
			if p.Type != "" && p.Type != "text" {
				continue
			}
			if p.Text != "" {
				parts = append(parts, p.Text)
			}
		}
		if len(parts) > 0 {
			return &Response{Text: strings.Join(parts, "\n"), Raw: json.RawMessage(raw)}, nil
		}
	}

	return nil, errors.New("unrecognized specialist response shape")
}
