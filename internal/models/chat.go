package models

import (
	"encoding/json"
	"fmt"
)

// ChatTurn is one message of the caller supplied conversation.
type ChatTurn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// UnmarshalJSON accepts {"role","text"}, {"role","content"} and the
// {"role","parts":[...]} shape, where the first part carries the text.
func (t *ChatTurn) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role    string          `json:"role"`
		Text    *string         `json:"text"`
		Content *string         `json:"content"`
		Parts   json.RawMessage `json:"parts"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t.Role = raw.Role
	t.Text = ""

	switch {
	case raw.Text != nil:
		t.Text = *raw.Text
	case raw.Content != nil:
		t.Text = *raw.Content
	case len(raw.Parts) > 0:
		text, err := firstPart(raw.Parts)
		if err != nil {
			return err
		}
		t.Text = text
	}
	return nil
}

func firstPart(parts json.RawMessage) (string, error) {
	var list []string
	if err := json.Unmarshal(parts, &list); err == nil {
		if len(list) == 0 {
			return "", nil
		}
		return list[0], nil
	}
	var single string
	if err := json.Unmarshal(parts, &single); err == nil {
		return single, nil
	}
	if string(parts) == "null" {
		return "", nil
	}
	return "", fmt.Errorf("unsupported parts value: %s", string(parts))
}
