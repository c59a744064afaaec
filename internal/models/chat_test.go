package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatTurn_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want ChatTurn
	}{
		{"text field", `{"role":"user","text":"hello"}`, ChatTurn{Role: "user", Text: "hello"}},
		{"content alias", `{"role":"assistant","content":"hi"}`, ChatTurn{Role: "assistant", Text: "hi"}},
		{"parts list", `{"role":"model","parts":["first","second"]}`, ChatTurn{Role: "model", Text: "first"}},
		{"empty parts", `{"role":"user","parts":[]}`, ChatTurn{Role: "user"}},
		{"parts string", `{"role":"user","parts":"raw"}`, ChatTurn{Role: "user", Text: "raw"}},
		{"nothing", `{"role":"user"}`, ChatTurn{Role: "user"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got ChatTurn
			require.NoError(t, json.Unmarshal([]byte(tt.in), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChatTurn_UnmarshalJSON_BadParts(t *testing.T) {
	var got ChatTurn
	err := json.Unmarshal([]byte(`{"role":"user","parts":{"a":1}}`), &got)
	assert.Error(t, err)
}

func TestChatTurn_HistoryList(t *testing.T) {
	var history []ChatTurn
	in := `[{"role":"user","parts":[""]},{"role":"user","parts":["hi"]}]`
	require.NoError(t, json.Unmarshal([]byte(in), &history))
	require.Len(t, history, 2)
	assert.Equal(t, "", history[0].Text)
	assert.Equal(t, "hi", history[1].Text)
}
