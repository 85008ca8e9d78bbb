package generate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"beacon/pkg/models"
)

func TestParseDraft_ToleratesCodeFences(t *testing.T) {
	raw := "```json\n{\"text\": \"hello\", \"hashtags\": [\"#a\"], \"reasoning\": \"short\"}\n```"
	draft, err := parseDraft(raw)
	require.NoError(t, err)
	require.Equal(t, "hello", draft.Text)
	require.Equal(t, []string{"#a"}, draft.Hashtags)
}

func TestParseDraft_ToleratesSurroundingProse(t *testing.T) {
	raw := "Here is the post:\n{\"text\": \"hello\", \"hashtags\": []}\nDone."
	draft, err := parseDraft(raw)
	require.NoError(t, err)
	require.Equal(t, "hello", draft.Text)
}

func TestParseDraft_RejectsEmptyText(t *testing.T) {
	_, err := parseDraft(`{"text": "", "hashtags": []}`)
	require.Error(t, err)

	_, err = parseDraft("no json here")
	require.Error(t, err)
}

func TestAnthropicGenerator_Generate(t *testing.T) {
	var gotHeaders http.Header
	var gotBody anthropicRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"model": "claude-sonnet-4-5",
			"content": [{"type": "text", "text": "{\"text\": \"launch day\", \"hashtags\": [\"#launch\"], \"reasoning\": \"timely\"}"}],
			"usage": {"input_tokens": 120, "output_tokens": 40}
		}`))
	}))
	defer server.Close()

	gen := NewAnthropicGenerator(AnthropicConfig{
		APIKey: "test-key",
		APIURL: server.URL,
		Model:  "claude-sonnet-4-5",
	})

	result, err := gen.Generate(context.Background(), Request{
		Brand:         &models.Brand{ID: "brand-1", Name: "Acme", Tone: "dry"},
		Platform:      models.PlatformLinkedIn,
		PreviousPosts: []string{"old post"},
	})
	require.NoError(t, err)
	require.Equal(t, "launch day", result.Text)
	require.Equal(t, []string{"#launch"}, result.Hashtags)
	require.Equal(t, 120, result.InputTokens)

	require.Equal(t, "test-key", gotHeaders.Get("X-API-Key"))
	require.Equal(t, "2023-06-01", gotHeaders.Get("Anthropic-Version"))
	require.Equal(t, "claude-sonnet-4-5", gotBody.Model)
	require.Contains(t, gotBody.Messages[0].Content, "old post")
}

func TestAnthropicGenerator_ErrorStatusSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "overloaded"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	gen := NewAnthropicGenerator(AnthropicConfig{APIURL: server.URL, Model: "claude-sonnet-4-5"})
	_, err := gen.Generate(context.Background(), Request{
		Brand:    &models.Brand{ID: "brand-1", Name: "Acme"},
		Platform: models.PlatformLinkedIn,
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unexpected status")
}
