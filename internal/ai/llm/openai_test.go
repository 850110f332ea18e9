package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIProviderGenerate(t *testing.T) {
	var got struct {
		Model       string  `json:"model"`
		Temperature float64 `json:"temperature"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	var referer, title string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		referer = r.Header.Get("HTTP-Referer")
		title = r.Header.Get("X-Title")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"{\"tasks\":[]}"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(OpenAIConfig{BaseURL: srv.URL + "/", APIKey: "k", Model: "m1", Referer: "http://localhost:3000", Title: "PM Agent"})
	text, err := p.Generate(context.Background(), Request{Prompt: "plan it", System: "be brief", Temperature: 0.5})
	require.NoError(t, err)

	assert.Equal(t, `{"tasks":[]}`, text)
	assert.Equal(t, "m1", got.Model)
	assert.InDelta(t, 0.5, got.Temperature, 1e-6)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "plan it", got.Messages[1].Content)
	assert.Equal(t, "http://localhost:3000", referer)
	assert.Equal(t, "PM Agent", title)
}

func TestOpenAIProviderStatusIsClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(OpenAIConfig{BaseURL: srv.URL, APIKey: "k", Model: "m1"})
	_, err := p.Generate(context.Background(), Request{Prompt: "x"})
	require.Error(t, err)

	le := Classify(err)
	assert.Equal(t, Transient, le.Kind)
	assert.Equal(t, http.StatusServiceUnavailable, le.StatusCode)
}
