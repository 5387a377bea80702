package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polychat/internal/models"
)

func collect(t *testing.T, s Stream) []Chunk {
	t.Helper()
	defer s.Close()
	var chunks []Chunk
	for {
		c, err := s.Recv()
		if err == io.EOF {
			return chunks
		}
		require.NoError(t, err)
		chunks = append(chunks, c)
	}
}

func joined(chunks []Chunk) string {
	out := ""
	for _, c := range chunks {
		if c.Kind == Replace {
			out = c.Text
		} else {
			out += c.Text
		}
	}
	return out
}

func TestOpenAIAdapter_Stream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, true, body["stream"])
		assert.Equal(t, "gpt-test", body["model"])

		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, ": keepalive\n\n")
		io.WriteString(w, `data: {"choices":[{"delta":{"content":"Hel"}}]}`+"\n\n")
		io.WriteString(w, `data: {"choices":[{"delta":{"content":"lo"}}]}`+"\n\n")
		io.WriteString(w, `data: {"choices":[{"delta":{"role":"assistant"}}]}`+"\n\n")
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	a := newOpenAIAdapter(models.ModelConfig{
		Provider: models.ProviderOpenAI, APIURL: srv.URL, ModelName: "gpt-test", APIKey: "sk-test",
	})
	stream, err := a.OpenStream(context.Background(), ChatRequest{
		History: []models.Message{{Role: models.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)

	chunks := collect(t, stream)
	assert.Equal(t, "Hello", joined(chunks))
	for _, c := range chunks {
		assert.Equal(t, Append, c.Kind)
	}
}

func TestOpenAIAdapter_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	a := newOpenAIAdapter(models.ModelConfig{Provider: models.ProviderOpenAI, APIURL: srv.URL, ModelName: "m", APIKey: "x"})
	_, err := a.OpenStream(context.Background(), ChatRequest{})
	require.Error(t, err)

	ae, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, ae.StatusCode)
	assert.Equal(t, "bad key", ae.Message)
}

func TestAnthropicAdapter_FiltersFrames(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, `data: {"type":"message_start"}`+"\n\n")
		io.WriteString(w, `data: {"type":"ping"}`+"\n\n")
		io.WriteString(w, `data: {"type":"content_block_delta","delta":{"type":"text_delta","text":"Hi"}}`+"\n\n")
		io.WriteString(w, `data: {"type":"content_block_delta","delta":{"type":"text_delta","text":"!"}}`+"\n\n")
		io.WriteString(w, `data: {"type":"message_stop"}`+"\n\n")
	}))
	defer srv.Close()

	a := newAnthropicAdapter(models.ModelConfig{Provider: models.ProviderAnthropic, APIURL: srv.URL, ModelName: "claude-test", APIKey: "sk-ant"})
	stream, err := a.OpenStream(context.Background(), ChatRequest{
		History: []models.Message{{Role: models.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hi!", joined(collect(t, stream)))
}

func TestGeminiAdapter_Stream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-test:streamGenerateContent", r.URL.Path)
		assert.Equal(t, "g-key", r.URL.Query().Get("key"))
		assert.Equal(t, "sse", r.URL.Query().Get("alt"))

		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, `data: {"candidates":[{"content":{"parts":[{"text":"one "}]}}]}`+"\n\n")
		io.WriteString(w, `data: {"candidates":[]}`+"\n\n")
		io.WriteString(w, `data: not-json`+"\n\n")
		io.WriteString(w, `data: {"candidates":[{"content":{"parts":[{"text":"two"}]}}]}`+"\n\n")
	}))
	defer srv.Close()

	a := newGeminiAdapter(models.ModelConfig{Provider: models.ProviderGemini, APIURL: srv.URL, ModelName: "gemini-test", APIKey: "g-key"})
	stream, err := a.OpenStream(context.Background(), ChatRequest{
		History: []models.Message{{Role: models.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	// Malformed and empty frames are skipped, the connection close ends
	// the stream without a sentinel.
	assert.Equal(t, "one two", joined(collect(t, stream)))
}

func TestCheckCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer good" {
			w.WriteHeader(http.StatusOK)
			io.WriteString(w, `{"data":[]}`)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	good := newOpenAIAdapter(models.ModelConfig{Provider: models.ProviderOpenAI, APIURL: srv.URL, ModelName: "m", APIKey: "good"})
	assert.True(t, good.CheckCredentials(context.Background()))

	bad := newOpenAIAdapter(models.ModelConfig{Provider: models.ProviderOpenAI, APIURL: srv.URL, ModelName: "m", APIKey: "bad"})
	assert.False(t, bad.CheckCredentials(context.Background()))

	// Network failure reports false, not an error.
	srv.Close()
	assert.False(t, good.CheckCredentials(context.Background()))
}

func TestRemapContentError(t *testing.T) {
	ae := &APIError{Provider: models.ProviderOpenAI, StatusCode: 400, Message: "image input not supported for this model"}

	err := remapContentError(ae, true)
	var ce *ContentError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Message, "vision-capable")

	// Without images the error passes through untouched.
	assert.Equal(t, error(ae), remapContentError(ae, false))
}

func TestFactory(t *testing.T) {
	for _, kind := range []models.ProviderKind{models.ProviderOpenAI, models.ProviderAnthropic, models.ProviderGemini, models.ProviderImage} {
		a, err := New(models.ModelConfig{Provider: kind})
		require.NoError(t, err)
		require.NotNil(t, a)
	}
	_, err := New(models.ModelConfig{Provider: "mystery"})
	assert.Error(t, err)
}
