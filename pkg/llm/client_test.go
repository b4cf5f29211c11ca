package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vyapar-go/internal/config"
)

type chunkRecorder struct {
	chunks []string
}

func (r *chunkRecorder) WriteMessage(_ int, data []byte) error {
	r.chunks = append(r.chunks, string(data))
	return nil
}

func newTestClient(url string) Client {
	return NewOpenAIClient(config.LLMConfig{
		APIKey:     "k",
		BaseURL:    url,
		Model:      "llama-3.1-8b-instant",
		Generation: config.LLMGenerationConfig{MaxTokens: 800},
	})
}

func TestOpenAIClient_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))

		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		assert.Equal(t, "llama-3.1-8b-instant", req.Model)
		if assert.NotNil(t, req.MaxTokens) {
			assert.Equal(t, 800, *req.MaxTokens)
		}
		assert.Nil(t, req.Temperature)
		assert.Len(t, req.Messages, 2)

		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Namaste!"}}]}`))
	}))
	defer srv.Close()

	out, err := newTestClient(srv.URL).Complete(context.Background(), []Message{
		{Role: "system", Content: "sys"},
		{Role: "user", Content: "hi"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Namaste!", out)
}

func TestOpenAIClient_Stream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))

		w.Header().Set("Content-Type", "text/event-stream")
		for _, part := range []string{"GST ", "", "is due"} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", part)
		}
		fmt.Fprint(w, ": keep-alive\n\n")
		fmt.Fprint(w, "data: not-json\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"after done\"}}]}\n\n")
	}))
	defer srv.Close()

	rec := &chunkRecorder{}
	err := newTestClient(srv.URL).StreamChatMessages(context.Background(), []Message{{Role: "user", Content: "hi"}}, nil, rec)
	require.NoError(t, err)
	assert.Equal(t, []string{"GST ", "is due"}, rec.chunks)
}

func TestOpenAIClient_Non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid api key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "invalid api key")

	err = c.StreamChatMessages(context.Background(), []Message{{Role: "user", Content: "hi"}}, nil, &chunkRecorder{})
	assert.Error(t, err)
}

func TestOpenAIClient_ExplicitParamsWin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if assert.NotNil(t, req.Temperature) {
			assert.Equal(t, 0.2, *req.Temperature)
		}
		assert.Nil(t, req.MaxTokens)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	temp := 0.2
	_, err := newTestClient(srv.URL).Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}, &GenerationParams{Temperature: &temp})
	require.NoError(t, err)
}

func TestNewClient_Provider(t *testing.T) {
	c, err := NewClient(context.Background(), config.LLMConfig{Provider: "openai"})
	require.NoError(t, err)
	assert.NotNil(t, c)

	_, err = NewClient(context.Background(), config.LLMConfig{Provider: "gemini"})
	assert.Error(t, err, "gemini requires an API key")

	_, err = NewClient(context.Background(), config.LLMConfig{Provider: "cohere"})
	assert.Error(t, err)
}

func TestGenerationFromConfig(t *testing.T) {
	assert.Nil(t, GenerationFromConfig(config.LLMGenerationConfig{}))

	gp := GenerationFromConfig(config.LLMGenerationConfig{TopP: 0.9})
	require.NotNil(t, gp)
	assert.Equal(t, 0.9, *gp.TopP)
	assert.Nil(t, gp.MaxTokens)
}

func TestSplitForGemini(t *testing.T) {
	system, history, last, err := splitForGemini([]Message{
		{Role: "system", Content: "You are VyaparGPT"},
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
		{Role: "user", Content: "gst due date?"},
	})
	require.NoError(t, err)
	assert.Equal(t, "You are VyaparGPT", system)
	assert.Equal(t, "gst due date?", last)
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "model", history[1].Role)
	assert.Equal(t, genai.Text("hello"), history[1].Parts[0])

	_, _, _, err = splitForGemini([]Message{{Role: "system", Content: "only system"}})
	assert.Error(t, err)
}

func TestExtractText(t *testing.T) {
	assert.Equal(t, "", extractText(nil))
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text("a"), genai.Text("b")}},
		}},
	}
	assert.Equal(t, "ab", extractText(resp))
}
