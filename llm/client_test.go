package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/LedMarketing/OpenManus/config"
	"github.com/LedMarketing/OpenManus/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature"`
	MaxTokens   int      `json:"max_tokens"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

// fakeUpstream serves /chat/completions, replying with reply and recording
// the last request body.
func fakeUpstream(t *testing.T, status int, reply string) (*httptest.Server, <-chan capturedRequest) {
	t.Helper()
	reqs := make(chan capturedRequest, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		var body capturedRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		reqs <- body

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			fmt.Fprintf(w, `{"error":{"message":%q,"type":"invalid_request_error"}}`, reply)
			return
		}
		fmt.Fprintf(w, `{"id":"cmpl-1","object":"chat.completion","model":"mistral-large-latest",
			"choices":[{"index":0,"message":{"role":"assistant","content":%q},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`, reply)
	}))
	t.Cleanup(srv.Close)
	return srv, reqs
}

func testClient(srv *httptest.Server, key string) *Client {
	return newClient(config.LLMConfig{
		APIKey:      key,
		BaseURL:     srv.URL,
		Model:       "mistral-large-latest",
		Temperature: 0.7,
		MaxTokens:   4000,
		Timeout:     2 * time.Second,
	}, srv.Client())
}

func TestComplete_SendsSystemPromptAndDefaults(t *testing.T) {
	srv, reqs := fakeUpstream(t, http.StatusOK, "hello there")
	c := testClient(srv, "secret")

	out, err := c.Complete(context.Background(), TaskChat, []Message{{Role: "user", Content: "hi"}}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "hello there", out)

	got := <-reqs
	assert.Equal(t, "mistral-large-latest", got.Model)
	require.NotNil(t, got.Temperature)
	assert.InDelta(t, 0.7, *got.Temperature, 0.001)
	assert.Equal(t, 4000, got.MaxTokens)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, chatSystemPrompt, got.Messages[0].Content)
	assert.Equal(t, "hi", got.Messages[1].Content)
}

func TestComplete_Unconfigured(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	c := testClient(srv, "")
	assert.False(t, c.Configured())

	_, err := c.Complete(context.Background(), TaskChat, nil, Options{})
	require.Error(t, err)
	appErr := models.AsAppError(err)
	assert.Equal(t, models.ErrCodeUpstreamAI, appErr.Code)
	assert.Equal(t, "AI service is not configured", appErr.Message)
	assert.Zero(t, hits.Load())
}

func TestComplete_UpstreamErrorsAreSanitised(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{http.StatusUnauthorized, "AI service rejected the API key"},
		{http.StatusTooManyRequests, "AI service is rate limiting requests, try again later"},
		{http.StatusBadGateway, "AI service returned an error"},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv, _ := fakeUpstream(t, tt.status, "internal upstream detail")
			_, err := testClient(srv, "secret").Complete(context.Background(), TaskChat, nil, Options{})
			require.Error(t, err)

			appErr := models.AsAppError(err)
			assert.Equal(t, models.ErrCodeUpstreamAI, appErr.Code)
			assert.Equal(t, tt.want, appErr.Message)
			assert.NotContains(t, appErr.Message, "internal upstream detail")
		})
	}
}

func TestComplete_EmptyChoice(t *testing.T) {
	srv, _ := fakeUpstream(t, http.StatusOK, "   ")
	_, err := testClient(srv, "secret").Complete(context.Background(), TaskChat, nil, Options{})
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.ErrCodeUpstreamAI))
}

func TestComplete_ExplicitZeroTemperature(t *testing.T) {
	srv, reqs := fakeUpstream(t, http.StatusOK, "ok")
	c := testClient(srv, "secret")

	_, err := c.Complete(context.Background(), TaskChat,
		[]Message{{Role: "user", Content: "hi"}},
		Options{Temperature: Temperature(0)},
	)
	require.NoError(t, err)

	got := <-reqs
	require.NotNil(t, got.Temperature, "zero temperature must still be sent")
	assert.InDelta(t, 0, *got.Temperature, 1e-6)

	_, err = c.Complete(context.Background(), TaskChat,
		[]Message{{Role: "user", Content: "hi"}},
		Options{Temperature: Temperature(0.2)},
	)
	require.NoError(t, err)
	got = <-reqs
	require.NotNil(t, got.Temperature)
	assert.InDelta(t, 0.2, *got.Temperature, 0.001)
}

func TestChat_TruncatesContextToLastFive(t *testing.T) {
	srv, reqs := fakeUpstream(t, http.StatusOK, "ok")
	c := testClient(srv, "secret")

	var history []models.ContextEntry
	for i := 1; i <= 8; i++ {
		history = append(history, models.ContextEntry{
			UserMessage:       fmt.Sprintf("q%d", i),
			AssistantResponse: fmt.Sprintf("a%d", i),
		})
	}

	_, err := c.Chat(context.Background(), "latest", history)
	require.NoError(t, err)

	got := <-reqs
	// system + 5 exchanges * 2 + new message
	require.Len(t, got.Messages, 12)
	assert.Equal(t, "q4", got.Messages[1].Content)
	assert.Equal(t, "a8", got.Messages[10].Content)
	assert.Equal(t, "latest", got.Messages[11].Content)

	// Same conversation sent as role/content turns.
	history = nil
	for i := 1; i <= 8; i++ {
		history = append(history,
			models.ContextEntry{Role: "user", Content: fmt.Sprintf("q%d", i)},
			models.ContextEntry{Role: "assistant", Content: fmt.Sprintf("a%d", i)},
		)
	}

	_, err = c.Chat(context.Background(), "latest", history)
	require.NoError(t, err)

	got = <-reqs
	require.Len(t, got.Messages, 12)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, "q4", got.Messages[1].Content)
	assert.Equal(t, "a8", got.Messages[10].Content)
	assert.Equal(t, "latest", got.Messages[11].Content)
}

func TestGenerateCode_PromptAndLanguage(t *testing.T) {
	srv, reqs := fakeUpstream(t, http.StatusOK, "```python\nprint(1)\n```")
	c := testClient(srv, "secret")

	out, err := c.GenerateCode(context.Background(), "print one", "python", "no imports")
	require.NoError(t, err)
	assert.Contains(t, out, "print(1)")

	got := <-reqs
	assert.Contains(t, got.Messages[0].Content, "in python")
	assert.Equal(t, "print one\n\nAdditional requirements: no imports", got.Messages[1].Content)
}

func TestGenerateScraper_ChecksSyntax(t *testing.T) {
	reply := "Here you go:\n```javascript\nconst axios = require('axios');\nasync function main() { return 1; }\nmain();\n```\n"
	srv, reqs := fakeUpstream(t, http.StatusOK, reply)
	c := testClient(srv, "secret")

	script, err := c.GenerateScraper(context.Background(), "https://example.com", "")
	require.NoError(t, err)

	assert.Equal(t, reply, script.Script)
	assert.Equal(t, "javascript", script.Language)
	assert.True(t, script.Syntax.Checked)
	assert.True(t, script.Syntax.Valid)

	got := <-reqs
	assert.Equal(t, scraperSystemPrompt, got.Messages[0].Content)
	assert.True(t, strings.Contains(got.Messages[1].Content, "https://example.com"))
	assert.Contains(t, got.Messages[1].Content, models.DefaultRequirements)
}
