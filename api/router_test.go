package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/LedMarketing/OpenManus/config"
	"github.com/LedMarketing/OpenManus/history"
	"github.com/LedMarketing/OpenManus/models"
	"github.com/LedMarketing/OpenManus/ratelimit"
	"github.com/LedMarketing/OpenManus/scraper"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAssistant struct {
	mu         sync.Mutex
	configured bool
	reply      string
	err        error
	panics     bool

	chatCalls   int
	lastContext []models.ContextEntry
	lastLang    string
	lastReq     string
}

func (f *fakeAssistant) Chat(_ context.Context, _ string, history []models.ContextEntry) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panics {
		panic("boom")
	}
	f.chatCalls++
	f.lastContext = history
	return f.reply, f.err
}

func (f *fakeAssistant) GenerateCode(_ context.Context, _, language, requirements string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLang, f.lastReq = language, requirements
	return f.reply, f.err
}

func (f *fakeAssistant) Configured() bool { return f.configured }

func (f *fakeAssistant) GenerateScraper(_ context.Context, _, _ string) (*models.GeneratedScript, error) {
	return &models.GeneratedScript{Script: f.reply, Language: "javascript"}, f.err
}

type countingFetcher struct{ calls int }

func (c *countingFetcher) Fetch(_ context.Context, target string) (*scraper.FetchedPage, error) {
	c.calls++
	return &scraper.FetchedPage{HTML: `<title>Foo</title><h1>Bar</h1>`, StatusCode: 200, FinalURL: target}, nil
}

type countingExtractor struct{ calls int }

func (c *countingExtractor) Extract(_ context.Context, target string, _ map[string]string) (*models.AdvancedPage, error) {
	c.calls++
	return &models.AdvancedPage{Fallback: &models.PageSummary{Title: "Foo", URL: target, Text: "hello"}}, nil
}

type staticBrowser scraper.SessionState

func (b staticBrowser) State() scraper.SessionState { return scraper.SessionState(b) }

type testEnv struct {
	router    *gin.Engine
	ai        *fakeAssistant
	fetcher   *countingFetcher
	extractor *countingExtractor
	store     *history.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	gate := ratelimit.NewFixedWindow(10, time.Minute)
	t.Cleanup(gate.Close)

	env := &testEnv{
		ai:        &fakeAssistant{configured: true, reply: "answer"},
		fetcher:   &countingFetcher{},
		extractor: &countingExtractor{},
		store:     history.NewStore(10, history.DefaultCapacity),
	}

	cfg := &config.Config{Server: config.ServerConfig{
		Mode:           gin.TestMode,
		AllowedOrigins: []string{"*"},
		MaxBodyBytes:   1 << 20,
	}}
	env.router = NewRouter(Services{
		Assistant:  env.ai,
		Dispatcher: scraper.NewDispatcher(env.fetcher, env.extractor, env.ai, nil),
		Browser:    staticBrowser(scraper.StateUninitialized),
		History:    env.store,
		Gate:       gate,
		StartTime:  time.Now(),
	}, cfg)
	return env
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestRateLimit_EleventhRequestRejected(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 10; i++ {
		w := env.do(http.MethodGet, "/api/status", "")
		require.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
		assert.Equal(t, strconv.Itoa(9-i), w.Header().Get("X-RateLimit-Remaining"))
	}

	w := env.do(http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	body := decode(t, w)
	assert.Equal(t, false, body["success"])
	assert.NotEmpty(t, body["error"])
	retry := int(body["retryAfter"].(float64))
	assert.Greater(t, retry, 0)
	assert.LessOrEqual(t, retry, 60)
	assert.Equal(t, strconv.Itoa(retry), w.Header().Get("Retry-After"))
}

func TestRateLimit_StaticAssetsNotCounted(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 15; i++ {
		w := env.do(http.MethodGet, "/static/app.js", "")
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := env.do(http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")

	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/status", "").Code)
}

func TestNotFoundEnvelope(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/does-not-exist", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "route not found", body["error"])
}

func TestPanicBecomes500Envelope(t *testing.T) {
	env := newTestEnv(t)
	env.ai.panics = true

	w := env.do(http.MethodPost, "/api/chat", `{"message":"hi"}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "internal server error", body["error"])
}

func TestScrapeEndpoints_InvalidURLNoIO(t *testing.T) {
	paths := []string{"/api/scrape-basic", "/api/scrape-advanced", "/api/generate-scraper"}
	bodies := []string{`{}`, `{"url":""}`, `{"url":"not a url"}`, `{"url":"example.com"}`, `{"url":"ftp://example.com"}`}

	for _, path := range paths {
		for _, body := range bodies {
			env := newTestEnv(t)
			w := env.do(http.MethodPost, path, body)
			assert.Equal(t, http.StatusBadRequest, w.Code, "%s %s", path, body)
			assert.Equal(t, false, decode(t, w)["success"])
			assert.Zero(t, env.fetcher.calls)
			assert.Zero(t, env.extractor.calls)
		}
	}
}

func TestScrapeBasic_Success(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/scrape-basic", `{"url":"https://example.com"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "https://example.com", body["url"])
	data := body["data"].(map[string]any)
	assert.Equal(t, "Foo", data["title"])
	assert.Equal(t, []any{"Bar"}, data["headings"].(map[string]any)["h1"])
}

func TestScrapeAdvanced_FallbackShapeAndBadSelector(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/scrape-advanced", `{"url":"https://example.com"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	data := body["data"].(map[string]any)
	assert.Equal(t, "Foo", data["title"])
	assert.Equal(t, "hello", data["text"])
	assert.Equal(t, map[string]any{}, body["selectors"])

	w = env.do(http.MethodPost, "/api/scrape-advanced", `{"url":"https://example.com","selectors":{"x":"div[["}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 1, env.extractor.calls)
}

func TestGenerateScraper_DefaultRequirements(t *testing.T) {
	env := newTestEnv(t)
	env.ai.reply = "```js\nconsole.log(1)\n```"

	w := env.do(http.MethodPost, "/api/generate-scraper", `{"url":"https://example.com"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, models.DefaultRequirements, body["requirements"])
	assert.Equal(t, env.ai.reply, body["script"])
}

func TestChat_Validation(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/chat", `{"message":"   "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Message is required", decode(t, w)["error"])

	w = env.do(http.MethodPost, "/api/chat", `{"message":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, env.ai.chatCalls)
}

func TestChat_UpstreamErrorIs500(t *testing.T) {
	env := newTestEnv(t)
	env.ai.err = models.UpstreamAIError("AI service timed out", errors.New("dial tcp: secret detail"))

	w := env.do(http.MethodPost, "/api/chat", `{"message":"hi"}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	assert.Equal(t, "AI service timed out", body["error"])
	assert.NotContains(t, w.Body.String(), "secret detail")
}

func TestChat_SessionHistory(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/history/s1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodPost, "/api/chat", `{"message":"first","session_id":"s1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "s1", decode(t, w)["session_id"])
	assert.Empty(t, env.ai.lastContext)

	w = env.do(http.MethodPost, "/api/chat", `{"message":"second","session_id":"s1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, env.ai.lastContext, 1)
	assert.Equal(t, "first", env.ai.lastContext[0].UserMessage)
	assert.Equal(t, "answer", env.ai.lastContext[0].AssistantResponse)

	// Caller-supplied context wins over the stored session.
	w = env.do(http.MethodPost, "/api/chat", `{"message":"third","session_id":"s1","context":[{"role":"user","content":"other"}]}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, env.ai.lastContext, 1)
	assert.Equal(t, "other", env.ai.lastContext[0].Content)

	w = env.do(http.MethodGet, "/api/history/s1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["history"], 3)

	w = env.do(http.MethodDelete, "/api/history/s1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/history/s1", "").Code)
}

func TestGenerateCode_Defaults(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/generate-code", `{"prompt":"sum two numbers","requirements":"no deps"}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "javascript", body["language"])
	assert.Equal(t, "answer", body["code"])
	assert.Equal(t, "javascript", env.ai.lastLang)
	assert.Equal(t, "no deps", env.ai.lastReq)

	w = env.do(http.MethodPost, "/api/generate-code", `{"language":"go"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusAndTemplates(t *testing.T) {
	env := newTestEnv(t)
	env.ai.configured = false

	w := env.do(http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "online", body["status"])
	services := body["services"].(map[string]any)
	assert.Equal(t, "unconfigured", services["mistralAI"])
	assert.Equal(t, "ready", services["webScraper"])
	assert.Equal(t, "idle", services["browser"])

	w = env.do(http.MethodGet, "/api/templates", "")
	require.Equal(t, http.StatusOK, w.Code)
	templates := decode(t, w)["templates"].(map[string]any)
	assert.Len(t, templates, 4)
	assert.Contains(t, templates, "webscraping")
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestChat_AssignsSessionID(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/chat", `{"message":"hi","context":[{"userMessage":"a","assistantResponse":"b"}]}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "answer", body["response"])

	id, _ := body["session_id"].(string)
	require.NotEmpty(t, id)
	got, ok := env.store.Get(id)
	require.True(t, ok)
	assert.Equal(t, "hi", got[0].UserMessage)
}
