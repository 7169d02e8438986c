package models

import "time"

// ErrorResponse is the uniform error envelope for every endpoint.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`

	// RetryAfter is the number of seconds to wait; only set on 429.
	RetryAfter int `json:"retryAfter,omitempty"`
}

// ChatResponse is the response for POST /api/chat.
type ChatResponse struct {
	Success   bool      `json:"success"`
	Response  string    `json:"response"`
	SessionID string    `json:"session_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// GenerateCodeResponse is the response for POST /api/generate-code.
type GenerateCodeResponse struct {
	Success   bool      `json:"success"`
	Code      string    `json:"code"`
	Language  string    `json:"language"`
	Timestamp time.Time `json:"timestamp"`
}

// ScrapeBasicResponse is the response for POST /api/scrape-basic.
type ScrapeBasicResponse struct {
	Success     bool       `json:"success"`
	Data        *BasicPage `json:"data"`
	URL         string     `json:"url"`
	CacheStatus string     `json:"cache_status,omitempty"`
	Timestamp   time.Time  `json:"timestamp"`
}

// ScrapeAdvancedResponse is the response for POST /api/scrape-advanced.
type ScrapeAdvancedResponse struct {
	Success   bool              `json:"success"`
	Data      *AdvancedPage     `json:"data"`
	URL       string            `json:"url"`
	Selectors map[string]string `json:"selectors"`
	Timestamp time.Time         `json:"timestamp"`
}

// GenerateScraperResponse is the response for POST /api/generate-scraper.
type GenerateScraperResponse struct {
	Success      bool        `json:"success"`
	Script       string      `json:"script"`
	URL          string      `json:"url"`
	Requirements string      `json:"requirements"`
	Syntax       SyntaxCheck `json:"syntax"`
	Timestamp    time.Time   `json:"timestamp"`
}

// StatusResponse is the response for GET /api/status.
type StatusResponse struct {
	Status    string         `json:"status"` // always "online" while serving
	Timestamp time.Time      `json:"timestamp"`
	Uptime    string         `json:"uptime"`
	Services  ServicesStatus `json:"services"`
}

// ServicesStatus reports collaborator readiness.
type ServicesStatus struct {
	AI         string `json:"mistralAI"`  // "connected" or "unconfigured"
	WebScraper string `json:"webScraper"` // "ready"
	Browser    string `json:"browser"`    // "idle", "running" or "closed"
}

// PromptTemplate is a canned prompt offered by the UI.
type PromptTemplate struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Prompt      string `json:"prompt"`
	Example     string `json:"example"`
}

// TemplatesResponse is the response for GET /api/templates.
type TemplatesResponse struct {
	Success   bool                      `json:"success"`
	Templates map[string]PromptTemplate `json:"templates"`
}

// ChatExchange is one stored user/assistant turn.
type ChatExchange struct {
	UserMessage       string `json:"userMessage"`
	AssistantResponse string `json:"assistantResponse"`
	TimestampMs       int64  `json:"timestampMs"`
}

// HistoryResponse is the response for GET /api/history/:session.
type HistoryResponse struct {
	Success   bool           `json:"success"`
	SessionID string         `json:"session_id"`
	History   []ChatExchange `json:"history"`
}

// SuccessResponse is a bare acknowledgement.
type SuccessResponse struct {
	Success bool `json:"success"`
}
