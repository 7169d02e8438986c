package models

import "strings"

// ChatRequest is the payload for POST /api/chat.
type ChatRequest struct {
	// Message is the user prompt. Required.
	Message string `json:"message"`

	// Context carries prior turns supplied by the caller. Only the last
	// MaxContextExchanges exchanges (user turns with their replies) are
	// forwarded upstream.
	Context []ContextEntry `json:"context,omitempty"`

	// SessionID, when set, records the exchange in the server-side history
	// ring and lets the server supply context when Context is empty.
	SessionID string `json:"session_id,omitempty"`
}

// ContextEntry is one prior turn. The web UI sends whole exchanges
// (userMessage/assistantResponse); API callers may send chat messages
// (role/content) instead.
type ContextEntry struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`

	UserMessage       string `json:"userMessage,omitempty"`
	AssistantResponse string `json:"assistantResponse,omitempty"`
}

// IsExchange reports whether the entry carries a user/assistant pair.
func (e ContextEntry) IsExchange() bool {
	return e.UserMessage != "" || e.AssistantResponse != ""
}

// GenerateCodeRequest is the payload for POST /api/generate-code.
type GenerateCodeRequest struct {
	// Prompt describes the code to write. Required.
	Prompt string `json:"prompt"`

	// Language is the target language. Default: "javascript".
	Language string `json:"language,omitempty"`

	// Requirements is appended to the prompt as extra constraints.
	Requirements string `json:"requirements,omitempty"`
}

// Defaults applies default values to unset fields.
func (r *GenerateCodeRequest) Defaults() {
	r.Language = strings.TrimSpace(r.Language)
	if r.Language == "" {
		r.Language = "javascript"
	}
}

// ScrapeBasicRequest is the payload for POST /api/scrape-basic.
type ScrapeBasicRequest struct {
	// URL is the target page. Required, absolute.
	URL string `json:"url"`

	// IncludeContent adds the readability main content as markdown.
	IncludeContent bool `json:"include_content,omitempty"`

	// MaxAge (ms) allows serving a cached result younger than this.
	// 0 disables the cache for this request.
	MaxAge int `json:"max_age,omitempty" binding:"omitempty,min=0"`
}

// ScrapeAdvancedRequest is the payload for POST /api/scrape-advanced.
type ScrapeAdvancedRequest struct {
	// URL is the target page. Required, absolute.
	URL string `json:"url"`

	// Selectors maps output field names to CSS selectors. Optional.
	Selectors map[string]string `json:"selectors,omitempty"`
}

// GenerateScraperRequest is the payload for POST /api/generate-scraper.
type GenerateScraperRequest struct {
	// URL is the page the generated script should target. Required.
	URL string `json:"url"`

	// Requirements describes what the script should extract.
	Requirements string `json:"requirements,omitempty"`
}
