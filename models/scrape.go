package models

import (
	"encoding/json"
	"time"
)

// Mode selects how the dispatcher handles a ScrapeRequest.
type Mode string

const (
	ModeBasic    Mode = "basic"
	ModeAdvanced Mode = "advanced"
	ModeGenerate Mode = "generate"
)

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeBasic, ModeAdvanced, ModeGenerate:
		return true
	}
	return false
}

// Result limits for the basic extraction schema.
const (
	MaxBasicLinks   = 20
	MaxBasicImages  = 10
	MaxFallbackText = 5000
)

// DefaultRequirements is used when a generate request carries no requirements.
const DefaultRequirements = "Extract general data from the page"

// ScrapeRequest is the dispatcher input shared by all three modes.
type ScrapeRequest struct {
	URL  string
	Mode Mode

	// Selectors maps a caller-chosen field name to a CSS selector.
	// Only used in advanced mode; may be empty.
	Selectors map[string]string

	// Requirements is free text forwarded to the scraper-generation prompt.
	// Only used in generate mode.
	Requirements string

	// IncludeContent adds readability main content (markdown) to basic results.
	IncludeContent bool

	// MaxAge allows a cached basic result younger than this many milliseconds.
	MaxAge int
}

// ScrapeResult is the tagged result of a dispatch. Exactly one of Basic,
// Advanced or Generated is set, matching Mode.
type ScrapeResult struct {
	URL       string
	Mode      Mode
	Timestamp time.Time

	Basic     *BasicPage
	Advanced  *AdvancedPage
	Generated *GeneratedScript

	// CacheStatus is "hit" or "miss" for basic requests that set MaxAge.
	CacheStatus string
}

// Data returns the mode-specific payload for JSON encoding.
func (r *ScrapeResult) Data() any {
	switch r.Mode {
	case ModeBasic:
		return r.Basic
	case ModeAdvanced:
		return r.Advanced
	case ModeGenerate:
		return r.Generated
	}
	return nil
}

// BasicPage is the fixed schema produced by a static fetch and parse.
type BasicPage struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Keywords    string   `json:"keywords"`
	Headings    Headings `json:"headings"`
	Links       []Link   `json:"links"`
	Images      []Image  `json:"images"`

	// Content is the readability main content as markdown, only when requested.
	Content string `json:"content,omitempty"`
}

// Headings groups heading texts by level.
type Headings struct {
	H1 []string `json:"h1"`
	H2 []string `json:"h2"`
	H3 []string `json:"h3"`
}

// Link represents a hyperlink extracted from the page.
type Link struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

// Image represents an image element extracted from the page.
type Image struct {
	Alt string `json:"alt"`
	Src string `json:"src"`
}

// Element is one node matched by a caller-supplied selector.
type Element struct {
	Text       string            `json:"text"`
	HTML       string            `json:"html"`
	Attributes map[string]string `json:"attributes"`
}

// PageSummary is the advanced-mode fallback when no selectors are given.
type PageSummary struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Text  string `json:"text"`
}

// AdvancedPage holds headless extraction output. Fields is used when
// selectors were supplied, Fallback otherwise.
type AdvancedPage struct {
	Fields   map[string][]Element
	Fallback *PageSummary
}

// MarshalJSON flattens the page into either {name: [...]} or {title,url,text}.
func (p AdvancedPage) MarshalJSON() ([]byte, error) {
	if p.Fallback != nil {
		return json.Marshal(p.Fallback)
	}
	if p.Fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p.Fields)
}

// GeneratedScript is the output of generate mode: source text, not data.
type GeneratedScript struct {
	Script   string      `json:"script"`
	Language string      `json:"language"`
	Syntax   SyntaxCheck `json:"syntax"`
}

// SyntaxCheck reports whether the first code block in a generated script
// parses as JavaScript. Checked is false when no code block was found.
type SyntaxCheck struct {
	Checked bool   `json:"checked"`
	Valid   bool   `json:"valid"`
	Error   string `json:"error,omitempty"`
}
