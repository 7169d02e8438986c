package llm

import (
	"regexp"
	"strings"

	"github.com/LedMarketing/OpenManus/models"
	"github.com/dop251/goja/parser"
)

var (
	fenceRe    = regexp.MustCompile("(?s)```([A-Za-z0-9_+-]*)[ \t]*\r?\n(.*?)```")
	esModuleRe = regexp.MustCompile(`(?m)^\s*(import\s+[\w{*'"]|export\s+)`)
)

var jsFences = map[string]bool{
	"":           true,
	"js":         true,
	"javascript": true,
	"node":       true,
	"nodejs":     true,
}

// ExtractCodeBlock returns the body of the first fenced block tagged as
// JavaScript (or untagged).
func ExtractCodeBlock(text string) (string, bool) {
	for _, m := range fenceRe.FindAllStringSubmatch(text, -1) {
		if jsFences[strings.ToLower(m[1])] {
			return m[2], true
		}
	}
	return "", false
}

// CheckScript parses the first JavaScript block of text. ES module sources
// are reported unchecked since the parser only accepts scripts.
func CheckScript(text string) models.SyntaxCheck {
	code, ok := ExtractCodeBlock(text)
	if !ok || strings.TrimSpace(code) == "" {
		return models.SyntaxCheck{}
	}
	if esModuleRe.MatchString(code) {
		return models.SyntaxCheck{Error: "ES module syntax is not checked"}
	}
	if _, err := parser.ParseFile(nil, "scraper.js", code, 0); err != nil {
		return models.SyntaxCheck{Checked: true, Error: err.Error()}
	}
	return models.SyntaxCheck{Checked: true, Valid: true}
}
