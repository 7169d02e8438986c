package markup

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// VisibleText returns the whitespace-collapsed text inside <body>, skipping
// script, style and noscript content, truncated to limit runes (0 = no limit).
func VisibleText(rawHTML string, limit int) string {
	tokenizer := html.NewTokenizer(strings.NewReader(rawHTML))
	var buf strings.Builder
	inBody := false
	skipDepth := 0

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return Truncate(strings.TrimSpace(buf.String()), limit)
		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			switch string(tn) {
			case "body":
				inBody = true
			case "script", "style", "noscript":
				skipDepth++
			}
		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			switch string(tn) {
			case "script", "style", "noscript":
				if skipDepth > 0 {
					skipDepth--
				}
			}
		case html.TextToken:
			if inBody && skipDepth == 0 {
				if text := strings.Join(strings.Fields(string(tokenizer.Text())), " "); text != "" {
					if buf.Len() > 0 {
						buf.WriteByte(' ')
					}
					buf.WriteString(text)
				}
			}
		}
	}
}

// Truncate cuts s to at most limit runes. limit <= 0 returns s unchanged.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
