package markup

import (
	"log/slog"
	nurl "net/url"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	readability "github.com/go-shiori/go-readability"
)

// minContentLength is the minimum readability TextContent length for the
// article to be used; below it the whole document is converted instead.
const minContentLength = 50

// mdConverter is goroutine-safe and shared by all calls.
var mdConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		table.NewTablePlugin(
			table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
		),
	),
)

// MainContent runs Mozilla Readability over rawHTML and renders the article
// body as Markdown. Relative links resolve against pageURL.
//
// Readability failures never fail the call: the full document is converted.
func MainContent(rawHTML, pageURL string) (string, error) {
	parsed, err := nurl.Parse(pageURL)
	if err != nil {
		return "", err
	}

	body := rawHTML
	article, err := readability.FromReader(strings.NewReader(rawHTML), parsed)
	switch {
	case err != nil:
		slog.Debug("readability failed, converting full document", "url", pageURL, "error", err)
	case len(strings.TrimSpace(article.TextContent)) < minContentLength:
		slog.Debug("readability content too short, converting full document",
			"url", pageURL, "length", len(article.TextContent))
	default:
		body = article.Content
	}

	md, err := mdConverter.ConvertString(body, converter.WithDomain(parsed.Scheme+"://"+parsed.Host))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(md), nil
}
