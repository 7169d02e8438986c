package markup

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractBasic_TitleAndHeading(t *testing.T) {
	page, err := ExtractBasic(`<html><head><title>Foo</title></head><body><h1>Bar</h1></body></html>`)
	require.NoError(t, err)

	assert.Equal(t, "Foo", page.Title)
	assert.Equal(t, []string{"Bar"}, page.Headings.H1)
	assert.Empty(t, page.Headings.H2)
	assert.NotNil(t, page.Headings.H2, "empty heading lists encode as []")
	assert.NotNil(t, page.Links)
	assert.NotNil(t, page.Images)
}

func TestExtractBasic_MetaAndTrim(t *testing.T) {
	const doc = `<html><head>
		<title>
			Spaced Title
		</title>
		<meta name="description" content="A page">
		<meta name="keywords" content="go,scraping">
	</head><body>
		<h2> Two </h2><h3>Three</h3><h3>Four</h3>
		<a href="/rel"> Relative </a>
		<a href="https://example.com/abs">Absolute</a>
		<a>no href</a>
		<img src="/a.png" alt="A"><img alt="no src">
	</body></html>`

	page, err := ExtractBasic(doc)
	require.NoError(t, err)

	assert.Equal(t, "Spaced Title", page.Title)
	assert.Equal(t, "A page", page.Description)
	assert.Equal(t, "go,scraping", page.Keywords)
	assert.Equal(t, []string{"Two"}, page.Headings.H2)
	assert.Equal(t, []string{"Three", "Four"}, page.Headings.H3)

	require.Len(t, page.Links, 2)
	assert.Equal(t, "Relative", page.Links[0].Text)
	assert.Equal(t, "/rel", page.Links[0].Href)
	require.Len(t, page.Images, 1)
	assert.Equal(t, "A", page.Images[0].Alt)
	assert.Equal(t, "/a.png", page.Images[0].Src)
}

func TestExtractBasic_Caps(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 50; i++ {
		fmt.Fprintf(&b, `<a href="/p/%d">link %d</a><img src="/i/%d.png">`, i, i, i)
	}
	b.WriteString("</body></html>")

	page, err := ExtractBasic(b.String())
	require.NoError(t, err)

	assert.Len(t, page.Links, 20)
	assert.Len(t, page.Images, 10)
	assert.Equal(t, "/p/0", page.Links[0].Href)
	assert.Equal(t, "/p/19", page.Links[19].Href)
}

func TestValidateSelectors(t *testing.T) {
	tests := []struct {
		name      string
		selectors map[string]string
		wantErr   bool
	}{
		{"nil map", nil, false},
		{"valid", map[string]string{"titles": "h1, h2.title", "links": "a[href^='http']"}, false},
		{"malformed", map[string]string{"bad": "div[["}, true},
		{"empty selector", map[string]string{"x": "  "}, true},
		{"empty name", map[string]string{"": "div"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSelectors(tt.selectors)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestVisibleText_SkipsScripts(t *testing.T) {
	const doc = `<html><head><title>T</title></head><body>
		<p>Hello   <b>world</b></p>
		<script>var x = "hidden";</script>
		<style>.a{}</style>
		<p>again</p>
	</body></html>`

	assert.Equal(t, "Hello world again", VisibleText(doc, 0))
	assert.Equal(t, "Hello", VisibleText(doc, 5))
}

func TestTruncate_RuneSafe(t *testing.T) {
	s := strings.Repeat("é", 6000)
	got := Truncate(s, 5000)
	assert.Equal(t, 5000, utf8.RuneCountInString(got))
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "abc", Truncate("abc", 0))
}

func TestMainContent_ConvertsToMarkdown(t *testing.T) {
	const doc = `<html><head><title>Article</title></head><body>
		<article>
			<h1>Heading</h1>
			<p>This is a reasonably long paragraph of article text so that readability has something to keep around.</p>
			<p>A second paragraph with a <a href="/more">link</a> that should become absolute in the output.</p>
		</article>
	</body></html>`

	md, err := MainContent(doc, "https://example.com/post")
	require.NoError(t, err)
	assert.Contains(t, md, "reasonably long paragraph")
	assert.Contains(t, md, "https://example.com/more")
}
