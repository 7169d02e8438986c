// Package markup extracts structured data from HTML documents.
package markup

import (
	"fmt"
	"strings"

	"github.com/LedMarketing/OpenManus/models"
	"github.com/PuerkitoBio/goquery"
)

// ExtractBasic parses rawHTML and returns the fixed basic-scrape schema:
// title, meta description and keywords, h1-h3 texts, the first 20 links and
// the first 10 images. Hrefs and srcs are returned as written in the page.
func ExtractBasic(rawHTML string) (*models.BasicPage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("markup: parse html: %w", err)
	}

	page := &models.BasicPage{
		Title:       strings.TrimSpace(doc.Find("title").First().Text()),
		Description: metaContent(doc, "description"),
		Keywords:    metaContent(doc, "keywords"),
		Headings: models.Headings{
			H1: headingTexts(doc, "h1"),
			H2: headingTexts(doc, "h2"),
			H3: headingTexts(doc, "h3"),
		},
		Links:  []models.Link{},
		Images: []models.Image{},
	}

	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		page.Links = append(page.Links, models.Link{
			Text: strings.TrimSpace(s.Text()),
			Href: href,
		})
		return len(page.Links) < models.MaxBasicLinks
	})

	doc.Find("img[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src, _ := s.Attr("src")
		alt, _ := s.Attr("alt")
		page.Images = append(page.Images, models.Image{Alt: alt, Src: src})
		return len(page.Images) < models.MaxBasicImages
	})

	return page, nil
}

func metaContent(doc *goquery.Document, name string) string {
	content, _ := doc.Find(fmt.Sprintf(`meta[name=%q]`, name)).First().Attr("content")
	return content
}

func headingTexts(doc *goquery.Document, tag string) []string {
	texts := []string{}
	doc.Find(tag).Each(func(_ int, s *goquery.Selection) {
		texts = append(texts, strings.TrimSpace(s.Text()))
	})
	return texts
}
