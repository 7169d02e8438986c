package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/LedMarketing/OpenManus/cache"
	"github.com/LedMarketing/OpenManus/markup"
	"github.com/LedMarketing/OpenManus/models"
)

// PageFetcher performs a static GET.
type PageFetcher interface {
	Fetch(ctx context.Context, target string) (*FetchedPage, error)
}

// PageExtractor runs selector extraction in a rendered page.
type PageExtractor interface {
	Extract(ctx context.Context, target string, selectors map[string]string) (*models.AdvancedPage, error)
}

// ScriptGenerator asks the LLM for a standalone scraper script.
type ScriptGenerator interface {
	GenerateScraper(ctx context.Context, target, requirements string) (*models.GeneratedScript, error)
}

// Dispatcher routes a ScrapeRequest to the fetcher, the headless session or
// the script generator.
type Dispatcher struct {
	fetcher   PageFetcher
	session   PageExtractor
	generator ScriptGenerator
	cache     *cache.Cache
}

// NewDispatcher wires the three backends. c may be nil to disable caching.
func NewDispatcher(fetcher PageFetcher, session PageExtractor, generator ScriptGenerator, c *cache.Cache) *Dispatcher {
	return &Dispatcher{
		fetcher:   fetcher,
		session:   session,
		generator: generator,
		cache:     c,
	}
}

// ValidateURL parses raw and requires an absolute http(s) URL with a host.
func ValidateURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, models.ValidationError("URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return nil, models.ValidationError("Invalid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, models.ValidationError("Invalid URL: only http and https are supported")
	}
	return u, nil
}

// Dispatch validates req and runs it in the requested mode.
func (d *Dispatcher) Dispatch(ctx context.Context, req models.ScrapeRequest) (*models.ScrapeResult, error) {
	u, err := ValidateURL(req.URL)
	if err != nil {
		return nil, err
	}
	if !req.Mode.Valid() {
		return nil, models.ValidationError(fmt.Sprintf("unknown scrape mode %q", req.Mode))
	}

	target := u.String()
	res := &models.ScrapeResult{URL: target, Mode: req.Mode}

	switch req.Mode {
	case models.ModeBasic:
		page, status, err := d.basic(ctx, target, req)
		if err != nil {
			return nil, err
		}
		res.Basic, res.CacheStatus = page, status

	case models.ModeAdvanced:
		if err := markup.ValidateSelectors(req.Selectors); err != nil {
			return nil, models.ValidationError(err.Error())
		}
		page, err := d.session.Extract(ctx, target, req.Selectors)
		if err != nil {
			if models.IsCode(err, models.ErrCodeExtraction) || models.IsCode(err, models.ErrCodeValidation) {
				return nil, err
			}
			return nil, models.ExtractionError("advanced scrape failed", err)
		}
		res.Advanced = page

	case models.ModeGenerate:
		requirements := strings.TrimSpace(req.Requirements)
		if requirements == "" {
			requirements = models.DefaultRequirements
		}
		script, err := d.generator.GenerateScraper(ctx, target, requirements)
		if err != nil {
			return nil, err
		}
		res.Generated = script
	}

	res.Timestamp = time.Now().UTC()
	return res, nil
}

func (d *Dispatcher) basic(ctx context.Context, target string, req models.ScrapeRequest) (*models.BasicPage, string, error) {
	var key, status string
	if d.cache != nil && req.MaxAge > 0 {
		key = cache.Key(target, req.IncludeContent)
		if page, ok := d.cache.Get(key, req.MaxAge); ok {
			return page, "hit", nil
		}
		status = "miss"
	}

	fetched, err := d.fetcher.Fetch(ctx, target)
	if err != nil {
		slog.Warn("basic fetch failed", "url", target, "error", err)
		return nil, "", models.FetchError(err)
	}

	page, err := markup.ExtractBasic(fetched.HTML)
	if err != nil {
		return nil, "", models.FetchError(err)
	}

	if req.IncludeContent {
		content, err := markup.MainContent(fetched.HTML, fetched.FinalURL)
		if err != nil {
			slog.Warn("main content extraction failed", "url", target, "error", err)
		} else {
			page.Content = content
		}
	}

	if d.cache != nil {
		if key == "" {
			key = cache.Key(target, req.IncludeContent)
		}
		d.cache.Set(key, page)
	}
	return page, status, nil
}
