package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/LedMarketing/OpenManus/models"
	"github.com/gin-gonic/gin"
)

// Dispatcher runs a scrape in one of the three modes.
type Dispatcher interface {
	Dispatch(ctx context.Context, req models.ScrapeRequest) (*models.ScrapeResult, error)
}

// The scrape handlers detach from the client: an in-flight fetch or
// navigation runs to its own timeout even if the caller goes away.

// ScrapeBasic returns a handler for POST /api/scrape-basic.
func ScrapeBasic(d Dispatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ScrapeBasicRequest
		if !bindJSON(c, &req) {
			return
		}

		res, err := d.Dispatch(context.WithoutCancel(c.Request.Context()), models.ScrapeRequest{
			URL:            req.URL,
			Mode:           models.ModeBasic,
			IncludeContent: req.IncludeContent,
			MaxAge:         req.MaxAge,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, models.ScrapeBasicResponse{
			Success:     true,
			Data:        res.Basic,
			URL:         res.URL,
			CacheStatus: res.CacheStatus,
			Timestamp:   res.Timestamp,
		})
	}
}

// ScrapeAdvanced returns a handler for POST /api/scrape-advanced.
func ScrapeAdvanced(d Dispatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ScrapeAdvancedRequest
		if !bindJSON(c, &req) {
			return
		}

		res, err := d.Dispatch(context.WithoutCancel(c.Request.Context()), models.ScrapeRequest{
			URL:       req.URL,
			Mode:      models.ModeAdvanced,
			Selectors: req.Selectors,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		selectors := req.Selectors
		if selectors == nil {
			selectors = map[string]string{}
		}
		c.JSON(http.StatusOK, models.ScrapeAdvancedResponse{
			Success:   true,
			Data:      res.Advanced,
			URL:       res.URL,
			Selectors: selectors,
			Timestamp: res.Timestamp,
		})
	}
}

// GenerateScraper returns a handler for POST /api/generate-scraper.
func GenerateScraper(d Dispatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.GenerateScraperRequest
		if !bindJSON(c, &req) {
			return
		}

		res, err := d.Dispatch(context.WithoutCancel(c.Request.Context()), models.ScrapeRequest{
			URL:          req.URL,
			Mode:         models.ModeGenerate,
			Requirements: req.Requirements,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		requirements := strings.TrimSpace(req.Requirements)
		if requirements == "" {
			requirements = models.DefaultRequirements
		}
		c.JSON(http.StatusOK, models.GenerateScraperResponse{
			Success:      true,
			Script:       res.Generated.Script,
			URL:          res.URL,
			Requirements: requirements,
			Syntax:       res.Generated.Syntax,
			Timestamp:    res.Timestamp,
		})
	}
}
