package handler

import (
	"net/http"
	"time"

	"github.com/LedMarketing/OpenManus/models"
	"github.com/LedMarketing/OpenManus/scraper"
	"github.com/gin-gonic/gin"
)

// BrowserState reports the headless session lifecycle.
type BrowserState interface {
	State() scraper.SessionState
}

// Status returns a handler for GET /api/status.
func Status(ai Assistant, browser BrowserState, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		aiStatus := "connected"
		if !ai.Configured() {
			aiStatus = "unconfigured"
		}

		c.JSON(http.StatusOK, models.StatusResponse{
			Status:    "online",
			Timestamp: time.Now().UTC(),
			Uptime:    time.Since(startTime).Round(time.Second).String(),
			Services: models.ServicesStatus{
				AI:         aiStatus,
				WebScraper: "ready",
				Browser:    browser.State().String(),
			},
		})
	}
}

var promptTemplates = map[string]models.PromptTemplate{
	"webscraping": {
		Title:       "Web Scraping",
		Description: "Extract data from websites",
		Prompt:      "Create a script to extract data from the site: {url}",
		Example:     "https://example.com",
	},
	"api": {
		Title:       "Build an API",
		Description: "Develop a REST API",
		Prompt:      "Build a REST API to {purpose}",
		Example:     "manage users",
	},
	"automation": {
		Title:       "Automation",
		Description: "Automate repetitive tasks",
		Prompt:      "Create an automation script to {task}",
		Example:     "send emails automatically",
	},
	"dataanalysis": {
		Title:       "Data Analysis",
		Description: "Analyse and process data",
		Prompt:      "Analyse and process the data from {source}",
		Example:     "a CSV file of sales",
	},
}

// Templates returns a handler for GET /api/templates.
func Templates() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, models.TemplatesResponse{
			Success:   true,
			Templates: promptTemplates,
		})
	}
}
