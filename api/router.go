package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/LedMarketing/OpenManus/api/handler"
	"github.com/LedMarketing/OpenManus/api/middleware"
	"github.com/LedMarketing/OpenManus/config"
	"github.com/LedMarketing/OpenManus/history"
	"github.com/LedMarketing/OpenManus/ratelimit"
	"github.com/LedMarketing/OpenManus/web"
	"github.com/gin-gonic/gin"
)

// Services bundles the collaborators the HTTP layer routes to.
type Services struct {
	Assistant  handler.Assistant
	Dispatcher handler.Dispatcher
	Browser    handler.BrowserState
	History    *history.Store
	Gate       *ratelimit.FixedWindow
	StartTime  time.Time
}

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger → SecureHeaders → CORS → BodyLimit
//	/api/*:  RateLimit
//	NoRoute: RateLimit → 404 envelope
//
// The UI assets are served without rate limiting.
func NewRouter(svc Services, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	if err := r.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		slog.Warn("invalid trusted proxies, trusting none", "error", err)
		_ = r.SetTrustedProxies(nil)
	}

	r.Use(middleware.Recovery())
	r.Use(gin.Logger())
	r.Use(middleware.SecureHeaders())
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))

	// UI
	index := web.Index()
	r.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", index)
	})
	r.StaticFS("/static", web.FS())

	limit := middleware.RateLimit(svc.Gate)

	api := r.Group("/api", limit)
	api.POST("/chat", handler.Chat(svc.Assistant, svc.History))
	api.POST("/generate-code", handler.GenerateCode(svc.Assistant))
	api.POST("/scrape-basic", handler.ScrapeBasic(svc.Dispatcher))
	api.POST("/scrape-advanced", handler.ScrapeAdvanced(svc.Dispatcher))
	api.POST("/generate-scraper", handler.GenerateScraper(svc.Dispatcher))
	api.GET("/status", handler.Status(svc.Assistant, svc.Browser, svc.StartTime))
	api.GET("/templates", handler.Templates())
	api.GET("/history/:session", handler.GetHistory(svc.History))
	api.DELETE("/history/:session", handler.DeleteHistory(svc.History))

	r.NoRoute(limit, handler.NotFound())

	return r
}
