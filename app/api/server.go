package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/addisnews/tg-scraper/app/cfg"
)

// NewServer creates the HTTP server with all routes configured
func NewServer(handler *Handler, apiAccessKey string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
	}))

	r.Use(gin.Recovery())

	// CORS for browser consumers of the read API
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, X-API-Key, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	setupRoutes(r, handler, apiAccessKey)

	return r
}

// setupRoutes configures all the application routes
func setupRoutes(r *gin.Engine, handler *Handler, apiAccessKey string) {
	r.GET("/health", handler.GetHealth)
	r.GET("/stats", handler.GetStats)

	// Read endpoints are public
	r.GET("/api/posts", handler.ListPosts)
	r.GET("/api/posts/:id", handler.GetPost)
	r.GET("/api/channels", handler.ListChannels)
	r.GET("/api/channels/:id", handler.GetChannel)
	r.GET("/api/logs", handler.ListLogs)

	// Mutating endpoints require authentication
	if apiAccessKey != "" {
		authed := r.Group("/api")
		authed.Use(authMiddleware(apiAccessKey))
		{
			authed.POST("/scrape", handler.APIScrape)
			authed.PATCH("/posts/:id/moderation", handler.APIModeratePost)
			authed.POST("/media/publicize", handler.APIPublicizeMedia)
		}
		slog.Info("Write endpoints enabled with authentication")
	} else {
		slog.Info("Write endpoints disabled (API_ACCESS_KEY not set)")
	}

	r.GET("/", func(c *gin.Context) {
		endpoints := map[string]string{
			"posts":    "/api/posts",
			"post":     "/api/posts/<id>",
			"channels": "/api/channels",
			"logs":     "/api/logs",
			"health":   "/health",
			"stats":    "/stats",
		}

		if apiAccessKey != "" {
			endpoints["scrape"] = "/api/scrape (POST, requires X-API-Key header)"
			endpoints["moderation"] = "/api/posts/<id>/moderation (PATCH, requires X-API-Key header)"
			endpoints["publicize"] = "/api/media/publicize (POST, requires X-API-Key header)"
		}

		c.JSON(200, gin.H{
			"service":     "Telegram News Scraper",
			"version":     cfg.Get().Version,
			"description": "Telegram channel ingestion with deduplication, media handling and moderation",
			"endpoints":   endpoints,
			"api_status": map[string]interface{}{
				"write_enabled": apiAccessKey != "",
				"auth_required": apiAccessKey != "",
				"header":        "X-API-Key",
			},
		})
	})

	// Favicon handler (return 204 to avoid 404s)
	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(204)
	})
}

// authMiddleware creates authentication middleware for write endpoints
func authMiddleware(apiAccessKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		providedKey := c.GetHeader("X-API-Key")

		if providedKey == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				providedKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if providedKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "API key required",
				"message": "Provide API key in X-API-Key header or Authorization: Bearer <key>",
			})
			c.Abort()
			return
		}

		if providedKey != apiAccessKey {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "Invalid API key",
				"message": "The provided API key is not valid",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
