// Package server assembles the HTTP router.
package server

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"bookreview/internal/auth"
	"bookreview/internal/books"
	"bookreview/internal/live"
	"bookreview/internal/session"
	"bookreview/internal/web"
)

type Deps struct {
	DB             *sql.DB
	Sessions       *session.Manager
	Auth           *auth.Service
	Books          *books.Service
	Hub            *live.Hub
	AllowedOrigins []string
	Logger         logrus.FieldLogger
}

func NewRouter(d Deps) *gin.Engine {
	logger := d.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	router := gin.New()
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})
	router.Use(RequestLogger(logger), gin.Recovery())

	if len(d.AllowedOrigins) > 0 {
		cfg := cors.DefaultConfig()
		cfg.AllowOrigins = d.AllowedOrigins
		cfg.AllowCredentials = true
		cfg.AllowHeaders = append(cfg.AllowHeaders, HeaderRequestID)
		cfg.ExposeHeaders = []string{HeaderRequestID}
		router.Use(cors.New(cfg))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := d.DB.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "db_error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "db": "ok"})
	})

	pages := router.Group("/")
	pages.Use(d.Sessions.Middleware())

	pages.GET("/", func(c *gin.Context) {
		web.Page(c, http.StatusOK, "start", nil)
	})
	auth.NewHandler(d.Auth).RegisterRoutes(pages)

	protected := pages.Group("/")
	protected.Use(auth.RequireLogin())
	books.NewHandler(d.Books).RegisterRoutes(protected)
	if d.Hub != nil {
		protected.GET("/book/:isbn/live", live.Handler(d.Hub, live.NewUpgrader(d.AllowedOrigins)))
	}

	return router
}
