package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"bookreview/internal/auth"
	"bookreview/internal/books"
	"bookreview/internal/live"
	"bookreview/internal/ratings"
	"bookreview/internal/reviews"
	"bookreview/internal/server"
	"bookreview/internal/session"
	"bookreview/pkg/database"
	"bookreview/pkg/utils"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := utils.Load()
	if err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}
	configureLogger(logger, cfg)

	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	dbCfg, err := database.ParseURL(cfg.DatabaseURL)
	if err != nil {
		logger.WithError(err).Fatal("invalid DATABASE_URL")
	}
	db := database.MustOpen(dbCfg)
	defer db.Close()

	migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.Migrate(migrateCtx, db, dbCfg.Driver); err != nil {
		cancel()
		logger.WithError(err).Fatal("db migrate failed")
	}
	cancel()

	store, closeStore := newSessionStore(cfg, logger)
	defer closeStore()

	sessions := session.NewManager(
		store,
		session.TokenService{Secret: []byte(cfg.SessionSecret), Issuer: "bookreview"},
		cfg.SessionTTL,
		session.CookieOptions{Secure: cfg.SessionCookieSecure},
		logger,
	)

	hub := live.NewHub(0, logger)
	authSvc := auth.NewService(auth.NewRepo(db), logger)
	booksSvc := books.NewService(
		books.NewRepo(db),
		reviews.NewRepo(db),
		ratings.NewClient(cfg.RatingsBaseURL, cfg.RatingsAPIKey, cfg.RatingsTimeout),
		hub,
		logger,
	)

	router := server.NewRouter(server.Deps{
		DB:             db,
		Sessions:       sessions,
		Auth:           authSvc,
		Books:          booksSvc,
		Hub:            hub,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:         logger,
	})

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.WithField("addr", cfg.HTTPAddr).Info("HTTP server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.WithField("signal", sig.String()).Info("shutdown signal received")
	case err := <-errCh:
		logger.WithError(err).Error("server error")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("http shutdown error")
	}

	wg.Wait()
	logger.Info("server stopped")
}

func configureLogger(logger *logrus.Logger, cfg utils.Config) {
	if cfg.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.WithField("log_level", cfg.LogLevel).Warn("unknown log level, using info")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
}

// newSessionStore picks Redis when REDIS_ADDR is set and the in-process
// store otherwise.
func newSessionStore(cfg utils.Config, logger *logrus.Logger) (session.Store, func()) {
	if cfg.RedisAddr == "" {
		logger.Info("using in-memory session store")
		return session.NewMemoryStore(), func() {}
	}

	client, err := session.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.WithError(err).WithField("redis_addr", cfg.RedisAddr).Fatal("redis unavailable")
	}
	logger.WithField("redis_addr", cfg.RedisAddr).Info("using redis session store")
	return session.NewRedisStore(client), func() { _ = client.Close() }
}
