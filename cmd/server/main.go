package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"propertylens/server/config"
	"propertylens/server/internal/api"
	"propertylens/server/internal/area"
	"propertylens/server/internal/geocode"
	"propertylens/server/internal/listings"
	"propertylens/server/internal/predict"
	"propertylens/server/internal/session"
	"propertylens/server/internal/store"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	// A missing .env is fine; the environment and defaults cover everything.
	if err := godotenv.Load(); err == nil {
		logger.Info("Loaded environment from .env")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	requestTimeout := time.Duration(cfg.Upstream.RequestTimeout) * time.Second

	historyStore, err := store.NewStore(cfg.History.DatabasePath, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize history store")
	}
	defer historyStore.Close()

	pruner := store.NewPruner(
		historyStore,
		time.Duration(cfg.History.RetentionDays)*24*time.Hour,
		time.Duration(cfg.History.PruneIntervalHours)*time.Hour,
		logger,
	)
	pruner.Start()
	defer pruner.Stop()

	controller := session.NewController(session.Dependencies{
		Geocoder:   geocode.NewClient(cfg.Upstream.GeocodeBaseURL, requestTimeout, logger),
		Listings:   session.NewListingSource(listings.NewClient(cfg.Upstream.ScraperBaseURL, logger)),
		Area:       area.NewAggregator(cfg.Upstream.AreaDataBaseURL, requestTimeout, logger),
		Forecaster: predict.NewClient(cfg.Upstream.PredictorBaseURL, cfg.Prediction.HorizonYears, requestTimeout, logger),
		History:    historyStore,
	}, logger)
	controller.Start()
	defer controller.Close()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api.SetupRoutes(router, controller, historyStore, logger)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srvErr := make(chan error, 1)
	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Starting server")
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("Server shutdown was not clean")
		}
	case err := <-srvErr:
		if err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}

	logger.Info("Server stopped")
}
