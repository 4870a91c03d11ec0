package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"uniattend/internal/attendance"
	"uniattend/internal/auth"
	"uniattend/internal/cloudinary"
	"uniattend/internal/config"
	"uniattend/internal/faceclient"
	"uniattend/internal/handler"
	"uniattend/internal/httpmiddleware"
	"uniattend/internal/logging"
	"uniattend/internal/metrics"
	"uniattend/internal/queue"
	"uniattend/internal/store"
	"uniattend/internal/tally"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("load config", zap.Error(err))
	}
	logger := logging.New(cfg.LogLevel, cfg.Env)
	defer func() { _ = logger.Sync() }()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, logger); err != nil {
		logger.Fatal("http server failed", zap.Error(err))
	}
}

func runHTTP(cfg config.App, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if db == nil {
		return err
	}
	if err != nil {
		logger.Warn("db not reachable", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer func() { _ = redisClient.Close() }()

	q, err := queue.Open(queue.Options{
		Backend:      cfg.QueueBackend,
		Redis:        redisClient.Client,
		KafkaBrokers: cfg.KafkaBrokerList(),
		KafkaTopic:   cfg.KafkaTopic,
		KafkaGroupID: cfg.KafkaGroupID,
	})
	if err != nil {
		return err
	}
	if c, ok := q.(io.Closer); ok {
		defer func() { _ = c.Close() }()
	}

	counts := tally.New(redisClient.Client, "")
	if cfg.QueueBackend == "memory" {
		// In-memory events never leave this process, so the tally runs here.
		go func() { _ = tally.Run(ctx, q, counts, logger.Named("tally")) }()
	}

	reg := metrics.NewRegistry()
	repo := attendance.NewRepository(db.Client)
	svc := attendance.NewService(repo, attendance.Policy{
		MaxTokenAge:     cfg.TokenMaxAge,
		MaxTokenFuture:  cfg.TokenMaxFuture,
		RotateInterval:  cfg.TokenRotateEvery,
		DefaultLocation: cfg.DefaultLocation,
	}, logger.Named("attendance"), reg)

	face := faceclient.New(cfg.FaceServiceURL, cfg.FaceSkip)
	if !cfg.FaceSkip {
		if err := face.Health(ctx); err != nil {
			logger.Warn("face service not available", zap.Error(err))
		}
	}

	var uploads handler.Uploader
	if cfg.CloudinaryEnabled() {
		uploads = cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		logger.Info("cloudinary configured", zap.String("cloud", cfg.CloudinaryCloudName))
	} else {
		logger.Info("cloudinary not configured, uploads disabled")
	}

	h := handler.New(handler.Deps{
		Attendance: svc,
		Signer:     auth.NewSigner(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.AccessTTL, cfg.RefreshTTL),
		Devices:    repo,
		Faces:      face,
		Uploads:    uploads,
		Events:     q,
		Published:  reg,
		Counter:    counts,
		Health: map[string]handler.HealthCheck{
			"db":    db.Healthy,
			"redis": redisClient.Healthy,
		},
		Logger:            logger.Named("http"),
		DeviceSecret:      cfg.DeviceSecret,
		StaffSecret:       cfg.StaffSecret,
		FaceMinConfidence: cfg.FaceMinConfidence,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(logger.Named("access")))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:   []string{"X-Token-Expires-At"},
		MaxAge:          24 * time.Hour,
	}))
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(reg.GinMiddleware())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(reg.Handler()))
	h.Register(r)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", srv.Addr), zap.String("queue", cfg.QueueBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced shutdown", zap.Error(err))
	}
	logger.Info("server exited")
	return nil
}
