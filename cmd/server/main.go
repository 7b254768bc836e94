// Package main runs the creator backoffice HTTP server with WebSocket and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/creatorhub/backend/config"
	"github.com/creatorhub/backend/internal/abtests"
	"github.com/creatorhub/backend/internal/analytics"
	"github.com/creatorhub/backend/internal/approvals"
	"github.com/creatorhub/backend/internal/auth"
	"github.com/creatorhub/backend/internal/dashboard"
	"github.com/creatorhub/backend/internal/files"
	"github.com/creatorhub/backend/internal/integrations"
	"github.com/creatorhub/backend/internal/middleware"
	"github.com/creatorhub/backend/internal/models"
	"github.com/creatorhub/backend/internal/realtime"
	"github.com/creatorhub/backend/internal/teams"
	"github.com/creatorhub/backend/internal/youtube"
	"github.com/creatorhub/backend/pkg/crypto"
	"github.com/creatorhub/backend/pkg/database"
	"github.com/creatorhub/backend/pkg/queue"
	"github.com/creatorhub/backend/pkg/redis"
	"github.com/creatorhub/backend/pkg/response"
	"github.com/creatorhub/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	s3Cfg := storage.S3Config{
		Region:               cfg.AWS.Region,
		AccessKeyID:          cfg.AWS.AccessKeyID,
		SecretAccessKey:      cfg.AWS.SecretAccessKey,
		ThumbnailsBucket:     cfg.AWS.ThumbnailsBucket,
		PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
	}
	s3Client, err := storage.NewS3(ctx, s3Cfg, logger)
	if err != nil {
		logger.Fatal("s3", zap.Error(err))
	}

	tokenCipher, err := crypto.NewTokenCipher(cfg.Google.EncryptionKey)
	if err != nil {
		logger.Fatal("token cipher", zap.Error(err))
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)

	// Auth and teams
	authRepo := auth.NewRepository(pool)
	teamRepo := teams.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, teamRepo, jwtService, logger)
	teamHandler := teams.NewHandler(teamRepo, authRepo, logger)

	// Google integrations (Drive + YouTube OAuth)
	intRepo := integrations.NewRepository(pool)
	intService := integrations.NewService(intRepo, tokenCipher, cfg.Google, cfg.Server, logger)
	intHandler := integrations.NewHandler(intService, logger)

	// Drive file cache
	driveClient := files.NewDriveClient(intService, logger)
	fileRepo := files.NewRepository(pool)
	fileHandler := files.NewHandler(driveClient, fileRepo, authRepo, logger)

	// YouTube API
	ytClient := youtube.NewClient(intService, logger)

	// Approval workflow
	jobQueue := queue.NewQueue(rdb.Client, logger)
	approvalRepo := approvals.NewRepository(pool)
	approvalHandler := approvals.NewHandler(approvalRepo, fileRepo, authRepo, s3Client, jobQueue, logger)

	// A/B test engine
	testRepo := abtests.NewRepository(pool)
	updater := abtests.NewVideoUpdater(ytClient, s3Client)
	scheduler := abtests.NewScheduler(testRepo, updater, hub, logger)
	selector := abtests.NewWinnerSelector(testRepo, int64(cfg.ABTest.MinImpressions), logger)
	engine := abtests.NewEngine(testRepo, scheduler, selector, hub, logger)
	testHandler := abtests.NewHandler(testRepo, engine, selector, ytClient, s3Client, authRepo, cfg.ABTest.DefaultThreshold, cfg.Export.PDFAuthor, logger)

	// Analytics
	analyticsRepo := analytics.NewRepository(pool)
	analyticsHandler := analytics.NewHandler(analyticsRepo, ytClient, authRepo, cfg.Export.PDFAuthor, logger)

	// Dashboard summary
	dashboardHandler := dashboard.NewHandler(authRepo, approvalRepo, testRepo, intRepo, fileRepo, logger)

	authenticate := func(ctx context.Context, token string) (userID, creatorID uuid.UUID, role string, err error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return uuid.Nil, uuid.Nil, "", err
		}
		user, err := authRepo.GetByID(ctx, claims.UserID)
		if err != nil {
			return uuid.Nil, uuid.Nil, "", err
		}
		return user.ID, user.TeamOwner(), string(user.Role), nil
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/register/:token", authHandler.AcceptInvite)
	}

	// OAuth callback (no JWT: Google redirects the browser here; identity is
	// carried in the signed state and verified against the state cookie)
	router.GET("/integrations/:service/callback", intHandler.Callback)

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Team management (creator only mutations)
		api.GET("/team", teamHandler.Get)
		api.POST("/team/invite", middleware.RequireReviewer(), teamHandler.Invite)
		api.DELETE("/team/members/:id", middleware.RequireRole(models.RoleCreator), teamHandler.RemoveMember)

		// Integrations (creator owns the Google tokens)
		api.GET("/integrations", intHandler.List)
		api.GET("/integrations/:service/connect", middleware.RequireRole(models.RoleCreator), intHandler.Connect)
		api.DELETE("/integrations/:service", middleware.RequireRole(models.RoleCreator), intHandler.Disconnect)

		// Drive file cache (whole team reads through the creator's tokens)
		api.GET("/files", fileHandler.List)
		api.POST("/files/sync", fileHandler.Sync)
		api.GET("/files/quota", fileHandler.Quota)
		api.GET("/files/:id", fileHandler.Get)

		// Approval workflow
		api.POST("/approvals", approvalHandler.Submit)
		api.GET("/approvals", approvalHandler.List)
		api.GET("/approvals/history", approvalHandler.History)
		api.GET("/approvals/pending", middleware.RequireReviewer(), approvalHandler.Pending)
		api.GET("/approvals/:id", approvalHandler.Get)
		api.POST("/approvals/:id/approve", middleware.RequireReviewer(), approvalHandler.Approve)
		api.POST("/approvals/:id/reject", middleware.RequireReviewer(), approvalHandler.Reject)
		api.POST("/approvals/:id/upload", middleware.RequireReviewer(), approvalHandler.Upload)

		// A/B tests (reviewers manage, whole team reads)
		api.POST("/abtests", middleware.RequireReviewer(), testHandler.Create)
		api.POST("/abtests/thumbnails", middleware.RequireReviewer(), testHandler.UploadThumbnail)
		api.GET("/abtests", testHandler.List)
		api.GET("/abtests/:id", testHandler.Get)
		api.GET("/abtests/:id/status", testHandler.Status)
		api.POST("/abtests/:id/start", middleware.RequireReviewer(), testHandler.Start)
		api.POST("/abtests/:id/pause", middleware.RequireReviewer(), testHandler.Pause)
		api.POST("/abtests/:id/resume", middleware.RequireReviewer(), testHandler.Resume)
		api.POST("/abtests/:id/stop", middleware.RequireReviewer(), testHandler.Stop)
		api.POST("/abtests/:id/winner", middleware.RequireReviewer(), testHandler.SelectWinner)
		api.GET("/abtests/:id/results", testHandler.Results)
		api.GET("/abtests/:id/logs", testHandler.Logs)
		api.GET("/abtests/:id/export/csv", testHandler.ExportCSV)
		api.GET("/abtests/:id/export/pdf", testHandler.ExportPDF)

		// Analytics dashboards and exports
		api.GET("/analytics/videos/:id", analyticsHandler.Video)
		api.GET("/analytics/videos/:id/export/csv", analyticsHandler.ExportVideoCSV)
		api.GET("/analytics/videos/:id/export/pdf", analyticsHandler.ExportVideoPDF)
		api.GET("/analytics/channel", analyticsHandler.Channel)
		api.GET("/analytics/channel/export/csv", analyticsHandler.ExportChannelCSV)
		api.GET("/analytics/channel/export/pdf", analyticsHandler.ExportChannelPDF)
		api.GET("/analytics/competitors", analyticsHandler.Competitors)
		api.POST("/analytics/competitors", middleware.RequireReviewer(), analyticsHandler.AddCompetitor)
		api.DELETE("/analytics/competitors/:id", middleware.RequireReviewer(), analyticsHandler.RemoveCompetitor)
		api.POST("/analytics/seo", analyticsHandler.SEO)
		api.GET("/analytics/posting", analyticsHandler.Posting)

		// Role-specific dashboard
		api.GET("/dashboard", dashboardHandler.Summary)
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, logger, authenticate))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
