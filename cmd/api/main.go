package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-feedback-api/internal/config"
	"github.com/noah-isme/gema-feedback-api/internal/database"
	"github.com/noah-isme/gema-feedback-api/internal/handler"
	"github.com/noah-isme/gema-feedback-api/internal/jobs"
	"github.com/noah-isme/gema-feedback-api/internal/middleware"
	"github.com/noah-isme/gema-feedback-api/internal/repository"
	"github.com/noah-isme/gema-feedback-api/internal/router"
	"github.com/noah-isme/gema-feedback-api/internal/service"
	cloud "github.com/noah-isme/gema-feedback-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "api").Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL, database.PoolOptions{
		MaxOpenConns:    cfg.DatabasePool.MaxOpenConns,
		MaxIdleConns:    cfg.DatabasePool.MaxIdleConns,
		ConnMaxLifetime: cfg.DatabasePool.ConnMaxLifetime,
	}, logger)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(context.Background(), cfg.RedisURL, cfg.AppName)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, analysis cache disabled")
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, events are only stored")
			natsConn = nil
		} else {
			defer natsConn.Drain()
		}
	}

	var notifier service.SubmissionNotifier
	if cfg.QueueRedisAddr != "" {
		queue, err := database.ConnectQueue(cfg.QueueRedisAddr)
		if err != nil {
			log.Fatalf("failed to create queue client: %v", err)
		}
		defer queue.Close()
		notifier = jobs.NewEnqueuer(queue, logger)
	}

	var storage service.AttachmentStorage
	if uploader, err := cloud.New(cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}, logger); err != nil {
		logger.Warn().Err(err).Msg("cloudinary not configured, attachments disabled")
	} else {
		storage = uploader
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	stores := service.Stores{
		Feedbacks:  repository.NewFeedbackRepository(db),
		Items:      repository.NewItemRepository(db),
		Completeds: repository.NewCompletedRepository(db),
		Staging:    repository.NewStagingRepository(db),
		Courses:    repository.NewCourseRepository(db),
		Templates:  repository.NewTemplateRepository(db),
		Files:      repository.NewItemFileRepository(db),
		Events:     repository.NewEventLogRepository(db),
	}
	settings := service.Settings{
		SiteCourseID:           cfg.SiteCourseID,
		MinAnonymousGroupCount: cfg.MinAnonymousGroupCount,
		DefaultPageCount:       cfg.DefaultPageCount,
	}

	events := service.NewEventRecorder(stores.Events, natsConn, cfg.NATSSubjectBase, logger)
	analysisService := service.NewAnalysisService(stores, settings, redisClient, cfg.AnalysisCacheTTL, logger)
	feedbackService := service.NewFeedbackService(stores, settings, validate, events, analysisService, logger)
	itemService := service.NewItemService(stores, validate, events, analysisService, logger)
	attachmentService := service.NewAttachmentService(stores, storage, cfg.UploadMaxMB, logger)
	completionService := service.NewCompletionService(stores, settings, validate, events, notifier, analysisService, logger)
	responsesService := service.NewResponsesService(stores, settings, validate, events, analysisService, logger)
	templateService := service.NewTemplateService(stores, validate, events, analysisService, logger)
	exchangeService := service.NewExchangeService(stores, events, analysisService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.UploadMaxMB + 1) * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.CORSAllowOrigins})
	router.Register(app, cfg, router.Dependencies{
		FeedbackHandler:   handler.NewFeedbackHandler(feedbackService, logger),
		ItemHandler:       handler.NewItemHandler(itemService, logger),
		AttachmentHandler: handler.NewAttachmentHandler(attachmentService, logger),
		CompletionHandler: handler.NewCompletionHandler(completionService, logger),
		AnalysisHandler:   handler.NewAnalysisHandler(analysisService, logger),
		ResponsesHandler:  handler.NewResponsesHandler(responsesService, logger),
		TemplateHandler:   handler.NewTemplateHandler(templateService, logger),
		ExchangeHandler:   handler.NewExchangeHandler(exchangeService, logger),
		Health: handler.HealthDependencies{
			DB:    db,
			Redis: redisClient,
			NATS:  natsConn,
		},
		AuthMiddleware: middleware.JWTOptional(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
