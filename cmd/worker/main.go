package main

import (
	"log"
	"os"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-feedback-api/internal/config"
	"github.com/noah-isme/gema-feedback-api/internal/database"
	"github.com/noah-isme/gema-feedback-api/internal/jobs"
	"github.com/noah-isme/gema-feedback-api/internal/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if cfg.QueueRedisAddr == "" {
		log.Fatalf("queue redis address must be configured for the worker")
	}
	if !cfg.MailConfigured() {
		log.Fatalf("mail settings must be configured for the worker")
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "worker").Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL, database.PoolOptions{
		MaxOpenConns:    cfg.DatabasePool.MaxOpenConns,
		MaxIdleConns:    cfg.DatabasePool.MaxIdleConns,
		ConnMaxLifetime: cfg.DatabasePool.ConnMaxLifetime,
	}, logger)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	sender := &jobs.SMTPSender{
		Host:     cfg.MailHost,
		Port:     cfg.MailPort,
		User:     cfg.MailUser,
		Password: cfg.MailPassword,
		From:     cfg.MailFrom,
	}
	notifications := jobs.NewNotificationHandler(
		repository.NewFeedbackRepository(db),
		repository.NewCourseRepository(db),
		sender,
		cfg.AppBaseURL,
		logger,
	)

	server := asynq.NewServer(asynq.RedisClientOpt{Addr: cfg.QueueRedisAddr}, asynq.Config{
		Concurrency: cfg.WorkerConcurrency,
		Queues: map[string]int{
			jobs.QueueNotifications: 1,
		},
	})

	mux := asynq.NewServeMux()
	jobs.Register(mux, notifications)

	logger.Info().Int("concurrency", cfg.WorkerConcurrency).Msg("worker started")
	if err := server.Run(mux); err != nil {
		log.Fatalf("worker stopped: %v", err)
	}
}
