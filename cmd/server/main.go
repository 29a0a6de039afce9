package main

import (
	"context"
	"log"

	"go.uber.org/zap"

	"labflow/internal/config"
	"labflow/internal/handler"
	"labflow/internal/httpserver"
	"labflow/internal/pipeline"
	"labflow/internal/registry"
	"labflow/internal/repository"
	"labflow/internal/service"
	"labflow/pkg/db"
	"labflow/pkg/logger"
	"labflow/pkg/mq"
	"labflow/pkg/outbox"
	redisclient "labflow/pkg/redis"
)

func main() {
	cfg := config.Load()

	logger := logger.NewLogger()
	defer logger.Sync()

	// Init DB
	dbConn, err := db.NewConnection(cfg.DB, logger)
	if err != nil {
		logger.Fatal("DB initialization failed", zap.Error(err))
	}
	defer dbConn.Close()

	// Init Redis (stage snapshot cache)
	cache := redisclient.NewClient(cfg.Redis)
	defer cache.Close()

	// Init MQ publisher
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		logger.Fatal("Failed to init MQ publisher", zap.Error(err))
	}
	defer publisher.Close()

	// Init repositories
	outboxRepo := outbox.NewRepository(dbConn)
	stageRepo := repository.NewStageRepository(dbConn, logger)
	jobRepo := repository.NewJobRepository(dbConn, outboxRepo, logger)
	commentRepo := repository.NewCommentRepository(dbConn, logger)

	// Init services
	stageRegistry := registry.New(stageRepo, jobRepo, cache, logger)
	orderClient := service.NewOrderClient(cfg.OrderServiceURL, logger)
	jobService := service.NewJobService(jobRepo, orderClient, stageRegistry, logger)
	commentService := service.NewCommentService(commentRepo, jobRepo, publisher, logger)
	engine := pipeline.NewEngine(stageRegistry, jobRepo, logger)

	// Init handlers
	stageHandler := handler.NewStageHandler(stageRegistry, logger)
	jobHandler := handler.NewJobHandler(jobService, engine, logger)
	commentHandler := handler.NewCommentHandler(commentService, logger)

	// Init outbox dispatcher
	dispatcher := outbox.NewDispatcher(outboxRepo, publisher, logger)
	go dispatcher.Start(context.Background())

	// Router
	router := httpserver.NewRouter(
		stageHandler,
		jobHandler,
		commentHandler,
		cfg.JWT.Secret,
		dbConn,
	)

	logger.Info("Starting labflow server", zap.String("port", cfg.Server.Port))
	if err := router.Run(cfg.Server.Port); err != nil {
		log.Fatalf("server start failed: %v", err)
	}
}
