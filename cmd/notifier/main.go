// README: Notifier entry point; consumes the notification queue and pushes via FCM.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"waycart/internal/config"
	"waycart/internal/infra"
	"waycart/internal/logging"
	"waycart/internal/modules/notify"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.New(os.Getenv("WAYCART_DEBUG") == "true")
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Firebase.ProjectID == "" {
		logger.Fatal("WAYCART_FIREBASE_PROJECT_ID is required")
	}
	fcm, err := infra.NewMessagingClient(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	if err != nil {
		logger.Fatal("firebase init", zap.Error(err))
	}

	amqpClient, err := infra.DialAMQP(cfg.AMQP.URL)
	if err != nil {
		logger.Fatal("amqp connect", zap.Error(err))
	}
	defer amqpClient.Close()
	if err := amqpClient.DeclareTopology(cfg.AMQP.Exchange, cfg.AMQP.Queue); err != nil {
		logger.Fatal("amqp topology", zap.Error(err))
	}

	worker := notify.NewWorker(amqpClient.Channel(), cfg.AMQP.Queue, fcm, logger)
	logger.Info("notifier consuming", zap.String("queue", cfg.AMQP.Queue))
	if err := worker.Run(ctx); err != nil {
		logger.Fatal("worker stopped", zap.Error(err))
	}
}
