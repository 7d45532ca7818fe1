// Worker purges expired verification and reset tokens and, when KAFKA_BROKERS and LOKI_URL are set,
// relays auth events from Kafka to Loki.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"market-auth/backend/internal/config"
	"market-auth/backend/internal/db"
	singleuserepo "market-auth/backend/internal/singleuse/repository"
	"market-auth/backend/internal/telemetry/loki"
	"market-auth/backend/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	// Redis expires tokens natively and the memory store lives in the server process.
	if cfg.TokenStore == config.TokenStorePostgres {
		database, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("database", "error", err)
			os.Exit(1)
		}
		defer database.Close()
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker.RunPurge(ctx, singleuserepo.NewPostgresRepository(database), cfg.PurgeEvery(), logger)
		}()
		logger.Info("worker: purging expired tokens", "interval", cfg.PurgeEvery().String())
	}

	if brokers := cfg.KafkaBrokersList(); len(brokers) > 0 && cfg.LokiURL != "" {
		reader := worker.NewKafkaReader(brokers, cfg.AuthEventsTopic, cfg.KafkaGroupID)
		defer reader.Close()
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker.RunRelay(ctx, reader, loki.NewClient(cfg.LokiURL), logger)
		}()
		logger.Info("worker: relaying auth events", "topic", cfg.AuthEventsTopic, "group", cfg.KafkaGroupID, "loki", cfg.LokiURL)
	}

	wg.Wait()
	<-ctx.Done()
	logger.Info("worker: stopped")
}
