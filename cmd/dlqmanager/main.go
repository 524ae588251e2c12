package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/reactivities/internal/config"
	"example.com/reactivities/internal/outbox"
	httptransport "example.com/reactivities/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	manager := outbox.NewDLQManager(pool, cfg.DLQMaxRetries, cfg.DLQBaseDelay)

	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Printf("DLQ manager started (interval=%s, maxRetries=%d)", cfg.DLQPollInterval, cfg.DLQMaxRetries)
		manager.Run(ctx, cfg.DLQPollInterval, cfg.DLQBatchSize)
	}()

	serverCfg := httptransport.DefaultServerConfig(cfg.MetricsAddress)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := httptransport.Run(ctx, httptransport.NewServer(serverCfg, mux), serverCfg.ShutdownTimeout); err != nil {
		log.Printf("metrics server error: %v", err)
	}

	stop()
	<-done
}
