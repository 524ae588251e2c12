package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"

	"example.com/reactivities/internal/config"
	"example.com/reactivities/internal/consumer"
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

	handler := consumer.NewPersistenceHandler(pool)

	var wg sync.WaitGroup
	for _, topic := range cfg.ConsumerTopics {
		reader := consumer.NewKafkaReader(cfg.KafkaBrokers, cfg.ConsumerGroupID, topic)
		proc := consumer.NewProcessor(reader, handler)

		wg.Add(1)
		go func(topic string, r *kafka.Reader) {
			defer wg.Done()
			defer r.Close()

			log.Printf("consumer started (topic=%s, group=%s)", topic, cfg.ConsumerGroupID)
			if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
				log.Printf("consumer stopped with error (topic=%s): %v", topic, err)
			}
		}(topic, reader)
	}

	serverCfg := httptransport.DefaultServerConfig(cfg.MetricsAddress)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := httptransport.Run(ctx, httptransport.NewServer(serverCfg, mux), serverCfg.ShutdownTimeout); err != nil {
		log.Printf("metrics server error: %v", err)
	}

	log.Println("consumer shutdown requested")
	stop()
	wg.Wait()
}
