package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/modavie/checkout-service/internal/catalog"
	"github.com/modavie/checkout-service/internal/config"
	"github.com/modavie/checkout-service/internal/inventory"
	kafkax "github.com/modavie/checkout-service/internal/kafka"
	"github.com/modavie/checkout-service/internal/orders"
	"github.com/modavie/checkout-service/internal/postgres"
	"github.com/modavie/checkout-service/internal/redisx"
	"github.com/modavie/checkout-service/internal/reservation"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &inventory.Service{
		Catalog:     &catalog.Repo{DB: db},
		Redis:       rdb,
		ServiceName: cfg.ServiceName + "-worker",
	}

	group := getenv("WORKER_GROUP", "stock-cache")
	workers := mustAtoi(os.Getenv("WORKER_COUNT"), "4")
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, orders.TopicOrderCreated, workers)

	go func() {
		log.Printf("consumer started: group=%s topic=%s workers=%d", group, orders.TopicOrderCreated, workers)
		if err := cons.Start(ctx, svc.HandleOrderCreated); err != nil {
			log.Printf("consumer exit: %v", err)
			cancel()
		}
	}()

	// Expired holds stop counting against availability on their own; the
	// sweep just keeps the reservations table from growing without bound.
	resRepo := &reservation.Repo{DB: db}
	go func() {
		t := time.NewTicker(cfg.SweepInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				n, err := resRepo.SweepExpired(ctx)
				if err != nil {
					log.Printf("sweep: %v", err)
					continue
				}
				if n > 0 {
					log.Printf("sweep: removed %d expired reservations", n)
				}
			}
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down worker...")
	cancel()
	time.Sleep(500 * time.Millisecond)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustAtoi(s, def string) int {
	if s == "" {
		s = def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return i
}
