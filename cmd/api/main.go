package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/modavie/checkout-service/internal/catalog"
	"github.com/modavie/checkout-service/internal/checkout"
	"github.com/modavie/checkout-service/internal/config"
	"github.com/modavie/checkout-service/internal/httpx"
	kafkax "github.com/modavie/checkout-service/internal/kafka"
	"github.com/modavie/checkout-service/internal/orders"
	"github.com/modavie/checkout-service/internal/payments"
	"github.com/modavie/checkout-service/internal/postgres"
	"github.com/modavie/checkout-service/internal/redisx"
	"github.com/modavie/checkout-service/internal/reservation"
	"github.com/modavie/checkout-service/internal/users"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	prod := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024)
	prod.Start(ctx)

	catalogRepo := &catalog.Repo{DB: db}
	svc := &checkout.Service{
		Catalog:           catalogRepo,
		Stock:             &reservation.Repo{DB: db},
		Payments:          payments.New(cfg.StripeSecretKey),
		Currency:          cfg.Currency,
		ShippingCostCents: cfg.ShippingCostCents,
		FreeShippingQty:   cfg.FreeShippingQty,
		ReservationTTL:    cfg.ReservationTTL,
	}

	router := httpx.NewRouter()
	(&httpx.CheckoutHandler{Service: svc}).Register(router)
	(&httpx.WebhookHandler{
		Orders:        &orders.Repo{DB: db},
		Users:         &users.Repo{DB: db},
		Producer:      prod,
		WebhookSecret: cfg.StripeWebhookSecret,
		ServiceName:   cfg.ServiceName,
	}).Register(router)
	(&httpx.ProductsHandler{Catalog: catalogRepo, Redis: rdb}).Register(router)
	(&httpx.OrdersHandler{Repo: &orders.Repo{DB: db}, Redis: rdb}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close() // flush buffered events
	prod.WaitClosed()
	cancel()
}
