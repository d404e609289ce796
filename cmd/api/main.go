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

	"github.com/ariefcatur/go-realtime-market/internal/config"
	"github.com/ariefcatur/go-realtime-market/internal/httpx"
	kafkax "github.com/ariefcatur/go-realtime-market/internal/kafka"
	"github.com/ariefcatur/go-realtime-market/internal/market"
	"github.com/ariefcatur/go-realtime-market/internal/notify"
	"github.com/ariefcatur/go-realtime-market/internal/postgres"
	"github.com/ariefcatur/go-realtime-market/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers: one topic per delivery scope
	pBroadcast := kafkax.NewProducer(cfg.KafkaBrokers, market.TopicBroadcastEvents, 1024)
	pBroadcast.Start(ctx)
	pUsers := kafkax.NewProducer(cfg.KafkaBrokers, market.TopicUserEvents, 1024)
	pUsers.Start(ctx)

	// Notifications: local hub for sessions on this node, stream for the rest
	hub := notify.NewHub()
	bus := notify.Fanout{
		hub,
		&notify.Stream{Broadcast: pBroadcast, Users: pUsers, Service: cfg.ServiceName},
	}

	// Placement core
	placer := &market.Placer{
		Store: &market.PgCartStore{DB: db},
		Bus:   bus,
	}

	// Router & handlers
	router := httpx.NewRouter()
	oh := &httpx.OrdersHandler{
		Placer: placer,
		Orders: &market.OrderRepo{DB: db},
		Redis:  rdb,
	}
	oh.Register(router)
	ph := &httpx.ProductsHandler{
		Products: &market.ProductRepo{DB: db},
		Ledger:   &market.LedgerRepo{DB: db},
		Bus:      bus,
	}
	ph.Register(router)
	uh := &httpx.UsersHandler{Users: &market.UserRepo{DB: db}}
	uh.Register(router)
	router.Get("/ws", hub.ServeWS)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)

	pBroadcast.Close() // close inbox -> flush & close writer
	pUsers.Close()
	pBroadcast.WaitClosed()
	pUsers.WaitClosed()
	cancel()
}
