package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/ariefcatur/go-realtime-market/internal/config"
	kafkax "github.com/ariefcatur/go-realtime-market/internal/kafka"
	"github.com/ariefcatur/go-realtime-market/internal/market"
	"github.com/ariefcatur/go-realtime-market/internal/notify"
	"github.com/ariefcatur/go-realtime-market/internal/redisx"
)

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

// The gateway holds the websocket sessions. It consumes the event stream
// produced by the API nodes and relays each event into its local rooms, so
// realtime delivery works no matter which node placed the order.
func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	hub := notify.NewHub()
	relay := &notify.Relay{
		Hub:     hub,
		Redis:   rdb,
		Service: cfg.ServiceName + "-gateway",
	}

	// Each gateway node needs its own group so every node sees every event.
	group := getenv("GATEWAY_GROUP", "market-gateway")
	workers := mustAtoi(os.Getenv("GATEWAY_WORKERS"), "4")

	cUsers := kafkax.NewConsumer(cfg.KafkaBrokers, group+".user", market.TopicUserEvents, workers)
	cBroadcast := kafkax.NewConsumer(cfg.KafkaBrokers, group+".broadcast", market.TopicBroadcastEvents, workers)

	go func() {
		log.Printf("relay consumer started: group=%s topic=%s workers=%d", group, market.TopicUserEvents, workers)
		if err := cUsers.Start(ctx, relay.HandleUserEvent); err != nil {
			log.Printf("user consumer exit: %v", err)
			cancel()
		}
	}()
	go func() {
		log.Printf("relay consumer started: group=%s topic=%s workers=%d", group, market.TopicBroadcastEvents, workers)
		if err := cBroadcast.Start(ctx, relay.HandleBroadcast); err != nil {
			log.Printf("broadcast consumer exit: %v", err)
			cancel()
		}
	}()

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/ws", hub.ServeWS)

	addr := getenv("GATEWAY_ADDR", ":8090")
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		log.Printf("gateway listening at %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down gateway...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	cancel()
	time.Sleep(500 * time.Millisecond)
}
