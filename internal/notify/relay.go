package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-realtime-market/internal/market"
	"github.com/ariefcatur/go-realtime-market/internal/redisx"
)

// Relay bridges the Kafka event stream into a local hub. Each gateway node
// runs one; events it already pushed are skipped via Redis dedup so a
// rebalance replay does not double-notify.
type Relay struct {
	Hub     *Hub
	Redis   *redis.Client
	Service string
}

// HandleUserEvent is the consumer handler for the user-events topic.
func (r *Relay) HandleUserEvent(ctx context.Context, m kafkago.Message) error {
	env, ok, err := r.decode(ctx, m)
	if err != nil || !ok {
		return err
	}
	if env.Target == "" {
		log.Printf("notify: user event %s without target, dropped", env.EventID)
		return nil
	}
	return r.Hub.PublishToUser(ctx, env.Target, env.EventType, json.RawMessage(env.Payload))
}

// HandleBroadcast is the consumer handler for the broadcast topic.
func (r *Relay) HandleBroadcast(ctx context.Context, m kafkago.Message) error {
	env, ok, err := r.decode(ctx, m)
	if err != nil || !ok {
		return err
	}
	return r.Hub.PublishBroadcast(ctx, env.EventType, json.RawMessage(env.Payload))
}

// decode unwraps the envelope and runs the dedup check; ok=false means the
// event was already handled.
func (r *Relay) decode(ctx context.Context, m kafkago.Message) (market.Envelope, bool, error) {
	var env market.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		// drop rather than replay a message that will never parse
		log.Printf("notify: bad envelope at offset %d: %v", m.Offset, err)
		return env, false, nil
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, r.Service, env.EventID)
	exists, err := redisx.Exists(ctx, r.Redis, dkey)
	if err != nil {
		// dedup is an optimization; deliver anyway if Redis is down
		log.Printf("notify: dedup check: %v", err)
	}
	if exists {
		return env, false, nil
	}
	_ = r.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	return env, true, nil
}
