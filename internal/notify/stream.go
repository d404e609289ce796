package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ariefcatur/go-realtime-market/internal/kafka"
	"github.com/ariefcatur/go-realtime-market/internal/market"
)

// Stream publishes notification events to Kafka so gateways on other nodes
// can relay them into their local hubs.
type Stream struct {
	Broadcast *kafkax.Producer // market.events.broadcast
	Users     *kafkax.Producer // market.events.user
	Service   string
}

func (s *Stream) PublishToUser(ctx context.Context, userID, event string, payload any) error {
	env := s.envelope(event, payload)
	env.Target = userID
	s.Users.Publish(market.PartitionKey(userID), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(event)},
	)
	return nil
}

func (s *Stream) PublishBroadcast(ctx context.Context, event string, payload any) error {
	env := s.envelope(event, payload)
	s.Broadcast.Publish(market.PartitionKey(event), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(event)},
	)
	return nil
}

func (s *Stream) envelope(event string, payload any) market.Envelope {
	return market.Envelope{
		EventID:      uuid.NewString(),
		EventType:    event,
		EventVersion: 1,
		OccurredAt:   time.Now().UTC(),
		Producer:     s.Service,
		Payload:      kafkax.MustMarshal(payload),
	}
}
