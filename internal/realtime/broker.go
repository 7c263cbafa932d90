package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/octave-im/octave-api/internal/observability"
)

const lastEventTTL = 30 * time.Minute

// gatewayFrame is the cross-node fan-out envelope. Source carries the
// publishing node id so a node never re-emits its own frames.
type gatewayFrame struct {
	Source string    `json:"source"`
	Room   string    `json:"room"`
	Event  Event     `json:"event"`
	SentAt time.Time `json:"sent_at"`
}

// Broker fans gateway events out to the local registry and, when configured,
// across nodes over redis pub/sub and NATS. Either bus may be absent; the
// broker then degrades to single-node delivery.
type Broker struct {
	registry     *Registry
	redis        *redis.Client
	redisChannel string
	redisCache   string
	nats         *nats.Conn
	natsSubject  string
	natsQueue    string
	nodeID       string
	logger       zerolog.Logger
}

// NewBroker creates the fan-out broker. channelBase namespaces the redis
// channel, cache keys and NATS subject; empty disables the corresponding bus.
func NewBroker(registry *Registry, redisClient *redis.Client, natsConn *nats.Conn, channelBase string, logger zerolog.Logger) *Broker {
	redisChannel := ""
	redisCache := ""
	natsSubject := ""
	if channelBase != "" {
		redisChannel = channelBase + ":gateway"
		redisCache = channelBase + ":gateway:last"
		natsSubject = strings.ReplaceAll(channelBase, ":", ".") + ".gateway"
	}

	return &Broker{
		registry:     registry,
		redis:        redisClient,
		redisChannel: redisChannel,
		redisCache:   redisCache,
		nats:         natsConn,
		natsSubject:  natsSubject,
		natsQueue:    "octave-gateway",
		nodeID:       uuid.NewString(),
		logger:       logger.With().Str("component", "gateway_broker").Logger(),
	}
}

// Start launches the cross-node consumers. It returns immediately; consumers
// stop when ctx is cancelled.
func (b *Broker) Start(ctx context.Context) {
	if b.redis != nil && b.redisChannel != "" {
		go b.consumeRedis(ctx)
	}
	if b.nats != nil && b.natsSubject != "" {
		go b.consumeNATS(ctx)
	}
}

// Emit delivers an event to the room: local registry first, then the
// cross-node buses. Remote publish failures are logged, never surfaced, so a
// bus outage degrades to single-node delivery instead of failing requests.
func (b *Broker) Emit(ctx context.Context, room string, event Event) {
	b.registry.Emit(room, event)
	observability.GatewayEventsTotal().WithLabelValues(event.Name).Inc()

	if event.Name == EventNewMessage {
		b.cacheLastEvent(ctx, room, event)
	}

	if err := b.publish(ctx, room, event); err != nil {
		b.logger.Warn().Err(err).Str("room", room).Str("event", event.Name).Msg("failed to publish gateway event")
	}
}

// LastEvent returns the most recent cached newMessage event for a room, or
// nil when nothing is cached. Used for connect-time catch-up.
func (b *Broker) LastEvent(ctx context.Context, room string) *Event {
	if b.redis == nil || b.redisCache == "" {
		return nil
	}

	result, err := b.redis.Get(ctx, fmt.Sprintf("%s:%s", b.redisCache, room)).Result()
	if err != nil {
		return nil
	}

	var event Event
	if err := json.Unmarshal([]byte(result), &event); err != nil {
		b.logger.Warn().Err(err).Msg("failed to unmarshal cached gateway event")
		return nil
	}
	return &event
}

func (b *Broker) cacheLastEvent(ctx context.Context, room string, event Event) {
	if b.redis == nil || b.redisCache == "" {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		b.logger.Warn().Err(err).Msg("failed to marshal gateway event for cache")
		return
	}

	key := fmt.Sprintf("%s:%s", b.redisCache, room)
	if err := b.redis.Set(ctx, key, payload, lastEventTTL).Err(); err != nil {
		b.logger.Warn().Err(err).Msg("failed to cache gateway event")
	}
}

func (b *Broker) publish(ctx context.Context, room string, event Event) error {
	frame := gatewayFrame{
		Source: b.nodeID,
		Room:   room,
		Event:  event,
		SentAt: time.Now().UTC(),
	}

	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	if b.redis != nil && b.redisChannel != "" {
		if err := b.redis.Publish(ctx, b.redisChannel, payload).Err(); err != nil {
			return err
		}
	}

	if b.nats != nil && b.natsSubject != "" {
		if err := b.nats.Publish(b.natsSubject, payload); err != nil {
			return err
		}
	}

	return nil
}

func (b *Broker) consumeRedis(ctx context.Context) {
	pubsub := b.redis.Subscribe(ctx, b.redisChannel)
	defer func() {
		_ = pubsub.Close()
	}()
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			b.logger.Error().Err(err).Msg("gateway redis subscription closed")
			return
		}
		b.handleFrame([]byte(msg.Payload))
	}
}

func (b *Broker) consumeNATS(ctx context.Context) {
	sub, err := b.nats.QueueSubscribe(b.natsSubject, b.natsQueue, func(msg *nats.Msg) {
		b.handleFrame(msg.Data)
	})
	if err != nil {
		b.logger.Error().Err(err).Msg("failed to subscribe to nats gateway subject")
		return
	}
	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			b.logger.Warn().Err(err).Msg("failed to drain gateway nats subscription")
		}
	}()
}

func (b *Broker) handleFrame(data []byte) {
	var frame gatewayFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		b.logger.Warn().Err(err).Msg("invalid gateway frame")
		return
	}

	if frame.Source == b.nodeID {
		return
	}

	observability.GatewayEventsTotal().WithLabelValues(frame.Event.Name).Inc()
	b.registry.Emit(frame.Room, frame.Event)
}
