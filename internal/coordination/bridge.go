// Package coordination spans the realtime fan-out across instances. A user
// may be connected to any instance behind the load balancer, so every
// hub-bound event is also published on a Redis channel; each instance's
// subscriber re-injects events that originated elsewhere into its local
// hub. Delivery stays at-most-once and best-effort end to end.
package coordination

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/openvax/vaxbook/internal/domain"
	"github.com/openvax/vaxbook/internal/metrics"
)

const eventsChannel = "realtime:events"

const (
	kindNotify = "notify"
	kindStaff  = "staff"
	kindSlots  = "slots"
	kindKick   = "kick"
)

// envelope is the wire form of a cross-instance fan-out event.
type envelope struct {
	InstanceID string       `json:"instanceId"`
	Kind       string       `json:"kind"`
	UserID     uuid.UUID    `json:"userId,omitempty"`
	CenterID   uuid.UUID    `json:"centerId,omitempty"`
	Date       string       `json:"date,omitempty"`
	Frame      domain.Frame `json:"frame,omitempty"`
}

// Bridge wraps a local hub as a domain.Notifier that also publishes every
// event to Redis. Services talk to the Bridge instead of the hub directly;
// on a single-instance deployment the hub is used without one.
type Bridge struct {
	hub        domain.Notifier
	redis      *redis.Client
	instanceID string
}

func NewBridge(hub domain.Notifier, client *redis.Client, instanceID string) *Bridge {
	return &Bridge{hub: hub, redis: client, instanceID: instanceID}
}

func (b *Bridge) Notify(userID uuid.UUID, frame domain.Frame) {
	b.hub.Notify(userID, frame)
	b.publish(envelope{Kind: kindNotify, UserID: userID, Frame: frame})
}

func (b *Bridge) BroadcastToStaff(centerID uuid.UUID, frame domain.Frame) {
	b.hub.BroadcastToStaff(centerID, frame)
	b.publish(envelope{Kind: kindStaff, CenterID: centerID, Frame: frame})
}

func (b *Bridge) BroadcastSlotUpdate(centerID uuid.UUID, date string) {
	b.hub.BroadcastSlotUpdate(centerID, date)
	b.publish(envelope{Kind: kindSlots, CenterID: centerID, Date: date})
}

func (b *Bridge) Kick(userID uuid.UUID) {
	b.hub.Kick(userID)
	b.publish(envelope{Kind: kindKick, UserID: userID})
}

func (b *Bridge) publish(env envelope) {
	env.InstanceID = b.instanceID
	data, err := json.Marshal(env)
	if err != nil {
		slog.Error("failed to marshal fan-out envelope", "kind", env.Kind, "error", err)
		return
	}
	if err := b.redis.Publish(context.Background(), eventsChannel, data).Err(); err != nil {
		slog.Warn("failed to publish fan-out event", "kind", env.Kind, "error", err)
	}
}

// Start subscribes to the events channel and replays remote events into
// the local hub. Blocks until ctx is cancelled.
func (b *Bridge) Start(ctx context.Context) {
	pubsub := b.redis.Subscribe(ctx, eventsChannel)
	defer func() {
		_ = pubsub.Close()
	}()

	ch := pubsub.Channel()
	for {
		select {
		case msg := <-ch:
			if msg == nil {
				return
			}
			b.handle(msg.Payload)
		case <-ctx.Done():
			return
		}
	}
}

func (b *Bridge) handle(payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		slog.Warn("invalid fan-out envelope", "error", err)
		return
	}
	if env.InstanceID == b.instanceID {
		// Already delivered locally when it was published.
		return
	}
	metrics.PubSubMessagesReceived.WithLabelValues(eventsChannel).Inc()

	switch env.Kind {
	case kindNotify:
		b.hub.Notify(env.UserID, env.Frame)
	case kindStaff:
		b.hub.BroadcastToStaff(env.CenterID, env.Frame)
	case kindSlots:
		b.hub.BroadcastSlotUpdate(env.CenterID, env.Date)
	case kindKick:
		b.hub.Kick(env.UserID)
	default:
		slog.Warn("unknown fan-out event kind", "kind", env.Kind)
	}
}

// NewClient connects to Redis from a URL and verifies the connection.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}
