package notifications

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Event types emitted by the core. Delivery (templates, channels,
// recipients) is the notification service's concern, not ours.
const (
	EventAssetCreated        = "asset.created"
	EventAssetTransferred    = "asset.transferred"
	EventAssetRetired        = "asset.retired"
	EventMaterialValueChange = "asset.material_value_change"
	EventCustodyAssigned     = "custody.assigned"
	EventCampaignCreated     = "inventory.campaign_created"
	EventInventoryAnomaly    = "inventory.anomaly"
	EventMaintenancePlanned  = "maintenance.planned"
	EventMaintenanceDone     = "maintenance.done"
)

// DefaultChannel is the Redis pub/sub channel events land on unless
// NOTIFICATION_CHANNEL overrides it.
const DefaultChannel = "patrimony:events"

// Notifier is fire-and-forget: implementations never raise into the
// calling operation.
type Notifier interface {
	Notify(eventType string, payload map[string]interface{})
}

type envelope struct {
	EventID   uuid.UUID              `json:"event_id"`
	EventType string                 `json:"event_type"`
	EmittedAt time.Time              `json:"emitted_at"`
	Payload   map[string]interface{} `json:"payload"`
}

// RedisNotifier publishes events on a Redis channel for the notification
// service to consume.
type RedisNotifier struct {
	client  *redis.Client
	channel string
	log     *zap.Logger
}

func NewRedisNotifier(redisURL, channel string, log *zap.Logger) (*RedisNotifier, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	return &RedisNotifier{
		client:  redis.NewClient(opts),
		channel: channel,
		log:     log,
	}, nil
}

func (n *RedisNotifier) Notify(eventType string, payload map[string]interface{}) {
	go func() {
		defer func() {
			if p := recover(); p != nil {
				n.log.Warn("notification publish panicked", zap.Any("panic", p))
			}
		}()

		body, err := json.Marshal(envelope{
			EventID:   uuid.New(),
			EventType: eventType,
			EmittedAt: time.Now().UTC(),
			Payload:   payload,
		})
		if err != nil {
			n.log.Warn("failed to marshal notification", zap.String("event_type", eventType), zap.Error(err))
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := n.client.Publish(ctx, n.channel, body).Err(); err != nil {
			n.log.Warn("failed to publish notification",
				zap.String("event_type", eventType), zap.Error(err))
		}
	}()
}

// NoopNotifier is used when no Redis endpoint is configured.
type NoopNotifier struct{}

func (NoopNotifier) Notify(string, map[string]interface{}) {}
