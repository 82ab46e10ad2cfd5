package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/framecraft-studio/framecraft-api/utils"
)

// OrdersChannel is the firehose channel every order change is published
// to. Per-order channels are derived from it.
const OrdersChannel = "orders.events"

// OrderChange is the payload published on every workflow transition.
type OrderChange struct {
	OrderID     uint   `json:"order_id"`
	OrderNumber string `json:"order_number"`
	Status      string `json:"status"`
	ActorID     uint   `json:"actor_id"`
	Type        string `json:"type"`
}

// EventPublisher pushes order changes onto the realtime change feed.
type EventPublisher interface {
	PublishOrderEvent(change OrderChange) error
}

var eventPublisherInstance EventPublisher

// InitEventPublisher connects to Redis and installs the publisher. An
// empty redisURL installs nothing; workflow transitions then skip
// publishing entirely.
func InitEventPublisher(redisURL string) (EventPublisher, error) {
	if redisURL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}

	publisher := &RedisEventPublisher{client: redis.NewClient(opts)}
	eventPublisherInstance = publisher
	return publisher, nil
}

// GetEventPublisher returns the installed publisher, or nil when the
// change feed is not configured.
func GetEventPublisher() EventPublisher {
	return eventPublisherInstance
}

// SetEventPublisher installs a publisher (primarily for testing)
func SetEventPublisher(p EventPublisher) {
	eventPublisherInstance = p
}

// RedisEventPublisher publishes order changes on Redis pub/sub: once on
// the firehose channel and once on the per-order channel.
type RedisEventPublisher struct {
	client *redis.Client
}

// PublishOrderEvent publishes the change, retrying transient failures
// with the shared backoff helper.
func (p *RedisEventPublisher) PublishOrderEvent(change OrderChange) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to marshal order change: %w", err)
	}

	return utils.Retry(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := p.client.Publish(ctx, OrdersChannel, payload).Err(); err != nil {
			return err
		}
		return p.client.Publish(ctx, fmt.Sprintf("orders.%d", change.OrderID), payload).Err()
	})
}

// MockEventPublisher records published changes for assertions in tests.
type MockEventPublisher struct {
	mu      sync.Mutex
	Changes []OrderChange
}

// NewMockEventPublisher creates an empty mock publisher.
func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{}
}

// PublishOrderEvent records the change.
func (m *MockEventPublisher) PublishOrderEvent(change OrderChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Changes = append(m.Changes, change)
	return nil
}

// Published returns a copy of everything recorded so far.
func (m *MockEventPublisher) Published() []OrderChange {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]OrderChange, len(m.Changes))
	copy(out, m.Changes)
	return out
}
