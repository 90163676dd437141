package sse

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	redisclient "github.com/fingerprintdoorbell/doorbell-server-go/internal/redis"
)

const (
	HeartbeatInterval = 30 * time.Second
	clientBufferSize  = 32
)

// Event types sent to dashboards.
const (
	EventMessage    = "message"
	EventFingerlist = "fingerlist"
	EventMode       = "mode"
	EventConnected  = "connected"
)

type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type Client struct {
	Events chan Event
	Done   chan struct{}
}

// Broker fans events out to connected SSE clients. With a redis client the
// events travel through redis pub/sub so every instance sharing the channel
// sees them; without one they are delivered in-process.
type Broker struct {
	redis   *redisclient.Client
	clients map[*Client]bool
	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
	started sync.Once
}

func NewBroker(redisClient *redisclient.Client) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{
		redis:   redisClient,
		clients: make(map[*Client]bool),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (b *Broker) Subscribe() *Client {
	client := &Client{
		Events: make(chan Event, clientBufferSize),
		Done:   make(chan struct{}),
	}

	if b.redis != nil {
		b.started.Do(func() { go b.subscribeToRedis() })
	}

	b.mu.Lock()
	b.clients[client] = true
	clientCount := len(b.clients)
	b.mu.Unlock()

	log.Debug().
		Int("clientCount", clientCount).
		Msg("sse client subscribed")

	return client
}

func (b *Broker) Unsubscribe(client *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.clients[client]; ok {
		delete(b.clients, client)
		close(client.Done)

		log.Debug().
			Int("clientCount", len(b.clients)).
			Msg("sse client unsubscribed")
	}
}

// Publish marshals data and delivers it as an event of the given type.
func (b *Broker) Publish(ctx context.Context, eventType string, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	event := Event{Type: eventType, Data: raw}

	if b.redis == nil {
		b.broadcast(event)
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.redis.Publish(ctx, redisclient.EventChannel, payload).Err()
}

func (b *Broker) subscribeToRedis() {
	pubsub := b.redis.Subscribe(b.ctx, redisclient.EventChannel)
	defer pubsub.Close()

	log.Debug().
		Str("channel", redisclient.EventChannel).
		Msg("redis pubsub subscribed")

	ch := pubsub.Channel()

	for {
		select {
		case <-b.ctx.Done():
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Error().Err(err).Msg("failed to unmarshal event")
				continue
			}

			b.broadcast(event)
		}
	}
}

func (b *Broker) broadcast(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for client := range b.clients {
		select {
		case client.Events <- event:
		default:
			log.Warn().
				Str("type", event.Type).
				Msg("client event buffer full, dropping event")
		}
	}
}

func (b *Broker) Close() {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	for client := range b.clients {
		close(client.Done)
	}
	b.clients = make(map[*Client]bool)
}

func (b *Broker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}
