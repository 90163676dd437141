// Package mqtt publishes doorbell events to the home-automation bus and
// announces the device to Home Assistant through MQTT discovery.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
)

const (
	deviceID       = "fingerprint-doorbell"
	publishTimeout = 2 * time.Second
	connectTimeout = 10 * time.Second
	qos            = byte(1)

	payloadOnline  = "online"
	payloadOffline = "offline"
	payloadPress   = "PRESS"

	PersonNobody  = "Nobody"
	PersonUnknown = "Unknown"
)

type Config struct {
	BrokerURL       string
	Username        string
	Password        string
	ClientID        string
	DiscoveryPrefix string
	RootTopic       string
}

// Client is the paho-backed automation-bus publisher. Publishes are
// fire-and-forget: failures are logged and never returned.
type Client struct {
	cfg     Config
	client  paho.Client
	factory func(*paho.ClientOptions) paho.Client

	mu     sync.RWMutex
	onRing func()
}

type Option func(*Client)

// WithClientFactory replaces paho.NewClient, mainly for tests.
func WithClientFactory(factory func(*paho.ClientOptions) paho.Client) Option {
	return func(c *Client) { c.factory = factory }
}

func New(cfg Config, opts ...Option) *Client {
	if cfg.ClientID == "" {
		cfg.ClientID = deviceID
	}
	if cfg.DiscoveryPrefix == "" {
		cfg.DiscoveryPrefix = "homeassistant"
	}
	cfg.RootTopic = strings.TrimSuffix(cfg.RootTopic, "/")

	c := &Client{cfg: cfg, factory: paho.NewClient}
	for _, opt := range opts {
		opt(c)
	}

	options := paho.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(connectTimeout).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost).
		SetWill(c.availabilityTopic(), payloadOffline, qos, true)
	if cfg.Username != "" {
		options.SetUsername(cfg.Username)
		options.SetPassword(cfg.Password)
	}

	c.client = c.factory(options)
	return c
}

// OnRingCommand registers the handler for the Home Assistant ring button.
func (c *Client) OnRingCommand(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onRing = fn
}

// Connect starts the connection. With connect retry enabled paho keeps
// trying in the background, so a broker that is down at boot is not fatal.
func (c *Client) Connect(ctx context.Context) error {
	token := c.client.Connect()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("mqtt connect: %w", err)
		}
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(connectTimeout):
		log.Warn().Str("broker", c.cfg.BrokerURL).Msg("mqtt broker not reachable yet, retrying in background")
	}
	return nil
}

func (c *Client) Close() {
	if c.client.IsConnected() {
		c.publish(c.availabilityTopic(), payloadOffline, true)
	}
	c.client.Disconnect(250)
}

func (c *Client) PublishDetectedPerson(ctx context.Context, name string, confidence, id int) {
	c.updatePerson(name, confidence, id)
}

func (c *Client) PublishUnknownPerson(ctx context.Context) {
	c.updatePerson(PersonUnknown, -1, -1)
}

func (c *Client) ClearDetectedPerson(ctx context.Context) {
	c.updatePerson(PersonNobody, -1, -1)
}

func (c *Client) PublishRingRequest(ctx context.Context) {
	c.publish(c.topic("ring"), "ring", false)
}

func (c *Client) PublishWifiSignal(ctx context.Context, dbm int) {
	c.publish(c.stateTopic("wifiSignal"), fmt.Sprintf("%d", dbm), false)
}

func (c *Client) updatePerson(name string, confidence, id int) {
	attrs, _ := json.Marshal(map[string]int{"confidence": confidence, "id": id})
	c.publish(c.topic("person/attributes"), string(attrs), false)
	c.publish(c.stateTopic("person"), name, false)
}

func (c *Client) publish(topic, payload string, retained bool) {
	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		log.Warn().Str("topic", topic).Msg("mqtt publish timed out")
		return
	}
	if err := token.Error(); err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("mqtt publish failed")
	}
}

func (c *Client) onConnect(client paho.Client) {
	log.Info().Str("broker", c.cfg.BrokerURL).Msg("mqtt connected")

	c.publishDiscovery()
	c.publish(c.availabilityTopic(), payloadOnline, true)

	token := client.Subscribe(c.commandTopic("ringBell"), qos, c.onRingMessage)
	if token.WaitTimeout(publishTimeout) && token.Error() != nil {
		log.Error().Err(token.Error()).Msg("mqtt subscribe failed")
	}
}

func (c *Client) onConnectionLost(_ paho.Client, err error) {
	log.Warn().Err(err).Msg("mqtt connection lost")
}

func (c *Client) onRingMessage(_ paho.Client, msg paho.Message) {
	if string(msg.Payload()) != payloadPress {
		return
	}
	c.mu.RLock()
	fn := c.onRing
	c.mu.RUnlock()

	log.Info().Str("topic", msg.Topic()).Msg("ring button pressed")
	if fn != nil {
		fn()
	}
}

func (c *Client) topic(suffix string) string {
	return c.cfg.RootTopic + "/" + suffix
}

func (c *Client) stateTopic(entity string) string {
	return c.topic(entity + "/state")
}

func (c *Client) commandTopic(entity string) string {
	return c.topic(entity + "/set")
}

func (c *Client) availabilityTopic() string {
	return c.topic("availability")
}
