package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces every key and channel this server touches, so one
// redis can be shared with other home automation services.
const KeyPrefix = "doorbell"

// EventChannel carries live events between instances sharing the broker.
var EventChannel = Key("events")

// Key joins parts under KeyPrefix with ':'.
func Key(parts ...string) string {
	return KeyPrefix + ":" + strings.Join(parts, ":")
}

// Client wraps go-redis so callers get the shared connection setup.
type Client struct {
	*redis.Client
}

// NewClient parses redisURL, connects and pings. A failed ping closes the
// client before returning.
func NewClient(ctx context.Context, redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opts.ClientName == "" {
		opts.ClientName = KeyPrefix
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}

	return &Client{client}, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.Client.Close()
}
