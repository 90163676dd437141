// Package push sends web push alerts to subscribed browsers.
package push

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/rs/zerolog/log"

	"github.com/fingerprintdoorbell/doorbell-server-go/internal/model"
	"github.com/fingerprintdoorbell/doorbell-server-go/internal/repository"
)

const (
	queueSize  = 16
	defaultTTL = 60
)

// Sender sends one web push message.
type Sender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

type WebPushSender struct{}

func (WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

type Alert struct {
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier queues alerts and delivers them from a single worker goroutine so
// callers never wait on the network.
type Notifier struct {
	subs    repository.PushSubscriptionRepository
	options *webpush.Options
	sender  Sender
	jobs    chan Alert

	wg sync.WaitGroup
}

type Options struct {
	PublicKey  string
	PrivateKey string
	Subject    string
}

func NewNotifier(subs repository.PushSubscriptionRepository, opts Options) *Notifier {
	return &Notifier{
		subs: subs,
		options: &webpush.Options{
			VAPIDPublicKey:  opts.PublicKey,
			VAPIDPrivateKey: opts.PrivateKey,
			Subscriber:      opts.Subject,
			TTL:             defaultTTL,
		},
		sender: WebPushSender{},
		jobs:   make(chan Alert, queueSize),
	}
}

func (n *Notifier) PublicKey() string {
	return n.options.VAPIDPublicKey
}

// Start runs the worker until ctx is cancelled.
func (n *Notifier) Start(ctx context.Context) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		for {
			select {
			case alert := <-n.jobs:
				n.deliver(ctx, alert)
			case <-ctx.Done():
				return
			}
		}
	}()
	log.Info().Msg("push notifier started")
}

// Wait blocks until the worker has exited.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

// Alert queues an alert. A full queue drops the alert.
func (n *Notifier) Alert(_ context.Context, title, body string) {
	alert := Alert{Title: title, Body: body, Timestamp: time.Now().UTC()}
	select {
	case n.jobs <- alert:
	default:
		log.Warn().Str("title", title).Msg("push queue full, dropping alert")
	}
}

func (n *Notifier) deliver(ctx context.Context, alert Alert) {
	subs, err := n.subs.FindAll(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to load push subscriptions")
		return
	}
	if len(subs) == 0 {
		return
	}

	payload, err := json.Marshal(alert)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode push alert")
		return
	}

	for _, sub := range subs {
		n.send(ctx, sub, payload)
	}
}

func (n *Notifier) send(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}

	resp, err := n.sender.Send(payload, wpSub, n.options)
	if err != nil {
		log.Error().Err(err).Str("endpoint", sub.Endpoint).Msg("push send failed")
		return
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotFound, http.StatusGone:
		log.Info().Str("endpoint", sub.Endpoint).Msg("push subscription expired, deleting")
		if err := n.subs.Delete(ctx, sub.Endpoint); err != nil {
			log.Error().Err(err).Str("endpoint", sub.Endpoint).Msg("failed to delete expired subscription")
		}
	default:
		if resp.StatusCode >= 400 {
			log.Warn().Int("status", resp.StatusCode).Str("endpoint", sub.Endpoint).Msg("push rejected")
		}
	}
}

// Noop is used when VAPID keys are not configured.
type Noop struct{}

func (Noop) Alert(context.Context, string, string) {}
