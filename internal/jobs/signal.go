package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

type SignalSource interface {
	SignalStrength() (int, error)
}

type SignalPublisher interface {
	PublishWifiSignal(ctx context.Context, dbm int)
}

// SignalJob publishes the WiFi signal strength on a fixed interval.
type SignalJob struct {
	source    SignalSource
	publisher SignalPublisher
	interval  time.Duration
	done      chan struct{}
}

func NewSignalJob(source SignalSource, publisher SignalPublisher, interval time.Duration) *SignalJob {
	return &SignalJob{
		source:    source,
		publisher: publisher,
		interval:  interval,
		done:      make(chan struct{}),
	}
}

func (j *SignalJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("wifi signal job started")
}

func (j *SignalJob) Stop() {
	select {
	case <-j.done:
		return
	default:
	}
	close(j.done)
	log.Info().Msg("wifi signal job stopped")
}

func (j *SignalJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.publish()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.publish()
		}
	}
}

func (j *SignalJob) publish() {
	dbm, err := j.source.SignalStrength()
	if err != nil {
		log.Debug().Err(err).Msg("wifi signal unavailable")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	j.publisher.PublishWifiSignal(ctx, dbm)
}
