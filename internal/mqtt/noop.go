package mqtt

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Noop is used when no broker is configured.
type Noop struct{}

func (Noop) PublishDetectedPerson(_ context.Context, name string, confidence, id int) {
	log.Debug().Str("name", name).Int("fingerId", id).Msg("mqtt disabled, detected person not published")
}

func (Noop) PublishUnknownPerson(context.Context) {}

func (Noop) ClearDetectedPerson(context.Context) {}

func (Noop) PublishRingRequest(context.Context) {}

func (Noop) PublishWifiSignal(context.Context, int) {}
