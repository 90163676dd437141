// Package gpio drives the doorbell output line.
package gpio

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Pin pulses a sysfs GPIO value file (for example
// /sys/class/gpio/gpio19/value) to press the doorbell.
type Pin struct {
	path  string
	pulse time.Duration
	sleep func(context.Context, time.Duration)

	mu sync.Mutex
}

func NewPin(path string, pulse time.Duration) *Pin {
	return &Pin{path: path, pulse: pulse, sleep: sleepCtx}
}

// Ring drives the line high for the pulse duration, then low. The line is
// driven low even when ctx is cancelled mid-pulse.
func (p *Pin) Ring(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.write("1"); err != nil {
		return err
	}
	p.sleep(ctx, p.pulse)
	if err := p.write("0"); err != nil {
		return err
	}

	log.Debug().Str("path", p.path).Dur("pulse", p.pulse).Msg("doorbell rung")
	return nil
}

func (p *Pin) write(value string) error {
	if err := os.WriteFile(p.path, []byte(value), 0); err != nil {
		return fmt.Errorf("write gpio %s: %w", p.path, err)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// Noop is used when no doorbell line is wired.
type Noop struct{}

func (Noop) Ring(context.Context) error {
	log.Debug().Msg("doorbell output not configured")
	return nil
}
