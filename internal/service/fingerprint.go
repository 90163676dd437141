package service

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"

	"github.com/fingerprintdoorbell/doorbell-server-go/internal/audit"
	apperrors "github.com/fingerprintdoorbell/doorbell-server-go/internal/errors"
	"github.com/fingerprintdoorbell/doorbell-server-go/internal/metrics"
	"github.com/fingerprintdoorbell/doorbell-server-go/internal/model"
	"github.com/fingerprintdoorbell/doorbell-server-go/internal/util"
)

const (
	fingerlistCacheKey = "fingerlist"
	msgDeletingAll     = "Deleting all fingerprints..."
	msgFingerDBFailed  = "Finger database could not be deleted."
)

// MaintenanceLock grants exclusive sensor access. *ModeStateMachine
// satisfies it.
type MaintenanceLock interface {
	AcquireMaintenance(ctx context.Context, timeout time.Duration) (func(), error)
}

type FingerprintSensor interface {
	Fingerprints(ctx context.Context) ([]model.Fingerprint, error)
	DeleteFinger(ctx context.Context, id int) error
	RenameFinger(ctx context.Context, id int, name string) error
	DeleteAll(ctx context.Context) error
}

// FingerprintService serves the administrative fingerprint operations. Every
// sensor call happens inside a maintenance window.
type FingerprintService struct {
	lock     MaintenanceLock
	sensor   FingerprintSensor
	notifier Notifier
	metrics  *metrics.Metrics
	cache    *cache.Cache
	timeout  time.Duration
}

func NewFingerprintService(lock MaintenanceLock, sensor FingerprintSensor, notifier Notifier, m *metrics.Metrics, ttl, maintenanceTimeout time.Duration) *FingerprintService {
	return &FingerprintService{
		lock:     lock,
		sensor:   sensor,
		notifier: notifier,
		metrics:  m,
		cache:    cache.New(ttl, 2*ttl),
		timeout:  maintenanceTimeout,
	}
}

// List returns the enrolled fingerprints, from cache when fresh.
func (s *FingerprintService) List(ctx context.Context) ([]model.Fingerprint, error) {
	if cached, ok := s.cache.Get(fingerlistCacheKey); ok {
		s.metrics.CacheHit()
		return copyFingerprints(cached.([]model.Fingerprint)), nil
	}
	s.metrics.CacheMiss()

	var list []model.Fingerprint
	err := s.withMaintenance(ctx, func() error {
		var err error
		list, err = s.sensor.Fingerprints(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.cache.SetDefault(fingerlistCacheKey, copyFingerprints(list))
	return list, nil
}

// Update replaces the cached list and broadcasts it.
func (s *FingerprintService) Update(ctx context.Context, list []model.Fingerprint) {
	s.cache.SetDefault(fingerlistCacheKey, copyFingerprints(list))
	s.notifier.BroadcastFingerprints(ctx, list)
}

func (s *FingerprintService) Delete(ctx context.Context, id int) error {
	if err := validateSlot(id); err != nil {
		return err
	}

	list, err := s.mutate(ctx, func() error {
		return s.sensor.DeleteFinger(ctx, id)
	})
	if err != nil {
		return err
	}

	audit.Log(ctx, audit.Event{Type: audit.EventFingerprintDelete, FingerID: id})
	s.notifier.Append(ctx, fmt.Sprintf("Fingerprint %d deleted.", id))
	s.refresh(ctx, list)
	return nil
}

func (s *FingerprintService) Rename(ctx context.Context, id int, name string) error {
	if err := validateSlot(id); err != nil {
		return err
	}
	name = util.CleanDisplayName(name, id)

	list, err := s.mutate(ctx, func() error {
		return s.sensor.RenameFinger(ctx, id, name)
	})
	if err != nil {
		return err
	}

	audit.Log(ctx, audit.Event{
		Type:     audit.EventFingerprintRename,
		FingerID: id,
		Details:  map[string]interface{}{"name": name},
	})
	s.refresh(ctx, list)
	return nil
}

func (s *FingerprintService) DeleteAll(ctx context.Context) error {
	s.notifier.Append(ctx, msgDeletingAll)
	if err := s.deleteAll(ctx); err != nil {
		s.notifier.Append(ctx, msgFingerDBFailed)
		return err
	}
	return nil
}

func (s *FingerprintService) deleteAll(ctx context.Context) error {
	list, err := s.mutate(ctx, func() error {
		return s.sensor.DeleteAll(ctx)
	})
	if err != nil {
		return err
	}
	audit.Log(ctx, audit.Event{Type: audit.EventFingerprintDelete, Details: map[string]interface{}{"all": true}})
	s.refresh(ctx, list)
	return nil
}

// mutate runs op and reloads the list in the same maintenance window.
func (s *FingerprintService) mutate(ctx context.Context, op func() error) ([]model.Fingerprint, error) {
	var list []model.Fingerprint
	err := s.withMaintenance(ctx, func() error {
		if err := op(); err != nil {
			return err
		}
		var err error
		list, err = s.sensor.Fingerprints(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("failed to reload fingerprint list")
			list = nil
		}
		return nil
	})
	return list, err
}

// refresh publishes a reloaded list, or drops the cache when reload failed.
func (s *FingerprintService) refresh(ctx context.Context, list []model.Fingerprint) {
	if list == nil {
		s.cache.Delete(fingerlistCacheKey)
		return
	}
	s.Update(ctx, list)
}

func (s *FingerprintService) withMaintenance(ctx context.Context, fn func() error) error {
	release, err := s.lock.AcquireMaintenance(ctx, s.timeout)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

func validateSlot(id int) error {
	if id < model.MinSlotID || id > model.MaxSlotID {
		return apperrors.InvalidInput("id", fmt.Sprintf("must be between %d and %d", model.MinSlotID, model.MaxSlotID))
	}
	return nil
}

func copyFingerprints(list []model.Fingerprint) []model.Fingerprint {
	if list == nil {
		return nil
	}
	out := make([]model.Fingerprint, len(list))
	copy(out, list)
	return out
}
