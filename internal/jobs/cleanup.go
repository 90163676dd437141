package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fingerprintdoorbell/doorbell-server-go/internal/repository"
)

// CleanupJob prunes detection records older than the retention period.
type CleanupJob struct {
	detectionRepo repository.DetectionRepository
	retention     time.Duration
	interval      time.Duration
	now           func() time.Time
	done          chan struct{}
}

// NewCleanupJob returns a job that keeps detections for retention. A zero
// retention keeps everything.
func NewCleanupJob(detectionRepo repository.DetectionRepository, retention, interval time.Duration) *CleanupJob {
	return &CleanupJob{
		detectionRepo: detectionRepo,
		retention:     retention,
		interval:      interval,
		now:           time.Now,
		done:          make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	if j.retention <= 0 {
		log.Info().Msg("detection retention disabled, cleanup job not started")
		return
	}
	go j.run()
	log.Info().Dur("interval", j.interval).Dur("retention", j.retention).Msg("cleanup job started")
}

func (j *CleanupJob) Stop() {
	select {
	case <-j.done:
		return
	default:
	}
	close(j.done)
	log.Info().Msg("cleanup job stopped")
}

func (j *CleanupJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.cleanup()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.cleanup()
		}
	}
}

func (j *CleanupJob) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := j.now().Add(-j.retention)
	count, err := j.detectionRepo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		log.Error().Err(err).Msg("failed to cleanup detections")
	} else if count > 0 {
		log.Info().Int64("count", count).Time("cutoff", cutoff).Msg("cleaned up detections")
	}
}
