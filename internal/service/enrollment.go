package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/fingerprintdoorbell/doorbell-server-go/internal/audit"
	apperrors "github.com/fingerprintdoorbell/doorbell-server-go/internal/errors"
	"github.com/fingerprintdoorbell/doorbell-server-go/internal/metrics"
	"github.com/fingerprintdoorbell/doorbell-server-go/internal/model"
	"github.com/fingerprintdoorbell/doorbell-server-go/internal/util"
)

const msgEnrollSuccess = "Enrollment successful. You can now use your new finger for scanning."

type EnrollSensor interface {
	Enroll(ctx context.Context, slotID int, name string) model.EnrollResult
	Fingerprints(ctx context.Context) ([]model.Fingerprint, error)
}

// FingerlistSink receives the fingerprint list after it changed.
// *FingerprintService satisfies it.
type FingerlistSink interface {
	Update(ctx context.Context, list []model.Fingerprint)
}

// EnrollmentController runs one enrollment on the state machine goroutine,
// which already owns the sensor.
type EnrollmentController struct {
	sensor   EnrollSensor
	notifier Notifier
	list     FingerlistSink
	metrics  *metrics.Metrics
}

func NewEnrollmentController(sensor EnrollSensor, notifier Notifier, list FingerlistSink, m *metrics.Metrics) *EnrollmentController {
	return &EnrollmentController{
		sensor:   sensor,
		notifier: notifier,
		list:     list,
		metrics:  m,
	}
}

func (c *EnrollmentController) Enroll(ctx context.Context, req model.EnrollmentRequest) (model.EnrollResult, error) {
	if err := validateEnrollment(ctx, c.notifier, req); err != nil {
		return model.EnrollResult{}, err
	}

	name := util.CleanDisplayName(req.DisplayName, req.SlotID)
	log.Info().Int("slotId", req.SlotID).Str("name", name).Msg("starting enrollment")

	result := c.sensor.Enroll(ctx, req.SlotID, name)
	c.metrics.Enrollment(result.OK)
	if !result.OK {
		c.notifier.Append(ctx, fmt.Sprintf("Enrollment failed. (Code %d)", result.ReturnCode))
		return result, apperrors.SensorCommunication("enroll", result.ReturnCode)
	}

	c.notifier.Append(ctx, msgEnrollSuccess)
	audit.Log(ctx, audit.Event{
		Type:     audit.EventFingerprintEnroll,
		FingerID: req.SlotID,
		Details:  map[string]interface{}{"name": name},
	})

	list, err := c.sensor.Fingerprints(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to reload fingerprint list after enrollment")
		return result, nil
	}
	c.list.Update(ctx, list)
	return result, nil
}

func validateEnrollment(ctx context.Context, notifier Notifier, req model.EnrollmentRequest) error {
	if req.SlotInRange() {
		return nil
	}
	notifier.Append(ctx, fmt.Sprintf("Invalid memory slot id '%d'", req.SlotID))
	return apperrors.ValidationError(fmt.Sprintf("slot id must be between %d and %d", model.MinSlotID, model.MaxSlotID))
}
