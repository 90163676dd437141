package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/fingerprintdoorbell/doorbell-server-go/internal/errors"
	"github.com/fingerprintdoorbell/doorbell-server-go/internal/metrics"
	"github.com/fingerprintdoorbell/doorbell-server-go/internal/model"
)

const (
	msgBooted              = "System booted successfully!"
	msgSecurityPairingBoot = "Security issue! Pairing with sensor is invalid. This could potentially be an attack! If the sensor is new or has been replaced by you do a (re)pairing in settings page. MQTT messages regarding matching fingerprints will not been sent until pairing is valid again."
	msgSensorReconnected   = "Fingerprint sensor reconnected."
	msgEnrollDropped       = "Enrollment request dropped, device is not in scan mode."

	DefaultTickInterval       = 50 * time.Millisecond
	DefaultSettleDelay        = 3 * time.Second
	DefaultMaintenanceTimeout = 5 * time.Second
	DefaultReconnectInterval  = 30 * time.Second
)

type LoopSensor interface {
	Connect(ctx context.Context) error
	Connected() bool
	IsFingerPresent(ctx context.Context) bool
	Scan(ctx context.Context) model.ScanOutcome
	SetLEDRing(ctx context.Context, state model.LEDState) error
}

type ScanProcessor interface {
	Handle(ctx context.Context, outcome model.ScanOutcome) bool
}

type Enroller interface {
	Enroll(ctx context.Context, req model.EnrollmentRequest) (model.EnrollResult, error)
}

type WifiStatus interface {
	IsWifiConfigured() bool
}

type LoopConfig struct {
	TickInterval       time.Duration
	SettleDelay        time.Duration
	MaintenanceTimeout time.Duration
	ReconnectInterval  time.Duration
}

func (c LoopConfig) withDefaults() LoopConfig {
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.SettleDelay < 0 {
		c.SettleDelay = 0
	}
	if c.MaintenanceTimeout <= 0 {
		c.MaintenanceTimeout = DefaultMaintenanceTimeout
	}
	if c.ReconnectInterval <= 0 {
		c.ReconnectInterval = DefaultReconnectInterval
	}
	return c
}

type StateMachineDeps struct {
	Sensor   LoopSensor
	Guard    PairingChecker
	Scanner  ScanProcessor
	Enroller Enroller
	Wifi     WifiStatus
	Notifier Notifier
	Metrics  *metrics.Metrics
	Clock    Clock
	Config   LoopConfig
}

// maintenanceRequest is an acquire waiting for the tick loop.
type maintenanceRequest struct {
	ack chan struct{}
}

// ModeStateMachine owns the operating mode and the sensor. Only the tick
// goroutine talks to the sensor; other goroutines reach it through the enroll
// inbox or a maintenance window.
type ModeStateMachine struct {
	sensor   LoopSensor
	guard    PairingChecker
	scanner  ScanProcessor
	enroller Enroller
	wifi     WifiStatus
	notifier Notifier
	metrics  *metrics.Metrics
	clock    Clock
	cfg      LoopConfig

	mode atomic.Value

	enrollInbox chan model.EnrollmentRequest

	// One maintenance holder at a time.
	maintenanceSlot chan struct{}

	mailboxMu      sync.Mutex
	pendingAcquire *maintenanceRequest
	pendingRelease bool

	awaitMu      sync.Mutex
	awaitRelease func()

	// Owned by the tick goroutine.
	pendingEnroll *model.EnrollmentRequest
	resumeMode    model.OperatingMode
	lastReconnect time.Time
}

func NewModeStateMachine(deps StateMachineDeps) *ModeStateMachine {
	clock := deps.Clock
	if clock == nil {
		clock = RealClock()
	}
	m := &ModeStateMachine{
		sensor:          deps.Sensor,
		guard:           deps.Guard,
		scanner:         deps.Scanner,
		enroller:        deps.Enroller,
		wifi:            deps.Wifi,
		notifier:        deps.Notifier,
		metrics:         deps.Metrics,
		clock:           clock,
		cfg:             deps.Config.withDefaults(),
		enrollInbox:     make(chan model.EnrollmentRequest, 1),
		maintenanceSlot: make(chan struct{}, 1),
		resumeMode:      model.ModeScan,
	}
	m.mode.Store(model.ModeScan)
	return m
}

func (m *ModeStateMachine) Mode() model.OperatingMode {
	return m.mode.Load().(model.OperatingMode)
}

func (m *ModeStateMachine) setMode(ctx context.Context, mode model.OperatingMode) {
	prev := m.Mode()
	m.mode.Store(mode)
	m.metrics.SetMode(mode)
	if prev != mode {
		log.Debug().Str("from", prev.String()).Str("mode", mode.String()).Msg("mode changed")
		m.notifier.BroadcastMode(ctx, mode)
	}
}

// Boot connects the sensor, checks pairing and picks the initial mode.
func (m *ModeStateMachine) Boot(ctx context.Context) {
	if err := m.sensor.Connect(ctx); err != nil {
		log.Error().Err(err).Msg("fingerprint sensor not reachable")
	}
	m.lastReconnect = m.clock.Now()
	m.metrics.SetSensorConnected(m.sensor.Connected())

	if !m.guard.CheckPairingValid(ctx) {
		m.notifier.Warn(ctx, msgSecurityPairingBoot)
	}

	if m.sensor.IsFingerPresent(ctx) || !m.wifi.IsWifiConfigured() {
		log.Info().Msg("entering wifi configuration mode")
		m.setMode(ctx, model.ModeWifiConfig)
		m.setLED(ctx, model.LEDWifiConfig)
	} else {
		m.setMode(ctx, model.ModeScan)
		m.setLED(ctx, m.readyLED())
	}

	m.notifier.Append(ctx, msgBooted)
}

// Run boots and ticks until ctx is cancelled.
func (m *ModeStateMachine) Run(ctx context.Context) error {
	m.Boot(ctx)

	ticker := time.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("state machine stopped")
			return ctx.Err()
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Tick runs one loop iteration.
func (m *ModeStateMachine) Tick(ctx context.Context) {
	m.drainInbox(ctx)

	switch m.Mode() {
	case model.ModeScan:
		m.reconnectIfNeeded(ctx)
		if !m.sensor.Connected() {
			return
		}
		outcome := m.sensor.Scan(ctx)
		if m.scanner.Handle(ctx, outcome) {
			m.clock.Sleep(ctx, m.cfg.SettleDelay)
		}

	case model.ModeEnroll:
		req := m.pendingEnroll
		m.pendingEnroll = nil
		if req != nil {
			if _, err := m.enroller.Enroll(ctx, *req); err != nil {
				log.Warn().Err(err).Int("slotId", req.SlotID).Msg("enrollment did not complete")
			}
		}
		m.setMode(ctx, model.ModeScan)

	case model.ModeWifiConfig, model.ModeMaintenance:
	}
}

func (m *ModeStateMachine) drainInbox(ctx context.Context) {
	m.mailboxMu.Lock()
	release := m.pendingRelease
	acquire := m.pendingAcquire
	m.pendingRelease = false
	m.pendingAcquire = nil
	m.mailboxMu.Unlock()

	if release && m.Mode() == model.ModeMaintenance {
		log.Debug().Str("resume", m.resumeMode.String()).Msg("leaving maintenance")
		m.setMode(ctx, m.resumeMode)
	}

	if acquire != nil {
		current := m.Mode()
		if current == model.ModeEnroll {
			current = model.ModeScan
		}
		if current != model.ModeMaintenance {
			m.resumeMode = current
		}
		m.setMode(ctx, model.ModeMaintenance)
		close(acquire.ack)
	}

	select {
	case req := <-m.enrollInbox:
		if m.Mode() != model.ModeScan {
			log.Warn().Int("slotId", req.SlotID).Str("mode", m.Mode().String()).Msg("dropping enroll request")
			m.notifier.Append(ctx, msgEnrollDropped)
			return
		}
		m.pendingEnroll = &req
		m.setMode(ctx, model.ModeEnroll)
	default:
	}
}

func (m *ModeStateMachine) reconnectIfNeeded(ctx context.Context) {
	if m.sensor.Connected() {
		return
	}
	now := m.clock.Now()
	if now.Sub(m.lastReconnect) < m.cfg.ReconnectInterval {
		return
	}
	m.lastReconnect = now

	if err := m.sensor.Connect(ctx); err != nil {
		log.Debug().Err(err).Msg("sensor reconnect failed")
		m.metrics.SetSensorConnected(false)
		return
	}
	m.metrics.SetSensorConnected(true)
	m.setLED(ctx, model.LEDReady)
	m.notifier.Append(ctx, msgSensorReconnected)
}

func (m *ModeStateMachine) readyLED() model.LEDState {
	if m.sensor.Connected() {
		return model.LEDReady
	}
	return model.LEDError
}

func (m *ModeStateMachine) setLED(ctx context.Context, state model.LEDState) {
	if err := m.sensor.SetLEDRing(ctx, state); err != nil {
		log.Debug().Err(err).Str("led", string(state)).Msg("failed to set LED ring")
	}
}

// RequestEnroll queues req for the next tick. Only one request can wait at a
// time.
func (m *ModeStateMachine) RequestEnroll(ctx context.Context, req model.EnrollmentRequest) error {
	if err := validateEnrollment(ctx, m.notifier, req); err != nil {
		return err
	}
	select {
	case m.enrollInbox <- req:
		return nil
	default:
		return apperrors.Busy("an enrollment is already pending")
	}
}

// AcquireMaintenance waits until the tick loop has entered maintenance mode.
// The returned release function hands the sensor back; calling it more than
// once is harmless. On timeout no request is left behind.
func (m *ModeStateMachine) AcquireMaintenance(ctx context.Context, timeout time.Duration) (func(), error) {
	if timeout <= 0 {
		timeout = m.cfg.MaintenanceTimeout
	}
	start := m.clock.Now()
	deadline := m.clock.After(timeout)

	select {
	case m.maintenanceSlot <- struct{}{}:
	case <-deadline:
		m.metrics.MaintenanceTimedOut()
		return nil, apperrors.MaintenanceTimeout()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	req := &maintenanceRequest{ack: make(chan struct{})}
	m.mailboxMu.Lock()
	m.pendingAcquire = req
	m.mailboxMu.Unlock()

	select {
	case <-req.ack:
	case <-deadline:
		if m.withdraw(req) {
			m.metrics.MaintenanceTimedOut()
			log.Warn().Dur("timeout", timeout).Msg("maintenance request timed out")
			return nil, apperrors.MaintenanceTimeout()
		}
		<-req.ack
	case <-ctx.Done():
		if m.withdraw(req) {
			return nil, ctx.Err()
		}
		<-req.ack
	}

	m.metrics.MaintenanceAcquired(m.clock.Now().Sub(start))

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mailboxMu.Lock()
			m.pendingRelease = true
			m.mailboxMu.Unlock()
			<-m.maintenanceSlot
		})
	}, nil
}

// withdraw removes req if the tick loop has not taken it yet. It returns
// false when the loop already acknowledged, in which case the caller owns
// maintenance.
func (m *ModeStateMachine) withdraw(req *maintenanceRequest) bool {
	m.mailboxMu.Lock()
	defer m.mailboxMu.Unlock()

	if m.pendingAcquire != req {
		return false
	}
	m.pendingAcquire = nil
	<-m.maintenanceSlot
	return true
}

// AwaitMaintenanceMode acquires maintenance for a caller that releases it
// later with ReleaseMaintenance.
func (m *ModeStateMachine) AwaitMaintenanceMode(timeout time.Duration) bool {
	release, err := m.AcquireMaintenance(context.Background(), timeout)
	if err != nil {
		return false
	}
	m.awaitMu.Lock()
	m.awaitRelease = release
	m.awaitMu.Unlock()
	return true
}

func (m *ModeStateMachine) ReleaseMaintenance() {
	m.awaitMu.Lock()
	release := m.awaitRelease
	m.awaitRelease = nil
	m.awaitMu.Unlock()

	if release != nil {
		release()
	}
}
