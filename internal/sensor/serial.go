package sensor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"go.bug.st/serial"

	"github.com/fingerprintdoorbell/doorbell-server-go/internal/config"
	apperrors "github.com/fingerprintdoorbell/doorbell-server-go/internal/errors"
	"github.com/fingerprintdoorbell/doorbell-server-go/internal/model"
)

const readPollInterval = 100 * time.Millisecond

// Port is the part of a serial port the driver needs. serial.Port satisfies it.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

// inputResetter is implemented by ports that can discard unread input.
// serial.Port does.
type inputResetter interface {
	ResetInputBuffer() error
}

// OpenFunc opens the named port at the given baud rate.
type OpenFunc func(name string, baud int) (Port, error)

func openSerial(name string, baud int) (Port, error) {
	return serial.Open(name, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
}

// SerialDriver drives the sensor bridge over a serial line using
// newline-delimited JSON.
type SerialDriver struct {
	portName string
	baud     int
	open     OpenFunc

	callTimeout   time.Duration
	enrollTimeout time.Duration

	mu        sync.Mutex
	port      Port
	pending   []byte
	connected atomic.Bool
}

type SerialOption func(*SerialDriver)

func WithOpenFunc(open OpenFunc) SerialOption {
	return func(d *SerialDriver) { d.open = open }
}

func WithTimeouts(call, enroll time.Duration) SerialOption {
	return func(d *SerialDriver) {
		d.callTimeout = call
		d.enrollTimeout = enroll
	}
}

func NewSerialDriver(portName string, baud int, opts ...SerialOption) *SerialDriver {
	d := &SerialDriver{
		portName:      portName,
		baud:          baud,
		open:          openSerial,
		callTimeout:   config.SensorCallTimeout,
		enrollTimeout: config.SensorEnrollTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Connect (re)opens the port and verifies the bridge answers a ping.
func (d *SerialDriver) Connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.closeLocked()

	port, err := d.open(d.portName, d.baud)
	if err != nil {
		return apperrors.SensorCommunication("open port", 0).WithCause(err)
	}
	if err := port.SetReadTimeout(readPollInterval); err != nil {
		_ = port.Close()
		return apperrors.SensorCommunication("configure port", 0).WithCause(err)
	}
	if r, ok := port.(inputResetter); ok {
		if err := r.ResetInputBuffer(); err != nil {
			_ = port.Close()
			return apperrors.SensorCommunication("reset port", 0).WithCause(err)
		}
	}
	d.port = port
	d.pending = nil
	d.connected.Store(true)

	var resp response
	if err := d.callLocked(ctx, request{Cmd: cmdPing}, d.callTimeout, &resp); err != nil {
		return err
	}

	log.Info().Str("port", d.portName).Int("baud", d.baud).Msg("sensor connected")
	return nil
}

func (d *SerialDriver) Connected() bool {
	return d.connected.Load()
}

func (d *SerialDriver) Scan(ctx context.Context) model.ScanOutcome {
	var resp response
	if err := d.call(ctx, request{Cmd: cmdScan}, d.callTimeout, &resp); err != nil {
		return model.ScanFailed(apperrors.ReturnCode(err))
	}
	return resp.outcome()
}

func (d *SerialDriver) Enroll(ctx context.Context, slotID int, name string) model.EnrollResult {
	var resp response
	if err := d.call(ctx, request{Cmd: cmdEnroll, ID: slotID, Name: name}, d.enrollTimeout, &resp); err != nil {
		return model.EnrollResult{ReturnCode: apperrors.ReturnCode(err)}
	}
	return model.EnrollResult{OK: true}
}

func (d *SerialDriver) IsFingerPresent(ctx context.Context) bool {
	var resp response
	if err := d.call(ctx, request{Cmd: cmdPresent}, d.callTimeout, &resp); err != nil {
		return false
	}
	return resp.Present
}

func (d *SerialDriver) Fingerprints(ctx context.Context) ([]model.Fingerprint, error) {
	var resp response
	if err := d.call(ctx, request{Cmd: cmdList}, d.callTimeout, &resp); err != nil {
		return nil, err
	}
	if resp.Fingers == nil {
		return []model.Fingerprint{}, nil
	}
	return resp.Fingers, nil
}

func (d *SerialDriver) DeleteFinger(ctx context.Context, id int) error {
	var resp response
	return d.call(ctx, request{Cmd: cmdDelete, ID: id}, d.callTimeout, &resp)
}

func (d *SerialDriver) RenameFinger(ctx context.Context, id int, name string) error {
	var resp response
	return d.call(ctx, request{Cmd: cmdRename, ID: id, Name: name}, d.callTimeout, &resp)
}

func (d *SerialDriver) DeleteAll(ctx context.Context) error {
	var resp response
	return d.call(ctx, request{Cmd: cmdDeleteAll}, d.callTimeout, &resp)
}

func (d *SerialDriver) PairingCode(ctx context.Context) string {
	var resp response
	if err := d.call(ctx, request{Cmd: cmdGetPairingCode}, d.callTimeout, &resp); err != nil {
		return ""
	}
	return resp.PairingCode
}

func (d *SerialDriver) SetPairingCode(ctx context.Context, code string) error {
	var resp response
	return d.call(ctx, request{Cmd: cmdSetPairingCode, PairingCode: code}, d.callTimeout, &resp)
}

func (d *SerialDriver) SetLEDRing(ctx context.Context, state model.LEDState) error {
	var resp response
	return d.call(ctx, request{Cmd: cmdLED, State: string(state)}, d.callTimeout, &resp)
}

func (d *SerialDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closeLocked()
}

func (d *SerialDriver) closeLocked() error {
	d.connected.Store(false)
	if d.port == nil {
		return nil
	}
	err := d.port.Close()
	d.port = nil
	return err
}

func (d *SerialDriver) call(ctx context.Context, req request, timeout time.Duration, resp *response) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.callLocked(ctx, req, timeout, resp)
}

// callLocked writes one request line and waits for one response line. A
// transport failure closes the port so a late reply can never be read as the
// answer to a later request; Connect must run before the next call. A
// bridge-reported failure (ok=false) keeps the link up.
func (d *SerialDriver) callLocked(ctx context.Context, req request, timeout time.Duration, resp *response) error {
	if d.port == nil {
		return apperrors.SensorCommunication(req.Cmd, 0)
	}

	line, err := json.Marshal(req)
	if err != nil {
		return apperrors.Internal("encode sensor request").WithCause(err)
	}
	if _, err := d.port.Write(append(line, '\n')); err != nil {
		d.linkFailed(req.Cmd, err)
		return apperrors.SensorCommunication(req.Cmd, 0).WithCause(err)
	}

	raw, err := d.readLine(ctx, timeout)
	if err != nil {
		d.linkFailed(req.Cmd, err)
		return apperrors.SensorCommunication(req.Cmd, 0).WithCause(err)
	}
	if err := json.Unmarshal(raw, resp); err != nil {
		return apperrors.SensorCommunication(req.Cmd, 0).WithCause(fmt.Errorf("garbled response %q: %w", raw, err))
	}
	if !resp.OK {
		return apperrors.SensorCommunication(req.Cmd, resp.Code)
	}
	return nil
}

func (d *SerialDriver) readLine(ctx context.Context, timeout time.Duration) ([]byte, error) {
	deadline := time.Now().Add(timeout)
	buf := make([]byte, 256)

	for {
		if i := bytes.IndexByte(d.pending, '\n'); i >= 0 {
			line := bytes.TrimSpace(d.pending[:i])
			d.pending = d.pending[i+1:]
			if len(line) == 0 {
				continue
			}
			return line, nil
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("no response within %s", timeout)
		}

		n, err := d.port.Read(buf)
		if n > 0 {
			d.pending = append(d.pending, buf[:n]...)
		}
		if err != nil {
			return nil, err
		}
	}
}

func (d *SerialDriver) linkFailed(cmd string, err error) {
	if d.connected.Load() {
		log.Error().Err(err).Str("cmd", cmd).Str("port", d.portName).Msg("sensor link lost")
	}
	if cerr := d.closeLocked(); cerr != nil {
		log.Warn().Err(cerr).Str("port", d.portName).Msg("failed to close sensor port")
	}
	d.pending = nil
}
