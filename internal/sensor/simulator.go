package sensor

import (
	"context"
	"sort"
	"sync"

	apperrors "github.com/fingerprintdoorbell/doorbell-server-go/internal/errors"
	"github.com/fingerprintdoorbell/doorbell-server-go/internal/model"
)

// Simulator is an in-memory sensor. Scan returns queued outcomes in order
// and NoFinger once the queue is empty.
type Simulator struct {
	mu sync.Mutex

	connected     bool
	connectErr    error
	fingers       map[int]string
	outcomes      []model.ScanOutcome
	fingerPresent bool
	pairingCode   string
	led           model.LEDState

	// Failure knobs.
	enrollCode        int
	setPairingFails   bool
	pairingReadsEmpty bool
	adminCallsFail    bool

	scanCalls   int
	enrollCalls int
	adminCalls  int
}

func NewSimulator() *Simulator {
	return &Simulator{
		connected: true,
		fingers:   make(map[int]string),
	}
}

// QueueScans appends outcomes to be returned by subsequent Scan calls.
func (s *Simulator) QueueScans(outcomes ...model.ScanOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, outcomes...)
}

func (s *Simulator) SetConnected(connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = connected
}

func (s *Simulator) SetConnectError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connectErr = err
}

func (s *Simulator) SetFingerPresent(present bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fingerPresent = present
}

// SetSensorPairingCode changes the code the sensor reports, as a swapped
// sensor would.
func (s *Simulator) SetSensorPairingCode(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pairingCode = code
}

func (s *Simulator) SetPairingReadsEmpty(empty bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pairingReadsEmpty = empty
}

func (s *Simulator) SetPairingWriteFails(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setPairingFails = fail
}

// FailEnroll makes every enroll fail with code. Zero restores success.
func (s *Simulator) FailEnroll(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enrollCode = code
}

func (s *Simulator) FailAdminCalls(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adminCallsFail = fail
}

func (s *Simulator) AddFinger(id int, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fingers[id] = name
}

func (s *Simulator) ScanCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scanCalls
}

func (s *Simulator) EnrollCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enrollCalls
}

func (s *Simulator) AdminCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adminCalls
}

func (s *Simulator) LED() model.LEDState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.led
}

func (s *Simulator) Connect(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connectErr != nil {
		s.connected = false
		return s.connectErr
	}
	s.connected = true
	return nil
}

func (s *Simulator) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *Simulator) Scan(context.Context) model.ScanOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.scanCalls++
	if len(s.outcomes) == 0 {
		return model.NoFinger()
	}
	next := s.outcomes[0]
	s.outcomes = s.outcomes[1:]
	return next
}

func (s *Simulator) Enroll(_ context.Context, slotID int, name string) model.EnrollResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.enrollCalls++
	if s.enrollCode != 0 {
		return model.EnrollResult{ReturnCode: s.enrollCode}
	}
	s.fingers[slotID] = name
	return model.EnrollResult{OK: true}
}

func (s *Simulator) IsFingerPresent(context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fingerPresent
}

func (s *Simulator) Fingerprints(context.Context) ([]model.Fingerprint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.adminCalls++
	if s.adminCallsFail {
		return nil, apperrors.SensorCommunication(cmdList, 1)
	}
	list := make([]model.Fingerprint, 0, len(s.fingers))
	for id, name := range s.fingers {
		list = append(list, model.Fingerprint{ID: id, Name: name})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (s *Simulator) DeleteFinger(_ context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.adminCalls++
	if s.adminCallsFail {
		return apperrors.SensorCommunication(cmdDelete, 1)
	}
	if _, ok := s.fingers[id]; !ok {
		return apperrors.NotFound("Fingerprint")
	}
	delete(s.fingers, id)
	return nil
}

func (s *Simulator) RenameFinger(_ context.Context, id int, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.adminCalls++
	if s.adminCallsFail {
		return apperrors.SensorCommunication(cmdRename, 1)
	}
	if _, ok := s.fingers[id]; !ok {
		return apperrors.NotFound("Fingerprint")
	}
	s.fingers[id] = name
	return nil
}

func (s *Simulator) DeleteAll(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.adminCalls++
	if s.adminCallsFail {
		return apperrors.SensorCommunication(cmdDeleteAll, 1)
	}
	s.fingers = make(map[int]string)
	return nil
}

func (s *Simulator) PairingCode(context.Context) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pairingReadsEmpty {
		return ""
	}
	return s.pairingCode
}

func (s *Simulator) SetPairingCode(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setPairingFails {
		return apperrors.SensorCommunication(cmdSetPairingCode, 1)
	}
	s.pairingCode = code
	return nil
}

func (s *Simulator) SetLEDRing(_ context.Context, state model.LEDState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.led = state
	return nil
}

func (s *Simulator) Close() error {
	s.SetConnected(false)
	return nil
}

var (
	_ Driver = (*Simulator)(nil)
	_ Driver = (*SerialDriver)(nil)
)
