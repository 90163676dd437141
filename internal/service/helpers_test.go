package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/fingerprintdoorbell/doorbell-server-go/internal/model"
)

// fakeClock never sleeps. After channels fire only on Expire.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	sleeps  []time.Duration
	waiters []chan time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
}

func (c *fakeClock) After(time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan time.Time, 1)
	c.waiters = append(c.waiters, ch)
	return ch
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Expire fires every pending After channel.
func (c *fakeClock) Expire() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.waiters {
		ch <- c.now
	}
	c.waiters = nil
}

func (c *fakeClock) Waiters() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

type recordingNotifier struct {
	mu          sync.Mutex
	lines       []string
	warnings    []string
	fingerlists [][]model.Fingerprint
	modes       []model.OperatingMode
}

func (n *recordingNotifier) Append(_ context.Context, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.lines = append(n.lines, message)
}

func (n *recordingNotifier) Warn(_ context.Context, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.warnings = append(n.warnings, message)
}

func (n *recordingNotifier) BroadcastFingerprints(_ context.Context, list []model.Fingerprint) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.fingerlists = append(n.fingerlists, list)
}

func (n *recordingNotifier) BroadcastMode(_ context.Context, mode model.OperatingMode) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.modes = append(n.modes, mode)
}

func (n *recordingNotifier) Lines() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.lines...)
}

func (n *recordingNotifier) Warnings() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.warnings...)
}

func (n *recordingNotifier) Fingerlists() [][]model.Fingerprint {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([][]model.Fingerprint(nil), n.fingerlists...)
}

func (n *recordingNotifier) Count(prefix string) int {
	count := 0
	for _, line := range n.Lines() {
		if strings.HasPrefix(line, prefix) {
			count++
		}
	}
	return count
}

// recordingPublisher counts publishes without expectations.
type recordingPublisher struct {
	mu       sync.Mutex
	detected []string
	unknown  int
	cleared  int
	rings    int
	signals  []int
}

func (p *recordingPublisher) PublishDetectedPerson(_ context.Context, name string, _, _ int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.detected = append(p.detected, name)
}

func (p *recordingPublisher) PublishUnknownPerson(context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unknown++
}

func (p *recordingPublisher) ClearDetectedPerson(context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cleared++
}

func (p *recordingPublisher) PublishRingRequest(context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rings++
}

func (p *recordingPublisher) PublishWifiSignal(_ context.Context, dbm int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signals = append(p.signals, dbm)
}

func (p *recordingPublisher) Detected() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.detected...)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishDetectedPerson(ctx context.Context, name string, confidence, id int) {
	m.Called(ctx, name, confidence, id)
}

func (m *mockPublisher) PublishUnknownPerson(ctx context.Context) {
	m.Called(ctx)
}

func (m *mockPublisher) ClearDetectedPerson(ctx context.Context) {
	m.Called(ctx)
}

func (m *mockPublisher) PublishRingRequest(ctx context.Context) {
	m.Called(ctx)
}

func (m *mockPublisher) PublishWifiSignal(ctx context.Context, dbm int) {
	m.Called(ctx, dbm)
}

type mockRinger struct {
	mock.Mock
}

func (m *mockRinger) Ring(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type recordingAlerter struct {
	mu     sync.Mutex
	titles []string
}

func (a *recordingAlerter) Alert(_ context.Context, title, _ string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.titles = append(a.titles, title)
}

func (a *recordingAlerter) Titles() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.titles...)
}

type mockDetectionRepo struct {
	mock.Mock
}

func (m *mockDetectionRepo) Create(ctx context.Context, params model.CreateDetectionParams) (*model.Detection, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Detection), args.Error(1)
}

func (m *mockDetectionRepo) FindRecent(ctx context.Context, limit, offset int) ([]model.Detection, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Detection), args.Error(1)
}

func (m *mockDetectionRepo) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockDetectionRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// memorySettingsRepo keeps JSON payloads in a map.
type memorySettingsRepo struct {
	mu        sync.Mutex
	records   map[string][]byte
	saveErr   error
	deleteErr map[string]error
}

func newMemorySettingsRepo() *memorySettingsRepo {
	return &memorySettingsRepo{
		records:   make(map[string][]byte),
		deleteErr: make(map[string]error),
	}
}

func (r *memorySettingsRepo) Load(_ context.Context, name string, dest interface{}) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	payload, ok := r.records[name]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(payload, dest)
}

func (r *memorySettingsRepo) Save(_ context.Context, name string, value interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	r.records[name] = payload
	return nil
}

func (r *memorySettingsRepo) Delete(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.deleteErr[name]; err != nil {
		return err
	}
	delete(r.records, name)
	return nil
}

func (r *memorySettingsRepo) Has(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.records[name]
	return ok
}

func (r *memorySettingsRepo) SetSaveErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saveErr = err
}

// fakeLock grants maintenance immediately unless err is set.
type fakeLock struct {
	mu       sync.Mutex
	err      error
	acquired int
	released int
}

func (l *fakeLock) AcquireMaintenance(context.Context, time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	l.acquired++
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.released++
	}, nil
}

type stubGuard struct {
	mu    sync.Mutex
	valid bool
	calls int
}

func (g *stubGuard) CheckPairingValid(context.Context) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return g.valid
}

func (g *stubGuard) Pair(context.Context) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.valid = true
	return true
}
