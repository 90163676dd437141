package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fingerprintdoorbell/doorbell-server-go/internal/model"
	"github.com/fingerprintdoorbell/doorbell-server-go/internal/service"
)

type stubModes struct {
	mode       model.OperatingMode
	enrollErr  error
	enrollReqs []model.EnrollmentRequest
}

func (s *stubModes) Mode() model.OperatingMode { return s.mode }

func (s *stubModes) RequestEnroll(_ context.Context, req model.EnrollmentRequest) error {
	s.enrollReqs = append(s.enrollReqs, req)
	return s.enrollErr
}

type mockSystem struct {
	mock.Mock
}

func (m *mockSystem) FactoryReset(ctx context.Context) {
	m.Called(ctx)
}

func (m *mockSystem) Repair(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *mockSystem) SaveWifiSettings(ctx context.Context, w model.WifiSettings) error {
	return m.Called(ctx, w).Error(0)
}

func (m *mockSystem) SaveAppSettings(ctx context.Context, update service.AppSettingsUpdate) error {
	return m.Called(ctx, update).Error(0)
}

func (m *mockSystem) RequestReboot(ctx context.Context) {
	m.Called(ctx)
}

type stubSettings struct {
	wifi model.WifiSettings
	app  model.AppSettings
}

func (s *stubSettings) WifiSettings() model.WifiSettings { return s.wifi }
func (s *stubSettings) AppSettings() model.AppSettings   { return s.app }

type stubLogs []string

func (s stubLogs) Lines() []string { return []string(s) }

type mockFingerprints struct {
	mock.Mock
}

func (m *mockFingerprints) List(ctx context.Context) ([]model.Fingerprint, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]model.Fingerprint)
	return list, args.Error(1)
}

func (m *mockFingerprints) Delete(ctx context.Context, id int) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockFingerprints) Rename(ctx context.Context, id int, name string) error {
	return m.Called(ctx, id, name).Error(0)
}

func (m *mockFingerprints) DeleteAll(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// serve runs one request through router and decodes a JSON body into a map.
func serve(t *testing.T, router chi.Router, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var decoded map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

