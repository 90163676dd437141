package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fingerprintdoorbell/doorbell-server-go/internal/model"
	"github.com/fingerprintdoorbell/doorbell-server-go/internal/sse"
)

// readEvent reads one "event:"/"data:" block, skipping comment lines.
func readEvent(t *testing.T, reader *bufio.Reader) (string, string) {
	t.Helper()
	var eventType, data string
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			eventType = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && eventType != "":
			return eventType, data
		}
	}
}

func TestEventsHandler_Stream(t *testing.T) {
	broker := sse.NewBroker(nil)
	defer broker.Close()

	h := NewEventsHandler(broker, &stubModes{mode: model.ModeScan}, stubLogs{"booted"})
	server := httptest.NewServer(h)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	reader := bufio.NewReader(resp.Body)

	eventType, data := readEvent(t, reader)
	assert.Equal(t, sse.EventConnected, eventType)
	var connected connectedEvent
	require.NoError(t, json.Unmarshal([]byte(data), &connected))
	assert.Equal(t, connectedEvent{Mode: model.ModeScan, Lines: []string{"booted"}}, connected)

	require.Eventually(t, func() bool { return broker.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, broker.Publish(ctx, sse.EventMessage, "Match found"))

	eventType, data = readEvent(t, reader)
	assert.Equal(t, sse.EventMessage, eventType)
	assert.Equal(t, `"Match found"`, data)
}

func TestEventsHandler_Heartbeat(t *testing.T) {
	broker := sse.NewBroker(nil)
	defer broker.Close()

	h := NewEventsHandler(broker, &stubModes{mode: model.ModeScan}, stubLogs(nil))
	h.heartbeat = 10 * time.Millisecond
	server := httptest.NewServer(h)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	_, data := readEvent(t, reader)
	assert.Contains(t, data, `"lines":[]`)

	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if line == ": ping\n" {
			break
		}
	}
}

func TestEventsHandler_sendRawEvent(t *testing.T) {
	h := &EventsHandler{}
	rec := httptest.NewRecorder()

	err := h.sendRawEvent(rec, rec, sse.Event{
		Type: sse.EventFingerlist,
		Data: json.RawMessage(`[{"id":1,"name":"Alice"}]`),
	})

	assert.NoError(t, err)
	assert.Equal(t, "event: fingerlist\ndata: [{\"id\":1,\"name\":\"Alice\"}]\n\n", rec.Body.String())
}
