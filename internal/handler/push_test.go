package handler

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fingerprintdoorbell/doorbell-server-go/internal/model"
)

type memorySubscriptions struct {
	mu   sync.Mutex
	subs map[string]model.PushSubscription
	err  error
}

func newMemorySubscriptions() *memorySubscriptions {
	return &memorySubscriptions{subs: make(map[string]model.PushSubscription)}
}

func (m *memorySubscriptions) Upsert(_ context.Context, sub model.PushSubscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.subs[sub.Endpoint] = sub
	return nil
}

func (m *memorySubscriptions) FindAll(context.Context) ([]model.PushSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.PushSubscription, 0, len(m.subs))
	for _, s := range m.subs {
		out = append(out, s)
	}
	return out, m.err
}

func (m *memorySubscriptions) Delete(_ context.Context, endpoint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subs, endpoint)
	return m.err
}

type fixedKey string

func (k fixedKey) PublicKey() string { return string(k) }

const testEndpoint = "https://push.example.com/send/abc"

func TestPushHandler_VAPIDKey(t *testing.T) {
	t.Run("returns the public key", func(t *testing.T) {
		h := NewPushHandler(fixedKey("BPubKey"), newMemorySubscriptions())

		rec, body := serve(t, h.Routes(), http.MethodGet, "/vapid-key", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "BPubKey", body["publicKey"])
	})

	t.Run("push disabled", func(t *testing.T) {
		h := NewPushHandler(nil, newMemorySubscriptions())

		rec, _ := serve(t, h.Routes(), http.MethodGet, "/vapid-key", "")

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestPushHandler_Subscribe(t *testing.T) {
	t.Run("stores the subscription", func(t *testing.T) {
		subs := newMemorySubscriptions()
		h := NewPushHandler(fixedKey("k"), subs)

		rec, _ := serve(t, h.Routes(), http.MethodPost, "/subscriptions",
			`{"endpoint":"`+testEndpoint+`","expirationTime":null,"keys":{"p256dh":"pk","auth":"au"}}`)

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, model.PushSubscription{Endpoint: testEndpoint, P256dh: "pk", Auth: "au"}, subs.subs[testEndpoint])
	})

	t.Run("rejects plain http endpoints", func(t *testing.T) {
		subs := newMemorySubscriptions()
		h := NewPushHandler(fixedKey("k"), subs)

		rec, _ := serve(t, h.Routes(), http.MethodPost, "/subscriptions",
			`{"endpoint":"http://push.example.com/x","keys":{"p256dh":"pk","auth":"au"}}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, subs.subs)
	})

	t.Run("requires keys", func(t *testing.T) {
		h := NewPushHandler(fixedKey("k"), newMemorySubscriptions())

		rec, _ := serve(t, h.Routes(), http.MethodPost, "/subscriptions", `{"endpoint":"`+testEndpoint+`"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("storage failure", func(t *testing.T) {
		subs := newMemorySubscriptions()
		subs.err = assert.AnError
		h := NewPushHandler(fixedKey("k"), subs)

		rec, body := serve(t, h.Routes(), http.MethodPost, "/subscriptions",
			`{"endpoint":"`+testEndpoint+`","keys":{"p256dh":"pk","auth":"au"}}`)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "DATABASE_ERROR", body["code"])
	})
}

func TestPushHandler_Unsubscribe(t *testing.T) {
	subs := newMemorySubscriptions()
	subs.subs[testEndpoint] = model.PushSubscription{Endpoint: testEndpoint}
	h := NewPushHandler(fixedKey("k"), subs)

	rec, _ := serve(t, h.Routes(), http.MethodDelete, "/subscriptions", `{"endpoint":"`+testEndpoint+`"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, subs.subs)

	rec, _ = serve(t, h.Routes(), http.MethodDelete, "/subscriptions", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
