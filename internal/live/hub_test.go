package live

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/domain"
	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/events"
)

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	srv := httptest.NewServer(NewServer("", hub, nil).Handler)
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHubRelaysBusEvents(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	bus := events.NewBus(zerolog.Nop())
	readings := bus.Subscribe(events.ReadingPersisted, 4)
	alerts := bus.Subscribe(events.AlertRaised, 4)
	done := make(chan struct{})
	go func() {
		hub.Consume(context.Background(), readings, alerts)
		close(done)
	}()

	bus.PublishReading(domain.Reading{ID: 7, WindSpeed: 5.5})
	var msg struct {
		Type    string         `json:"type"`
		Payload domain.Reading `json:"payload"`
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "reading", msg.Type)
	assert.Equal(t, int64(7), msg.Payload.ID)

	bus.PublishAlert(domain.Alert{ID: "a1", Kind: domain.AlertOverheat})
	var am struct {
		Type    string       `json:"type"`
		Payload domain.Alert `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&am))
	assert.Equal(t, "alert", am.Type)
	assert.Equal(t, domain.AlertOverheat, am.Payload.Kind)

	bus.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Consume did not return after bus close")
	}
}

func TestHubDropsDisconnectedClients(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHealth(t *testing.T) {
	_, srv := startHub(t)
	res, err := srv.Client().Get(srv.URL + "/health")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, 200, res.StatusCode)
}
