package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vehicle_parking/internal/domain"
)

func TestWebSocketManager_BroadcastsReservationEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	manager := NewWebSocketManager(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go manager.Run(ctx)

	r := gin.New()
	r.GET("/ws", NewWebSocketHandler(manager).HandleWebSocket)
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return manager.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	event := domain.ReservationEvent{
		Type:          domain.EventReservationCompleted,
		ReservationID: 9,
		UserID:        2,
		PlotID:        1,
		SlotID:        4,
		SlotStatus:    domain.SlotVacant,
		OccurredAt:    time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC),
	}
	require.NoError(t, manager.Publish(context.Background(), event))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var got domain.ReservationEvent
	require.NoError(t, json.Unmarshal(payload, &got))
	assert.Equal(t, event, got)

	conn.Close()
	assert.Eventually(t, func() bool { return manager.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestWebSocketManager_StalledClientDoesNotDelayOthers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	manager := NewWebSocketManager(zap.NewNop())
	manager.writeTimeout = 3 * time.Second
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go manager.Run(ctx)

	r := gin.New()
	r.GET("/ws", NewWebSocketHandler(manager).HandleWebSocket)
	srv := httptest.NewServer(r)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	// Never reads, so the server's writes to it block once the socket buffers fill.
	stalled, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer stalled.Close()
	healthy, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer healthy.Close()
	require.Eventually(t, func() bool { return manager.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	big := bytes.Repeat([]byte("x"), 8<<20)
	for i := 0; i < 3; i++ {
		manager.broadcast <- big
	}

	start := time.Now()
	require.NoError(t, healthy.SetReadDeadline(time.Now().Add(2*time.Second)))
	for i := 0; i < 3; i++ {
		_, payload, err := healthy.ReadMessage()
		require.NoError(t, err)
		assert.Len(t, payload, len(big))
	}
	assert.Less(t, time.Since(start), manager.writeTimeout)

	assert.Eventually(t, func() bool { return manager.ClientCount() == 1 }, 6*time.Second, 20*time.Millisecond,
		"the stalled client is dropped after its write deadline")
}
