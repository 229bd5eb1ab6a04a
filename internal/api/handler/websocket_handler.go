package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"vehicle_parking/internal/domain"
)

const wsWriteTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsClient owns one connection. Only its writer goroutine writes to conn.
type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// WebSocketManager pushes reservation events to every connected dashboard.
// It implements events.Publisher.
type WebSocketManager struct {
	clients    map[*websocket.Conn]*wsClient
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan []byte
	done       chan struct{}
	mutex      sync.RWMutex
	logger     *zap.Logger

	writeTimeout time.Duration
	clientBuffer int
}

func NewWebSocketManager(logger *zap.Logger) *WebSocketManager {
	return &WebSocketManager{
		clients:      make(map[*websocket.Conn]*wsClient),
		register:     make(chan *websocket.Conn),
		unregister:   make(chan *websocket.Conn),
		broadcast:    make(chan []byte, 64),
		done:         make(chan struct{}),
		logger:       logger,
		writeTimeout: wsWriteTimeout,
		clientBuffer: 16,
	}
}

// Run serves register, unregister and broadcast requests until ctx is done,
// then closes every client. It never writes to a connection itself, so a
// stalled client cannot hold up other clients.
func (wsm *WebSocketManager) Run(ctx context.Context) {
	defer close(wsm.done)
	for {
		select {
		case <-ctx.Done():
			wsm.mutex.Lock()
			for conn, client := range wsm.clients {
				close(client.send)
				conn.Close()
				delete(wsm.clients, conn)
			}
			wsm.mutex.Unlock()
			return

		case conn := <-wsm.register:
			client := &wsClient{conn: conn, send: make(chan []byte, wsm.clientBuffer)}
			wsm.mutex.Lock()
			wsm.clients[conn] = client
			total := len(wsm.clients)
			wsm.mutex.Unlock()
			go wsm.writePump(client)
			wsm.logger.Debug("websocket client connected", zap.Int("total", total))

		case conn := <-wsm.unregister:
			wsm.mutex.Lock()
			wsm.drop(conn)
			total := len(wsm.clients)
			wsm.mutex.Unlock()
			wsm.logger.Debug("websocket client disconnected", zap.Int("total", total))

		case message := <-wsm.broadcast:
			wsm.mutex.Lock()
			for conn, client := range wsm.clients {
				select {
				case client.send <- message:
				default:
					wsm.logger.Debug("dropping websocket client with a full send buffer")
					wsm.drop(conn)
				}
			}
			wsm.mutex.Unlock()
		}
	}
}

// drop must be called with the lock held.
func (wsm *WebSocketManager) drop(conn *websocket.Conn) {
	client, ok := wsm.clients[conn]
	if !ok {
		return
	}
	delete(wsm.clients, conn)
	close(client.send)
	conn.Close()
}

func (wsm *WebSocketManager) writePump(client *wsClient) {
	for message := range client.send {
		_ = client.conn.SetWriteDeadline(time.Now().Add(wsm.writeTimeout))
		if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			wsm.logger.Debug("websocket write failed", zap.Error(err))
			select {
			case wsm.unregister <- client.conn:
			case <-wsm.done:
			}
			// Drain until drop closes the channel.
			for range client.send {
			}
			return
		}
	}
}

func (wsm *WebSocketManager) ClientCount() int {
	wsm.mutex.RLock()
	defer wsm.mutex.RUnlock()
	return len(wsm.clients)
}

// Publish queues the event for broadcast. It does not wait for delivery and
// fails when the queue is full.
func (wsm *WebSocketManager) Publish(_ context.Context, event domain.ReservationEvent) error {
	message, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal websocket event: %w", err)
	}
	select {
	case wsm.broadcast <- message:
		return nil
	default:
		return fmt.Errorf("websocket broadcast queue is full")
	}
}

type WebSocketHandler struct {
	wsManager *WebSocketManager
}

func NewWebSocketHandler(wsManager *WebSocketManager) *WebSocketHandler {
	return &WebSocketHandler{wsManager: wsManager}
}

// GET /ws
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.wsManager.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	select {
	case h.wsManager.register <- conn:
	case <-h.wsManager.done:
		conn.Close()
		return
	}

	// Reads only detect the disconnect; clients send nothing meaningful.
	go func() {
		defer func() {
			select {
			case h.wsManager.unregister <- conn:
			case <-h.wsManager.done:
			}
		}()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					h.wsManager.logger.Debug("websocket read error", zap.Error(err))
				}
				return
			}
		}
	}()
}
