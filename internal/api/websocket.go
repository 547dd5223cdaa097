// internal/api/websocket.go
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/forgelab/scriptforge/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The UI is served from the same host; previews live on other ports.
		return true
	},
}

// WebSocketClient is one browser connection subscribed to a session.
type WebSocketClient struct {
	conn      *websocket.Conn
	sessionID string
	send      chan []byte
	closed    int32
	lastPing  time.Time
}

// WebSocketManager fans events out to session subscribers.
type WebSocketManager struct {
	connections map[string]map[*WebSocketClient]bool // sessionID -> clients
	register    chan *WebSocketClient
	unregister  chan *WebSocketClient
	mutex       sync.RWMutex
	pingTimeout time.Duration
}

// NewWebSocketManager creates the manager and starts its event loop.
func NewWebSocketManager() *WebSocketManager {
	manager := &WebSocketManager{
		connections: make(map[string]map[*WebSocketClient]bool),
		register:    make(chan *WebSocketClient, 64),
		unregister:  make(chan *WebSocketClient, 64),
		pingTimeout: 60 * time.Second,
	}

	go manager.run()

	return manager
}

func (m *WebSocketManager) run() {
	cleanupTicker := time.NewTicker(30 * time.Second)
	defer cleanupTicker.Stop()

	for {
		select {
		case client := <-m.register:
			m.mutex.Lock()
			if m.connections[client.sessionID] == nil {
				m.connections[client.sessionID] = make(map[*WebSocketClient]bool)
			}
			m.connections[client.sessionID][client] = true
			m.mutex.Unlock()

		case client := <-m.unregister:
			m.removeClient(client)

		case <-cleanupTicker.C:
			m.cleanupExpiredConnections()
		}
	}
}

func (m *WebSocketManager) removeClient(client *WebSocketClient) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if clients, ok := m.connections[client.sessionID]; ok {
		if _, present := clients[client]; present {
			delete(clients, client)
			client.Close()
			if len(clients) == 0 {
				delete(m.connections, client.sessionID)
			}
		}
	}
}

func (m *WebSocketManager) cleanupExpiredConnections() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for sessionID, clients := range m.connections {
		for client := range clients {
			if time.Since(client.lastPing) > m.pingTimeout {
				delete(clients, client)
				client.Close()
			}
		}
		if len(clients) == 0 {
			delete(m.connections, sessionID)
		}
	}
}

// BroadcastToSession sends a message to every subscriber of one session.
func (m *WebSocketManager) BroadcastToSession(sessionID string, message map[string]interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("websocket: failed to marshal broadcast: %v", err)
		return
	}

	m.mutex.RLock()
	defer m.mutex.RUnlock()

	for client := range m.connections[sessionID] {
		client.enqueue(data)
	}
}

// BroadcastAll sends a message to every connected client. Preview events are
// global because the supervisor tracks a single process.
func (m *WebSocketManager) BroadcastAll(message map[string]interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("websocket: failed to marshal broadcast: %v", err)
		return
	}

	m.mutex.RLock()
	defer m.mutex.RUnlock()

	for _, clients := range m.connections {
		for client := range clients {
			client.enqueue(data)
		}
	}
}

// NotifyPreview implements services.PreviewNotifier.
func (m *WebSocketManager) NotifyPreview(event string, state *models.PreviewState) {
	m.BroadcastAll(map[string]interface{}{
		"type":      event,
		"preview":   state,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// Status returns connection counts for debugging.
func (m *WebSocketManager) Status() map[string]interface{} {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	total := 0
	perSession := make(map[string]int, len(m.connections))
	for sessionID, clients := range m.connections {
		perSession[sessionID] = len(clients)
		total += len(clients)
	}

	return map[string]interface{}{
		"total_connections": total,
		"sessions":          perSession,
	}
}

// ServeSession upgrades the request and subscribes it to session events.
func (m *WebSocketManager) ServeSession(c *gin.Context, sessionID string) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket: upgrade failed: %v", err)
		return
	}

	client := &WebSocketClient{
		conn:      conn,
		sessionID: sessionID,
		send:      make(chan []byte, 64),
		lastPing:  time.Now(),
	}

	m.register <- client

	go m.writeLoop(client)
	go m.readLoop(client)
}

func (m *WebSocketManager) readLoop(client *WebSocketClient) {
	defer func() {
		m.unregister <- client
	}()

	client.conn.SetReadDeadline(time.Now().Add(m.pingTimeout))
	client.conn.SetPongHandler(func(string) error {
		client.lastPing = time.Now()
		client.conn.SetReadDeadline(time.Now().Add(m.pingTimeout))
		return nil
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
		client.lastPing = time.Now()
		client.conn.SetReadDeadline(time.Now().Add(m.pingTimeout))
	}
}

func (m *WebSocketManager) writeLoop(client *WebSocketClient) {
	pingTicker := time.NewTicker(m.pingTimeout / 2)
	defer func() {
		pingTicker.Stop()
		client.Close()
	}()

	for {
		select {
		case data, ok := <-client.send:
			if !ok {
				return
			}
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-pingTicker.C:
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close marks the client closed and closes the connection.
func (client *WebSocketClient) Close() {
	if atomic.CompareAndSwapInt32(&client.closed, 0, 1) {
		client.conn.Close()
	}
}

// IsClosed reports whether the client has been closed.
func (client *WebSocketClient) IsClosed() bool {
	return atomic.LoadInt32(&client.closed) == 1
}

func (client *WebSocketClient) enqueue(data []byte) {
	if client.IsClosed() {
		return
	}
	select {
	case client.send <- data:
	default:
		// Slow consumer, drop the message rather than block the broadcast.
	}
}
