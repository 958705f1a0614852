package websocket

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"land-registry/registry-backend/internal/notifications"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 64
)

// Manager handles WebSocket connections and routes notifications to users
type Manager struct {
	connections map[string]*Connection
	mu          sync.RWMutex
	upgrader    websocket.Upgrader
	logger      *zap.Logger
}

// Connection represents a WebSocket client connection
type Connection struct {
	ID          string
	UserEmail   string
	Conn        *websocket.Conn
	Send        chan notifications.WebSocketMessage
	ConnectedAt time.Time
	closeOnce   sync.Once
}

func (c *Connection) close() {
	c.closeOnce.Do(func() { close(c.Send) })
}

// NewManager creates a new WebSocket manager
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		connections: make(map[string]*Connection),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger,
	}
}

// HandleConnection upgrades the request and attaches it to userEmail.
func (m *Manager) HandleConnection(w http.ResponseWriter, r *http.Request, userEmail string) (*Connection, error) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		UserEmail:   userEmail,
		Conn:        conn,
		Send:        make(chan notifications.WebSocketMessage, sendBuffer),
		ConnectedAt: time.Now(),
	}

	m.mu.Lock()
	m.connections[connection.ID] = connection
	m.mu.Unlock()

	m.logger.Debug("WebSocket connected",
		zap.String("connection_id", connection.ID),
		zap.String("user", userEmail))

	connection.Send <- notifications.WebSocketMessage{
		Type:      notifications.WSMessageTypeStatus,
		Data:      map[string]interface{}{"status": "connected", "connection_id": connection.ID},
		Timestamp: time.Now(),
		Target:    userEmail,
	}

	go m.readPump(connection)
	go m.writePump(connection)

	return connection, nil
}

// Upgrade matches notifications.UpgradeFunc.
func (m *Manager) Upgrade(w http.ResponseWriter, r *http.Request, userEmail string) error {
	_, err := m.HandleConnection(w, r, userEmail)
	return err
}

func (m *Manager) remove(conn *Connection) {
	m.mu.Lock()
	if _, ok := m.connections[conn.ID]; ok {
		delete(m.connections, conn.ID)
		conn.close()
	}
	m.mu.Unlock()

	m.logger.Debug("WebSocket disconnected",
		zap.String("connection_id", conn.ID),
		zap.String("user", conn.UserEmail))
}

// readPump only services control frames; clients do not send commands.
func (m *Manager) readPump(conn *Connection) {
	defer func() {
		m.remove(conn)
		conn.Conn.Close()
	}()

	conn.Conn.SetReadLimit(512)
	conn.Conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.Conn.SetPongHandler(func(string) error {
		conn.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				m.logger.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}
	}
}

// writePump pumps messages to the WebSocket connection
func (m *Manager) writePump(conn *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.Conn.WriteJSON(message); err != nil {
				return
			}

		case <-ticker.C:
			conn.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendToUser queues a message on every connection the user has open.
func (m *Manager) SendToUser(userEmail string, message notifications.WebSocketMessage) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sent := 0
	for _, conn := range m.connections {
		if conn.UserEmail != userEmail {
			continue
		}
		message.Target = userEmail
		select {
		case conn.Send <- message:
			sent++
		default:
			m.logger.Warn("WebSocket buffer full, dropping message",
				zap.String("connection_id", conn.ID))
		}
	}

	if sent == 0 {
		return fmt.Errorf("user %s not connected", userEmail)
	}
	return nil
}

// Name implements notifications.Channel.
func (m *Manager) Name() string { return notifications.ChannelPush }

// Send implements notifications.Channel.
func (m *Manager) Send(_ context.Context, recipient string, n *notifications.Notification) error {
	return m.SendToUser(recipient, notifications.WebSocketMessage{
		Type: notifications.WSMessageTypeNotification,
		Data: map[string]interface{}{
			"id":      n.ID,
			"type":    n.Type,
			"title":   n.Title,
			"message": n.Message,
		},
		Timestamp: n.CreatedAt,
		Channel:   "private",
	})
}

// GetConnectionCount returns the number of active connections
func (m *Manager) GetConnectionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

// Close closes all connections
func (m *Manager) Close() {
	m.mu.Lock()
	for id, conn := range m.connections {
		conn.close()
		delete(m.connections, id)
	}
	m.mu.Unlock()
}
