package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"land-registry/registry-backend/internal/notifications"
)

func TestManagerDeliversToConnectedUser(t *testing.T) {
	m := NewManager(zap.NewNop())
	defer m.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = m.Upgrade(w, r, r.URL.Query().Get("user"))
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?user=buyer@example.com"
	conn, _, err := gorilla.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var hello notifications.WebSocketMessage
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, notifications.WSMessageTypeStatus, hello.Type)
	assert.Equal(t, 1, m.GetConnectionCount())

	err = m.Send(context.Background(), "buyer@example.com", &notifications.Notification{
		ID:      3,
		Title:   "Transaction Accepted",
		Message: "accepted",
	})
	require.NoError(t, err)

	var msg notifications.WebSocketMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, notifications.WSMessageTypeNotification, msg.Type)
	assert.Equal(t, "Transaction Accepted", msg.Data["title"])
	assert.Equal(t, "buyer@example.com", msg.Target)
}

func TestSendToDisconnectedUserFails(t *testing.T) {
	m := NewManager(zap.NewNop())
	defer m.Close()

	err := m.SendToUser("nobody@example.com", notifications.WebSocketMessage{Type: notifications.WSMessageTypePing})
	assert.Error(t, err)
	assert.Equal(t, notifications.ChannelPush, m.Name())
}
