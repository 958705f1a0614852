package notifications

import (
	"context"
	"time"

	"gorm.io/datatypes"
)

// Event types
const (
	EventTransactionCreated = "transaction.created"
	EventStatusChanged      = "transaction.status_changed"
)

// Event describes a change in a transaction that participants should hear about.
type Event struct {
	Type          string    `json:"type"`
	TransactionID uint      `json:"transaction_id"`
	PropertyID    string    `json:"property_id"`
	From          string    `json:"from,omitempty"`
	To            string    `json:"to"`
	BuyerEmail    string    `json:"buyer_email"`
	SellerEmail   string    `json:"seller_email"`
	ActorEmail    string    `json:"actor_email"`
	TxHash        string    `json:"tx_hash,omitempty"`
	At            time.Time `json:"at"`
}

// Recipients returns the participants to notify, excluding the actor.
func (e Event) Recipients() []string {
	var out []string
	for _, r := range []string{e.BuyerEmail, e.SellerEmail} {
		if r != "" && r != e.ActorEmail {
			out = append(out, r)
		}
	}
	return out
}

// Notifier receives workflow events. Implementations must not fail the
// caller: delivery problems are handled internally.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// NopNotifier discards events.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Event) {}

// Channel delivers a stored notification to one recipient.
type Channel interface {
	Name() string
	Send(ctx context.Context, recipient string, n *Notification) error
}

// Channel names
const (
	ChannelPush  = "push"
	ChannelEmail = "email"
)

// PreferenceSource reports which channels a user accepts.
type PreferenceSource interface {
	ChannelEnabled(ctx context.Context, email, channel string) (bool, error)
}

// Notification is an in-app notification kept for a user.
type Notification struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	UserEmail string         `json:"user_email" gorm:"not null;index"`
	Type      string         `json:"type" gorm:"not null"`
	Title     string         `json:"title" gorm:"not null"`
	Message   string         `json:"message" gorm:"not null"`
	Data      datatypes.JSON `json:"data"`
	Read      bool           `json:"read" gorm:"not null;default:false"`
	CreatedAt time.Time      `json:"created_at"`
}

// WebSocketMessage represents WebSocket message format
type WebSocketMessage struct {
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Channel   string                 `json:"channel,omitempty"`
	Target    string                 `json:"target,omitempty"`
	Source    string                 `json:"source,omitempty"`
}

// WebSocket message types
const (
	WSMessageTypeNotification = "notification"
	WSMessageTypeStatus       = "status"
	WSMessageTypePing         = "ping"
)
