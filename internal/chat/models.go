package chat

import "time"

// MessageType distinguishes text from recorded audio.
type MessageType string

const (
	TypeText  MessageType = "text"
	TypeAudio MessageType = "audio"
)

// Message is one entry in a property's conversation. For audio messages
// Message holds the file store reference.
type Message struct {
	ID          uint        `json:"id" gorm:"primaryKey"`
	PropertyID  string      `json:"property_id" gorm:"not null;index"`
	SenderEmail string      `json:"sender_email" gorm:"not null"`
	Message     string      `json:"message" gorm:"type:text;not null"`
	Type        MessageType `json:"type" gorm:"not null;default:text"`
	CreatedAt   time.Time   `json:"created_at" gorm:"index"`
}

func (Message) TableName() string {
	return "messages"
}

type SendRequest struct {
	PropertyID string `json:"property_id" binding:"required"`
	Message    string `json:"message" binding:"required"`
}
