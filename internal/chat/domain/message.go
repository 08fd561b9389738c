package domain

import "time"

// MessageStatus message lifecycle, only ever moves forward: sent < delivered < read
type MessageStatus string

const (
	// StatusSent stored by the CRUD path, not yet handed to the realtime layer
	StatusSent MessageStatus = "sent"
	// StatusDelivered handed to the realtime layer
	StatusDelivered MessageStatus = "delivered"
	// StatusRead viewed by the recipient
	StatusRead MessageStatus = "read"
)

var statusOrder = []MessageStatus{StatusSent, StatusDelivered, StatusRead}

// Rank position of s in the lifecycle, -1 when s is unknown
func (s MessageStatus) Rank() int {
	for i, v := range statusOrder {
		if v == s {
			return i
		}
	}
	return -1
}

// Valid s is one of sent, delivered, read
func (s MessageStatus) Valid() bool {
	return s.Rank() >= 0
}

// Before s comes strictly earlier than o in the lifecycle
func (s MessageStatus) Before(o MessageStatus) bool {
	return s.Rank() < o.Rank()
}

// Lower every status strictly before s
func (s MessageStatus) Lower() []MessageStatus {
	r := s.Rank()
	if r <= 0 {
		return nil
	}
	out := make([]MessageStatus, r)
	copy(out, statusOrder[:r])
	return out
}

// Message 表示一則聊天訊息
type Message struct {
	ID             string        `bson:"_id" json:"_id"`
	ConversationID string        `bson:"conversation" json:"conversation"`
	SenderID       string        `bson:"sender" json:"sender"`
	Content        string        `bson:"content" json:"content"`
	Status         MessageStatus `bson:"status" json:"status"`
	CreatedAt      time.Time     `bson:"created_at" json:"createdAt"`
	UpdatedAt      time.Time     `bson:"updated_at" json:"updatedAt"`
}

// ConversationUnreadInfo definition unread by conversation
type ConversationUnreadInfo struct {
	ConversationID string `bson:"_id" json:"conversationId"`
	UnreadCount    int    `bson:"unread_count" json:"unreadCount"`
}

// LifecycleEvent one persisted status transition, published to the lifecycle stream
type LifecycleEvent struct {
	MessageID      string        `json:"messageId"`
	ConversationID string        `json:"conversationId"`
	SenderID       string        `json:"senderId"`
	From           MessageStatus `json:"from,omitempty"`
	To             MessageStatus `json:"to"`
	At             time.Time     `json:"at"`
}
