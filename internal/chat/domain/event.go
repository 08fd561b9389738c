package domain

import (
	"encoding/json"
	"errors"
)

// EventName realtime event kind
type EventName string

const (
	// EventOnlineUsers server -> new connection, snapshot of online identities
	EventOnlineUsers EventName = "online_users"
	// EventUserStatus server -> other connections, presence delta
	EventUserStatus EventName = "user_status"
	// EventTyping relayed typing signal
	EventTyping EventName = "typing"
	// EventStopTyping relayed stop typing signal
	EventStopTyping EventName = "stop_typing"
	// EventNewMessage client -> server relay request, server -> client echo or delivery
	EventNewMessage EventName = "new_message"
	// EventConversationUpdated conversation summary changed
	EventConversationUpdated EventName = "conversation_updated"
	// EventMessageRead client -> server read, server -> original sender receipt
	EventMessageRead EventName = "message_read"
)

// PresenceStatus online / offline
type PresenceStatus string

const (
	// PresenceOnline has a live connection
	PresenceOnline PresenceStatus = "online"
	// PresenceOffline no live connection
	PresenceOffline PresenceStatus = "offline"
)

// ErrMissingEvent frame without an event name
var ErrMissingEvent = errors.New("missing event name")

// Envelope wire frame {"event": ..., "data": ...}
type Envelope struct {
	Event EventName       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Event outbound event before encoding
type Event struct {
	Name EventName
	Data interface{}
}

// Encode marshal e into an envelope frame
func (e Event) Encode() ([]byte, error) {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: e.Name, Data: data})
}

// DecodeEnvelope parse a frame, the payload stays raw for the handler table
func DecodeEnvelope(b []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return env, err
	}
	if env.Event == "" {
		return env, ErrMissingEvent
	}
	return env, nil
}

// UserStatusPayload user_status
type UserStatusPayload struct {
	UserID string         `json:"userId"`
	Status PresenceStatus `json:"status"`
}

// TypingPayload typing / stop_typing. Inbound to the server carries ReceiverID,
// outbound to the peer carries SenderID.
type TypingPayload struct {
	ConversationID string `json:"conversationId"`
	SenderID       string `json:"senderId,omitempty"`
	ReceiverID     string `json:"receiverId,omitempty"`
}

// NewMessagePayload new_message. ReceiverID is only set client -> server.
type NewMessagePayload struct {
	Message    *Message `json:"message"`
	ReceiverID string   `json:"receiverId,omitempty"`
}

// ConversationUpdatedPayload conversation_updated
type ConversationUpdatedPayload struct {
	ConversationID string   `json:"conversationId"`
	LastMessage    *Message `json:"lastMessage"`
}

// MessageReadPayload message_read
type MessageReadPayload struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
}

// OnlineUsersEvent online_users snapshot
func OnlineUsersEvent(identities []string) Event {
	if identities == nil {
		identities = []string{}
	}
	return Event{Name: EventOnlineUsers, Data: identities}
}

// UserStatusEvent user_status delta
func UserStatusEvent(identity string, status PresenceStatus) Event {
	return Event{Name: EventUserStatus, Data: UserStatusPayload{UserID: identity, Status: status}}
}
