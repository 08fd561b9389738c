package app

import (
	"direct_chat_service/internal/chat/domain"
)

// TypingRelay forwards typing signals to the receiver when online, nothing is stored
type TypingRelay struct {
	presence PresenceRegistry
}

// NewTypingRelay create TypingRelay
func NewTypingRelay(presence PresenceRegistry) *TypingRelay {
	return &TypingRelay{presence: presence}
}

// Typing sender started typing
func (t *TypingRelay) Typing(sender string, req domain.TypingPayload) {
	t.relay(domain.EventTyping, sender, req)
}

// StopTyping sender stopped typing or sent
func (t *TypingRelay) StopTyping(sender string, req domain.TypingPayload) {
	t.relay(domain.EventStopTyping, sender, req)
}

func (t *TypingRelay) relay(name domain.EventName, sender string, req domain.TypingPayload) {
	if req.ReceiverID == "" || req.ReceiverID == sender {
		return
	}
	conn, ok := t.presence.Lookup(req.ReceiverID)
	if !ok {
		return
	}
	emit(conn, domain.Event{
		Name: name,
		Data: domain.TypingPayload{ConversationID: req.ConversationID, SenderID: sender},
	})
}
