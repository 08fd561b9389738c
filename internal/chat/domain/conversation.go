package domain

import (
	"time"

	"direct_chat_service/pkg"
)

// Conversation two party conversation
type Conversation struct {
	ID           string    `bson:"_id" json:"_id"`
	Participants []string  `bson:"participants" json:"participants"`
	LastMessage  *Message  `bson:"last_message,omitempty" json:"lastMessage"`
	UnreadCount  int       `bson:"-" json:"unreadCount"`
	CreatedAt    time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updatedAt"`
}

// HasParticipant memberID is one of the two participants
func (c *Conversation) HasParticipant(memberID string) bool {
	return pkg.Contains(c.Participants, memberID)
}

// Peer the participant that is not self, empty when self is not a participant
func (c *Conversation) Peer(self string) string {
	if !c.HasParticipant(self) {
		return ""
	}
	for _, p := range c.Participants {
		if p != self {
			return p
		}
	}
	return ""
}
