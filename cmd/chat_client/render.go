package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"direct_chat_service/internal/chat/domain"
	"direct_chat_service/internal/client/bridge"
	"direct_chat_service/internal/client/store"
)

const summaryWidth = 40

// summary one line preview of the last message
func summary(m *domain.Message, selfID string) string {
	if m == nil {
		return "-"
	}
	content := strings.ReplaceAll(m.Content, "\n", " ")
	if r := []rune(content); len(r) > summaryWidth {
		content = string(r[:summaryWidth-1]) + "…"
	}
	if m.SenderID == selfID {
		return fmt.Sprintf("you: %s (%s)", content, m.Status)
	}
	return content
}

// formatMessage [15:04] who: content, own messages carry their status
func formatMessage(m domain.Message, selfID string) string {
	who := m.SenderID
	if who == selfID {
		who = "you"
	}
	line := fmt.Sprintf("[%s] %s: %s", m.CreatedAt.Local().Format("15:04"), who, m.Content)
	if m.SenderID == selfID {
		line += fmt.Sprintf(" (%s)", m.Status)
	}
	return line
}

// terminal 把 inbound 事件先交給 Reconciler 更新 store, 再印到畫面
type terminal struct {
	*bridge.Reconciler

	store          *store.ConversationStore
	selfID         string
	conversationID string
	peerID         string

	mu  sync.Mutex
	out io.Writer
}

var _ bridge.Inbound = (*terminal)(nil)

func newTerminal(rec *bridge.Reconciler, st *store.ConversationStore, selfID string, conv domain.Conversation, out io.Writer) *terminal {
	return &terminal{
		Reconciler:     rec,
		store:          st,
		selfID:         selfID,
		conversationID: conv.ID,
		peerID:         conv.Peer(selfID),
		out:            out,
	}
}

func (t *terminal) println(format string, args ...interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, format+"\n", args...)
}

// printHistory the message list of the active conversation
func (t *terminal) printHistory() {
	snap := t.store.Snapshot()
	if len(snap.Messages) == 0 {
		t.println("(no messages yet)")
		return
	}
	for _, m := range snap.Messages {
		t.println("%s", formatMessage(m, t.selfID))
	}
}

func (t *terminal) NewMessage(p domain.NewMessagePayload) {
	t.Reconciler.NewMessage(p)
	if p.Message == nil {
		return
	}
	m := *p.Message
	switch {
	case m.ConversationID != t.conversationID:
		t.println("* new message from %s in another conversation", m.SenderID)
	case m.SenderID == t.selfID:
		t.println("* %s %s", m.ID, m.Status)
	default:
		t.println("%s", formatMessage(m, t.selfID))
	}
}

func (t *terminal) MessageRead(p domain.MessageReadPayload) {
	t.Reconciler.MessageRead(p)
	if p.ConversationID == t.conversationID {
		t.println("* %s read", p.MessageID)
	}
}

func (t *terminal) Typing(p domain.TypingPayload) {
	t.Reconciler.Typing(p)
	if p.ConversationID == t.conversationID && p.SenderID == t.peerID {
		t.println("* %s is typing...", t.peerID)
	}
}

func (t *terminal) StopTyping(p domain.TypingPayload) {
	t.Reconciler.StopTyping(p)
	if p.ConversationID == t.conversationID && p.SenderID == t.peerID {
		t.println("* %s stopped typing", t.peerID)
	}
}

func (t *terminal) UserStatus(p domain.UserStatusPayload) {
	t.Reconciler.UserStatus(p)
	if p.UserID == t.peerID {
		t.println("* %s is %s", t.peerID, p.Status)
	}
}

func (t *terminal) OnlineUsers(identities []string) {
	t.Reconciler.OnlineUsers(identities)
	status := domain.PresenceOffline
	if t.store.IsOnline(t.peerID) {
		status = domain.PresenceOnline
	}
	t.println("* %s is %s", t.peerID, status)
}
