package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"direct_chat_service/internal/chat/domain"
	"direct_chat_service/pkg/logger"

	"go.uber.org/zap"
)

const (
	// DefaultTypingReset typing flag falls back to false after this much silence
	DefaultTypingReset = 2000 * time.Millisecond
	// DefaultFetchTimeout upper bound of one history fetch
	DefaultFetchTimeout = 10 * time.Second
)

// HistoryFetcher loads the message history of one conversation
type HistoryFetcher interface {
	History(ctx context.Context, conversationID string) ([]domain.Message, error)
}

// Snapshot copy of everything the UI renders
type Snapshot struct {
	Conversations []domain.Conversation
	ActiveID      string
	Messages      []domain.Message
	Typing        map[string]bool
	Online        map[string]bool
}

// Active the active conversation, false when nothing is selected
func (s Snapshot) Active() (domain.Conversation, bool) {
	for _, c := range s.Conversations {
		if c.ID == s.ActiveID {
			return c, true
		}
	}
	return domain.Conversation{}, false
}

// Option configure a ConversationStore
type Option func(*ConversationStore)

// WithTypingReset override the typing quiet period
func WithTypingReset(d time.Duration) Option {
	return func(s *ConversationStore) {
		if d > 0 {
			s.typingReset = d
		}
	}
}

// WithFetchTimeout override the history fetch timeout
func WithFetchTimeout(d time.Duration) Option {
	return func(s *ConversationStore) {
		if d > 0 {
			s.fetchTimeout = d
		}
	}
}

// ConversationStore 聊天畫面唯一的狀態容器
//
// Every mutation is total: unknown conversation or message ids are ignored.
// Subscribers are called after each mutation, outside the lock.
type ConversationStore struct {
	mu sync.Mutex

	selfID       string
	fetcher      HistoryFetcher
	typingReset  time.Duration
	fetchTimeout time.Duration

	conversations []domain.Conversation
	activeID      string
	// fetchSeq 每次切換 active 都加一, 舊的 fetch 結果比對不上就丟掉
	fetchSeq uint64
	messages []domain.Message

	typing       map[string]bool
	typingTimers map[string]*time.Timer
	online       map[string]bool

	subscribers map[int]func(Snapshot)
	nextSubID   int
}

// New create a ConversationStore for selfID
func New(selfID string, fetcher HistoryFetcher, opts ...Option) *ConversationStore {
	s := &ConversationStore{
		selfID:       selfID,
		fetcher:      fetcher,
		typingReset:  DefaultTypingReset,
		fetchTimeout: DefaultFetchTimeout,
		typing:       make(map[string]bool),
		typingTimers: make(map[string]*time.Timer),
		online:       make(map[string]bool),
		subscribers:  make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe fn runs after every mutation, the returned func removes it
func (s *ConversationStore) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

// SetConversations replace the conversation list, the active selection survives when still listed
func (s *ConversationStore) SetConversations(convs []domain.Conversation) {
	s.mu.Lock()
	s.conversations = make([]domain.Conversation, len(convs))
	copy(s.conversations, convs)
	if i := s.indexLocked(s.activeID); i >= 0 {
		s.conversations[i].UnreadCount = 0
	}
	s.sortLocked()
	s.mu.Unlock()
	s.notify()
}

// SetActiveConversation select conv, reset its unread count and load its history.
// The returned channel is closed once the fetch result was applied or discarded.
func (s *ConversationStore) SetActiveConversation(conv domain.Conversation) <-chan struct{} {
	s.mu.Lock()
	i := s.indexLocked(conv.ID)
	if i < 0 {
		s.conversations = append(s.conversations, conv)
		i = len(s.conversations) - 1
	}
	s.conversations[i].UnreadCount = 0
	s.activeID = conv.ID
	s.fetchSeq++
	seq := s.fetchSeq
	s.messages = nil
	s.sortLocked()
	s.mu.Unlock()
	s.notify()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.loadHistory(conv.ID, seq)
	}()
	return done
}

func (s *ConversationStore) loadHistory(conversationID string, seq uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), s.fetchTimeout)
	defer cancel()

	msgs, err := s.fetcher.History(ctx, conversationID)
	if err != nil {
		logger.Log.Error("fetch history", zap.String("conversation_id", conversationID), zap.Error(err))
		return
	}

	s.mu.Lock()
	if s.fetchSeq != seq || s.activeID != conversationID {
		s.mu.Unlock()
		logger.Log.Debug("discard stale history", zap.String("conversation_id", conversationID))
		return
	}
	s.messages = mergeHistory(msgs, s.messages)
	s.mu.Unlock()
	s.notify()
}

// mergeHistory fetched history replaces the list, except messages that arrived
// in realtime while the fetch was in flight: those stay, after the history.
// A message present in both keeps the further status.
func mergeHistory(fetched, live []domain.Message) []domain.Message {
	merged := make([]domain.Message, len(fetched), len(fetched)+len(live))
	copy(merged, fetched)
	index := make(map[string]int, len(fetched))
	for i, m := range merged {
		index[m.ID] = i
	}
	for _, m := range live {
		if i, ok := index[m.ID]; ok {
			if merged[i].Status.Before(m.Status) {
				merged[i].Status = m.Status
				merged[i].UpdatedAt = m.UpdatedAt
			}
			continue
		}
		merged = append(merged, m)
	}
	return merged
}

// ClearActive deselect the active conversation
func (s *ConversationStore) ClearActive() {
	s.mu.Lock()
	s.activeID = ""
	s.fetchSeq++
	s.messages = nil
	s.mu.Unlock()
	s.notify()
}

// AddMessage a message arrived for some conversation.
// It joins the message list only when its conversation is active; the owning
// conversation's lastMessage always follows it; unread grows by one unless the
// conversation is active, the message is our own, or it was already seen.
func (s *ConversationStore) AddMessage(msg domain.Message) {
	s.mu.Lock()
	i := s.indexLocked(msg.ConversationID)
	if i < 0 {
		s.mu.Unlock()
		return
	}

	seen := false
	if msg.ConversationID == s.activeID {
		seen = s.upsertMessageLocked(msg)
	}

	conv := &s.conversations[i]
	if conv.LastMessage != nil && conv.LastMessage.ID == msg.ID {
		seen = true
	}
	conv.LastMessage = mergeLast(conv.LastMessage, &msg)
	if !msg.CreatedAt.IsZero() && msg.CreatedAt.After(conv.UpdatedAt) {
		conv.UpdatedAt = msg.CreatedAt
	}
	if conv.ID != s.activeID && msg.SenderID != s.selfID && !seen {
		conv.UnreadCount++
	}
	s.sortLocked()
	s.mu.Unlock()
	s.notify()
}

// upsertMessageLocked append msg or move an existing copy forward, true when it was already listed
func (s *ConversationStore) upsertMessageLocked(msg domain.Message) bool {
	for j := range s.messages {
		if s.messages[j].ID != msg.ID {
			continue
		}
		if s.messages[j].Status.Before(msg.Status) {
			s.messages[j].Status = msg.Status
			s.messages[j].UpdatedAt = msg.UpdatedAt
		}
		return true
	}
	s.messages = append(s.messages, msg)
	return false
}

// UpdateMessageStatus move one message forward, never backward
func (s *ConversationStore) UpdateMessageStatus(conversationID, messageID string, status domain.MessageStatus) {
	s.mu.Lock()
	changed := false
	if conversationID == s.activeID {
		for j := range s.messages {
			if s.messages[j].ID == messageID && s.messages[j].Status.Before(status) {
				s.messages[j].Status = status
				changed = true
			}
		}
	}
	if i := s.indexLocked(conversationID); i >= 0 {
		last := s.conversations[i].LastMessage
		if last != nil && last.ID == messageID && last.Status.Before(status) {
			cp := *last
			cp.Status = status
			s.conversations[i].LastMessage = &cp
			changed = true
		}
	}
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

// UpdateConversation conversation summary changed on the server
func (s *ConversationStore) UpdateConversation(conversationID string, last *domain.Message) {
	if last == nil {
		return
	}
	s.mu.Lock()
	i := s.indexLocked(conversationID)
	if i < 0 {
		s.mu.Unlock()
		return
	}
	conv := &s.conversations[i]
	conv.LastMessage = mergeLast(conv.LastMessage, last)
	if last.UpdatedAt.After(conv.UpdatedAt) {
		conv.UpdatedAt = last.UpdatedAt
	}
	if conversationID == s.activeID {
		for j := range s.messages {
			if s.messages[j].ID == last.ID && s.messages[j].Status.Before(last.Status) {
				s.messages[j].Status = last.Status
			}
		}
	}
	s.sortLocked()
	s.mu.Unlock()
	s.notify()
}

// SetTyping overwrite the typing flag of identity, a true flag clears itself after the quiet period
func (s *ConversationStore) SetTyping(identity string, isTyping bool) {
	s.mu.Lock()
	if t, ok := s.typingTimers[identity]; ok {
		t.Stop()
		delete(s.typingTimers, identity)
	}
	s.typing[identity] = isTyping
	if isTyping {
		var timer *time.Timer
		timer = time.AfterFunc(s.typingReset, func() {
			s.mu.Lock()
			if s.typingTimers[identity] != timer {
				s.mu.Unlock()
				return
			}
			delete(s.typingTimers, identity)
			s.typing[identity] = false
			s.mu.Unlock()
			s.notify()
		})
		s.typingTimers[identity] = timer
	}
	s.mu.Unlock()
	s.notify()
}

// SetOnlineUsers replace the whole presence set
func (s *ConversationStore) SetOnlineUsers(identities []string) {
	s.mu.Lock()
	s.online = make(map[string]bool, len(identities))
	for _, id := range identities {
		s.online[id] = true
	}
	s.mu.Unlock()
	s.notify()
}

// UpdateUserStatus presence delta for one identity
func (s *ConversationStore) UpdateUserStatus(identity string, isOnline bool) {
	s.mu.Lock()
	if isOnline {
		s.online[identity] = true
	} else {
		delete(s.online, identity)
	}
	s.mu.Unlock()
	s.notify()
}

// IsOnline identity holds a live connection
func (s *ConversationStore) IsOnline(identity string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online[identity]
}

// IsPeerTyping the other participant of the active conversation is typing
func (s *ConversationStore) IsPeerTyping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(s.activeID)
	if i < 0 {
		return false
	}
	peer := s.conversations[i].Peer(s.selfID)
	return peer != "" && s.typing[peer]
}

// ActiveID id of the active conversation, empty when none
func (s *ConversationStore) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// Snapshot copy of the current state
func (s *ConversationStore) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *ConversationStore) snapshotLocked() Snapshot {
	snap := Snapshot{
		Conversations: make([]domain.Conversation, len(s.conversations)),
		ActiveID:      s.activeID,
		Messages:      make([]domain.Message, len(s.messages)),
		Typing:        make(map[string]bool, len(s.typing)),
		Online:        make(map[string]bool, len(s.online)),
	}
	copy(snap.Conversations, s.conversations)
	copy(snap.Messages, s.messages)
	for k, v := range s.typing {
		snap.Typing[k] = v
	}
	for k, v := range s.online {
		snap.Online[k] = v
	}
	return snap
}

func (s *ConversationStore) notify() {
	s.mu.Lock()
	if len(s.subscribers) == 0 {
		s.mu.Unlock()
		return
	}
	snap := s.snapshotLocked()
	subs := make([]func(Snapshot), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

func (s *ConversationStore) indexLocked(conversationID string) int {
	if conversationID == "" {
		return -1
	}
	for i := range s.conversations {
		if s.conversations[i].ID == conversationID {
			return i
		}
	}
	return -1
}

// sortLocked newest updatedAt first, same order as the conversation list endpoint
func (s *ConversationStore) sortLocked() {
	sort.SliceStable(s.conversations, func(a, b int) bool {
		return s.conversations[a].UpdatedAt.After(s.conversations[b].UpdatedAt)
	})
}

// mergeLast 同一則訊息只往前推狀態, 不同訊息直接替換
func mergeLast(current, next *domain.Message) *domain.Message {
	cp := *next
	if current != nil && current.ID == next.ID && next.Status.Before(current.Status) {
		cp.Status = current.Status
	}
	return &cp
}
