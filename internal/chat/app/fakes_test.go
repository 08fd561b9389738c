package app

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"direct_chat_service/internal/chat/domain"
)

// memMessageRepo in memory MessageRepository with the same monotonic update rule as mongo
type memMessageRepo struct {
	mu         sync.Mutex
	msgs       map[string]domain.Message
	advanceErr error
	history    map[string][]domain.MessageStatus

	// findHook runs before every FindByID, nil in most tests
	findHook func(ctx context.Context)
}

func newMemMessageRepo() *memMessageRepo {
	return &memMessageRepo{msgs: map[string]domain.Message{}, history: map[string][]domain.MessageStatus{}}
}

func (r *memMessageRepo) Create(_ context.Context, msg *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs[msg.ID] = *msg
	r.history[msg.ID] = append(r.history[msg.ID], msg.Status)
	return nil
}

func (r *memMessageRepo) FindByID(ctx context.Context, id string) (*domain.Message, error) {
	if r.findHook != nil {
		r.findHook(ctx)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.msgs[id]
	if !ok {
		return nil, domain.ErrMessageNotFound
	}
	return &m, nil
}

func (r *memMessageRepo) FindByConversation(_ context.Context, conversationID string) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Message{}
	for _, m := range r.msgs {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memMessageRepo) AdvanceStatus(_ context.Context, id string, status domain.MessageStatus) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.advanceErr != nil {
		return nil, r.advanceErr
	}
	m, ok := r.msgs[id]
	if !ok {
		return nil, domain.ErrMessageNotFound
	}
	if m.Status.Before(status) {
		m.Status = status
		m.UpdatedAt = time.Now().UTC()
		r.msgs[id] = m
		r.history[id] = append(r.history[id], status)
	}
	return &m, nil
}

func (r *memMessageRepo) MarkConversationRead(_ context.Context, conversationID, readerID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, m := range r.msgs {
		if m.ConversationID != conversationID || m.SenderID == readerID || m.Status == domain.StatusRead {
			continue
		}
		if m.Status == domain.StatusSent {
			r.history[id] = append(r.history[id], domain.StatusDelivered)
		}
		m.Status = domain.StatusRead
		r.msgs[id] = m
		r.history[id] = append(r.history[id], domain.StatusRead)
		n++
	}
	return n, nil
}

func (r *memMessageRepo) CountUnreadByConversation(_ context.Context, readerID string, ids []string) ([]domain.ConversationUnreadInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[string]int{}
	for _, m := range r.msgs {
		if m.SenderID != readerID && m.Status != domain.StatusRead {
			counts[m.ConversationID]++
		}
	}
	out := []domain.ConversationUnreadInfo{}
	for _, id := range ids {
		if counts[id] > 0 {
			out = append(out, domain.ConversationUnreadInfo{ConversationID: id, UnreadCount: counts[id]})
		}
	}
	return out, nil
}

func (r *memMessageRepo) status(id string) domain.MessageStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.msgs[id].Status
}

func (r *memMessageRepo) statusHistory(id string) []domain.MessageStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.MessageStatus(nil), r.history[id]...)
}

// memConversationRepo in memory ConversationRepository
type memConversationRepo struct {
	mu    sync.Mutex
	convs map[string]domain.Conversation
}

func newMemConversationRepo() *memConversationRepo {
	return &memConversationRepo{convs: map[string]domain.Conversation{}}
}

func (r *memConversationRepo) Create(_ context.Context, conv *domain.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.convs[conv.ID] = *conv
	return nil
}

func (r *memConversationRepo) FindByID(_ context.Context, id string) (*domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[id]
	if !ok {
		return nil, domain.ErrConversationNotFound
	}
	return &c, nil
}

func (r *memConversationRepo) FindByParticipants(_ context.Context, a, b string) (*domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.convs {
		if c.HasParticipant(a) && c.HasParticipant(b) && len(c.Participants) == 2 {
			return &c, nil
		}
	}
	return nil, domain.ErrConversationNotFound
}

func (r *memConversationRepo) FindByMember(_ context.Context, memberID string) ([]domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Conversation{}
	for _, c := range r.convs {
		if c.HasParticipant(memberID) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r *memConversationRepo) SetLastMessage(_ context.Context, id string, msg *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[id]
	if !ok {
		return domain.ErrConversationNotFound
	}
	m := *msg
	c.LastMessage = &m
	c.UpdatedAt = time.Now().UTC()
	r.convs[id] = c
	return nil
}

func (r *memConversationRepo) SyncLastMessage(_ context.Context, id string, msg *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[id]
	if !ok || c.LastMessage == nil || c.LastMessage.ID != msg.ID || !c.LastMessage.Status.Before(msg.Status) {
		return nil
	}
	m := *msg
	c.LastMessage = &m
	r.convs[id] = c
	return nil
}

// recordPublisher LifecyclePublisher that keeps every event
type recordPublisher struct {
	mu     sync.Mutex
	events []domain.LifecycleEvent
	err    error
	// block, when set, holds every Publish until it is closed or ctx ends
	block chan struct{}
}

func (p *recordPublisher) Publish(ctx context.Context, e domain.LifecycleEvent) error {
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordPublisher) Close() error { return nil }

func (p *recordPublisher) transitions(messageID string) []domain.MessageStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.MessageStatus
	for _, e := range p.events {
		if e.MessageID == messageID {
			out = append(out, e.To)
		}
	}
	return out
}

// recordConn presence.Conn that decodes what it is sent, like a client would see it
type recordConn struct {
	mu     sync.Mutex
	frames []domain.Envelope
	err    error
}

func (c *recordConn) Send(event domain.Event) error {
	if c.err != nil {
		return c.err
	}
	b, err := event.Encode()
	if err != nil {
		return err
	}
	env, err := domain.DecodeEnvelope(b)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, env)
	return nil
}

func (c *recordConn) events(name domain.EventName) []json.RawMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []json.RawMessage
	for _, f := range c.frames {
		if f.Event == name {
			out = append(out, f.Data)
		}
	}
	return out
}

func (c *recordConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

var errBoom = errors.New("boom")

func decodeMessage(raw json.RawMessage) domain.NewMessagePayload {
	var p domain.NewMessagePayload
	_ = json.Unmarshal(raw, &p)
	return p
}
