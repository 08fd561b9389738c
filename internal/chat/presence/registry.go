package presence

import (
	"sort"
	"sync"

	"direct_chat_service/internal/chat/domain"
	"direct_chat_service/pkg/logger"

	"go.uber.org/zap"
)

// Conn addressable realtime channel to one client. Send must not block.
type Conn interface {
	Send(event domain.Event) error
}

// Token generation of a registry entry. A disconnect may only remove the entry it registered.
type Token uint64

type entry struct {
	conn  Conn
	token Token
}

// Registry identity -> live connection, one instance per server process
type Registry struct {
	// bmu orders state changes together with their fan-out, so peers see
	// online/offline for one identity in the same order the registry applied them.
	// mu alone guards entries; Lookup never waits on a fan-out.
	bmu sync.Mutex

	mu      sync.RWMutex
	entries map[string]entry
	next    Token
}

// New empty registry
func New() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register insert or overwrite identity's entry. Every other connection is told the
// identity is online and the new connection alone receives the online snapshot.
// An overwritten connection is dropped from bookkeeping but not closed.
func (r *Registry) Register(identity string, conn Conn) Token {
	r.bmu.Lock()
	defer r.bmu.Unlock()

	r.mu.Lock()
	r.next++
	token := r.next
	prev, replaced := r.entries[identity]
	r.entries[identity] = entry{conn: conn, token: token}
	others := r.connsLocked(identity)
	online := r.identitiesLocked()
	r.mu.Unlock()

	if replaced {
		logger.Log.Info("presence entry replaced",
			zap.String("identity", identity),
			zap.Uint64("old_token", uint64(prev.token)),
			zap.Uint64("token", uint64(token)),
		)
	}

	status := domain.UserStatusEvent(identity, domain.PresenceOnline)
	for _, c := range others {
		send(c, status)
	}
	send(conn, domain.OnlineUsersEvent(online))
	return token
}

// Unregister remove identity's entry when it still carries token and tell the
// remaining connections it went offline. Unknown identities and stale tokens are no-ops.
func (r *Registry) Unregister(identity string, token Token) bool {
	r.bmu.Lock()
	defer r.bmu.Unlock()

	r.mu.Lock()
	e, ok := r.entries[identity]
	if !ok || e.token != token {
		r.mu.Unlock()
		if ok {
			logger.Log.Debug("stale unregister ignored", zap.String("identity", identity), zap.Uint64("token", uint64(token)))
		}
		return false
	}
	delete(r.entries, identity)
	others := r.connsLocked(identity)
	r.mu.Unlock()

	status := domain.UserStatusEvent(identity, domain.PresenceOffline)
	for _, c := range others {
		send(c, status)
	}
	return true
}

// Lookup live connection of identity
func (r *Registry) Lookup(identity string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[identity]
	if !ok {
		return nil, false
	}
	return e.conn, true
}

// Online sorted identities that hold an entry
func (r *Registry) Online() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.identitiesLocked()
}

// Broadcast send event to every registered connection
func (r *Registry) Broadcast(event domain.Event) {
	r.bmu.Lock()
	defer r.bmu.Unlock()

	r.mu.RLock()
	conns := r.connsLocked("")
	r.mu.RUnlock()

	for _, c := range conns {
		send(c, event)
	}
}

func (r *Registry) connsLocked(except string) []Conn {
	conns := make([]Conn, 0, len(r.entries))
	for id, e := range r.entries {
		if id == except {
			continue
		}
		conns = append(conns, e.conn)
	}
	return conns
}

func (r *Registry) identitiesLocked() []string {
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func send(c Conn, event domain.Event) {
	if err := c.Send(event); err != nil {
		logger.Log.Debug("presence send dropped", zap.String("event", string(event.Name)), zap.Error(err))
	}
}
