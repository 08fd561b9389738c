package bridge

import (
	"context"
	"errors"
	"sync"
	"time"

	"direct_chat_service/pkg/logger"

	"go.uber.org/zap"
)

// DefaultTypingQuiet stop_typing goes out after this much quiet
const DefaultTypingQuiet = 2000 * time.Millisecond

// TypingEmitter outbound side of the typing signal
type TypingEmitter interface {
	Typing(ctx context.Context, conversationID, receiverID string) error
	StopTyping(ctx context.Context, conversationID, receiverID string) error
}

type typingTarget struct {
	conversationID string
	receiverID     string
}

// TypingDebouncer 一段連續輸入只送一次 typing, 停手 quiet 之後或送出訊息時送 stop_typing
type TypingDebouncer struct {
	emitter TypingEmitter
	quiet   time.Duration

	mu     sync.Mutex
	active bool
	target typingTarget
	timer  *time.Timer
	// gen 每次重設 timer 都加一, 過期的 timer callback 直接返回
	gen uint64
}

// NewTypingDebouncer quiet <= 0 falls back to DefaultTypingQuiet
func NewTypingDebouncer(emitter TypingEmitter, quiet time.Duration) *TypingDebouncer {
	if quiet <= 0 {
		quiet = DefaultTypingQuiet
	}
	return &TypingDebouncer{emitter: emitter, quiet: quiet}
}

// Keystroke the user typed something in conversationID
func (d *TypingDebouncer) Keystroke(conversationID, receiverID string) {
	next := typingTarget{conversationID: conversationID, receiverID: receiverID}

	d.mu.Lock()
	var stopOld *typingTarget
	startNew := !d.active
	if d.active && d.target != next {
		old := d.target
		stopOld = &old
		startNew = true
	}
	d.active = true
	d.target = next
	d.armLocked()
	d.mu.Unlock()

	if stopOld != nil {
		d.send(d.emitter.StopTyping, *stopOld)
	}
	if startNew {
		d.send(d.emitter.Typing, next)
	}
}

// Sent the message went out, stop typing right away
func (d *TypingDebouncer) Sent() {
	d.flush()
}

// Close same as Sent, used when the chat view goes away
func (d *TypingDebouncer) Close() {
	d.flush()
}

func (d *TypingDebouncer) flush() {
	d.mu.Lock()
	if !d.active {
		d.mu.Unlock()
		return
	}
	target := d.target
	d.active = false
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()

	d.send(d.emitter.StopTyping, target)
}

func (d *TypingDebouncer) armLocked() {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.quiet, func() { d.expire(gen) })
}

func (d *TypingDebouncer) expire(gen uint64) {
	d.mu.Lock()
	if !d.active || d.gen != gen {
		d.mu.Unlock()
		return
	}
	target := d.target
	d.active = false
	d.timer = nil
	d.mu.Unlock()

	d.send(d.emitter.StopTyping, target)
}

func (d *TypingDebouncer) send(fn func(context.Context, string, string) error, t typingTarget) {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultWriteTimeout)
	defer cancel()
	if err := fn(ctx, t.conversationID, t.receiverID); err != nil && !errors.Is(err, ErrNotConnected) {
		logger.Log.Warn("send typing signal", zap.String("conversation_id", t.conversationID), zap.Error(err))
	}
}
