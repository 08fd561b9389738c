package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"direct_chat_service/internal/chat/domain"
	"direct_chat_service/internal/chat/presence"
	"direct_chat_service/pkg/config"
	"direct_chat_service/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.SetNewNop()
	os.Exit(m.Run())
}

type coordinatorFixture struct {
	msgs      *memMessageRepo
	convs     *memConversationRepo
	registry  *presence.Registry
	publisher *recordPublisher
	coord     *DeliveryCoordinator
}

func newCoordinatorFixture(t *testing.T, policy config.DeliveryConfig) *coordinatorFixture {
	t.Helper()
	f := &coordinatorFixture{
		msgs:      newMemMessageRepo(),
		convs:     newMemConversationRepo(),
		registry:  presence.New(),
		publisher: &recordPublisher{},
	}
	f.coord = NewDeliveryCoordinator(f.msgs, f.convs, f.registry, f.publisher, policy)
	t.Cleanup(f.coord.Close)

	now := time.Now().UTC()
	require.NoError(t, f.convs.Create(context.Background(), &domain.Conversation{
		ID:           "conv-ab",
		Participants: []string{"alice", "bob"},
		CreatedAt:    now,
		UpdatedAt:    now,
	}))
	return f
}

func (f *coordinatorFixture) store(t *testing.T, id, sender string) *domain.Message {
	t.Helper()
	now := time.Now().UTC()
	msg := &domain.Message{
		ID:             id,
		ConversationID: "conv-ab",
		SenderID:       sender,
		Content:        "hi",
		Status:         domain.StatusSent,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, f.msgs.Create(context.Background(), msg))
	require.NoError(t, f.convs.SetLastMessage(context.Background(), "conv-ab", msg))
	return msg
}

func (f *coordinatorFixture) connect(identity string) *recordConn {
	c := &recordConn{}
	f.registry.Register(identity, c)
	c.reset()
	return c
}

func TestDeliveryCoordinator_Send(t *testing.T) {
	ctx := context.Background()

	t.Run("雙方在線", func(t *testing.T) {
		f := newCoordinatorFixture(t, config.DeliveryConfig{})
		alice := f.connect("alice")
		bob := f.connect("bob")
		carol := f.connect("carol")
		alice.reset()
		msg := f.store(t, "m1", "alice")

		f.coord.Send(ctx, "alice", domain.NewMessagePayload{Message: msg, ReceiverID: "bob"})

		echo := alice.events(domain.EventNewMessage)
		require.Len(t, echo, 1)
		assert.Equal(t, domain.StatusDelivered, decodeMessage(echo[0]).Message.Status)

		delivered := bob.events(domain.EventNewMessage)
		require.Len(t, delivered, 1)
		assert.Equal(t, "m1", decodeMessage(delivered[0]).Message.ID)
		assert.Empty(t, decodeMessage(delivered[0]).ReceiverID)

		assert.Len(t, alice.events(domain.EventConversationUpdated), 1)
		assert.Len(t, bob.events(domain.EventConversationUpdated), 1)
		assert.Empty(t, carol.events(domain.EventConversationUpdated))
		assert.Empty(t, carol.events(domain.EventNewMessage))

		assert.Equal(t, domain.StatusDelivered, f.msgs.status("m1"))
		f.coord.Close()
		assert.Equal(t, []domain.MessageStatus{domain.StatusDelivered}, f.publisher.transitions("m1"))

		conv, err := f.convs.FindByID(ctx, "conv-ab")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusDelivered, conv.LastMessage.Status)
	})

	t.Run("對方離線仍標記 delivered", func(t *testing.T) {
		f := newCoordinatorFixture(t, config.DeliveryConfig{})
		alice := f.connect("alice")
		msg := f.store(t, "m1", "alice")

		f.coord.Send(ctx, "alice", domain.NewMessagePayload{Message: msg, ReceiverID: "bob"})

		echo := alice.events(domain.EventNewMessage)
		require.Len(t, echo, 1)
		assert.Equal(t, domain.StatusDelivered, decodeMessage(echo[0]).Message.Status)
		assert.Equal(t, domain.StatusDelivered, f.msgs.status("m1"))
	})

	t.Run("要求對方在線", func(t *testing.T) {
		f := newCoordinatorFixture(t, config.DeliveryConfig{RequireOnlineReceiver: true})
		alice := f.connect("alice")
		msg := f.store(t, "m1", "alice")

		f.coord.Send(ctx, "alice", domain.NewMessagePayload{Message: msg, ReceiverID: "bob"})

		echo := alice.events(domain.EventNewMessage)
		require.Len(t, echo, 1)
		assert.Equal(t, domain.StatusSent, decodeMessage(echo[0]).Message.Status)
		assert.Equal(t, domain.StatusSent, f.msgs.status("m1"))
		f.coord.Close()
		assert.Empty(t, f.publisher.transitions("m1"))

		bob := f.connect("bob")
		msg2 := f.store(t, "m2", "alice")
		f.coord.Send(ctx, "alice", domain.NewMessagePayload{Message: msg2})
		require.Len(t, bob.events(domain.EventNewMessage), 1)
		assert.Equal(t, domain.StatusDelivered, f.msgs.status("m2"))
	})

	t.Run("廣播 conversation_updated", func(t *testing.T) {
		f := newCoordinatorFixture(t, config.DeliveryConfig{BroadcastConversationUpdates: true})
		f.connect("alice")
		carol := f.connect("carol")
		carol.reset()
		msg := f.store(t, "m1", "alice")

		f.coord.Send(ctx, "alice", domain.NewMessagePayload{Message: msg})

		updates := carol.events(domain.EventConversationUpdated)
		require.Len(t, updates, 1)
		var p domain.ConversationUpdatedPayload
		require.NoError(t, json.Unmarshal(updates[0], &p))
		assert.Equal(t, "conv-ab", p.ConversationID)
		assert.Equal(t, "m1", p.LastMessage.ID)
	})

	t.Run("sender 不符", func(t *testing.T) {
		f := newCoordinatorFixture(t, config.DeliveryConfig{})
		bob := f.connect("bob")
		alice := f.connect("alice")
		msg := f.store(t, "m1", "alice")

		f.coord.Send(ctx, "bob", domain.NewMessagePayload{Message: msg})

		assert.Empty(t, bob.events(domain.EventNewMessage))
		assert.Empty(t, alice.events(domain.EventNewMessage))
		assert.Equal(t, domain.StatusSent, f.msgs.status("m1"))
	})

	t.Run("不存在的訊息", func(t *testing.T) {
		f := newCoordinatorFixture(t, config.DeliveryConfig{})
		alice := f.connect("alice")

		f.coord.Send(ctx, "alice", domain.NewMessagePayload{Message: &domain.Message{ID: "ghost"}})
		f.coord.Send(ctx, "alice", domain.NewMessagePayload{})

		assert.Empty(t, alice.events(domain.EventNewMessage))
	})

	t.Run("寫入失敗不派送", func(t *testing.T) {
		f := newCoordinatorFixture(t, config.DeliveryConfig{})
		alice := f.connect("alice")
		bob := f.connect("bob")
		alice.reset()
		msg := f.store(t, "m1", "alice")
		f.msgs.advanceErr = errBoom

		f.coord.Send(ctx, "alice", domain.NewMessagePayload{Message: msg})

		assert.Empty(t, alice.events(domain.EventNewMessage))
		assert.Empty(t, bob.events(domain.EventNewMessage))
		assert.Empty(t, bob.events(domain.EventConversationUpdated))
	})

	t.Run("publish 失敗仍派送", func(t *testing.T) {
		f := newCoordinatorFixture(t, config.DeliveryConfig{})
		f.publisher.err = errBoom
		bob := f.connect("bob")
		f.connect("alice")
		msg := f.store(t, "m1", "alice")

		f.coord.Send(ctx, "alice", domain.NewMessagePayload{Message: msg})

		assert.Len(t, bob.events(domain.EventNewMessage), 1)
	})

	t.Run("broker 卡住不影響派送", func(t *testing.T) {
		f := newCoordinatorFixture(t, config.DeliveryConfig{PublishTimeout: 50 * time.Millisecond})
		f.publisher.block = make(chan struct{})
		alice := f.connect("alice")
		bob := f.connect("bob")
		msg := f.store(t, "m1", "alice")

		done := make(chan struct{})
		go func() {
			f.coord.Send(ctx, "alice", domain.NewMessagePayload{Message: msg})
			f.coord.Read(ctx, "bob", domain.MessageReadPayload{MessageID: "m1"})
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("realtime path waited on the lifecycle publisher")
		}

		assert.Len(t, alice.events(domain.EventNewMessage), 1)
		assert.Len(t, bob.events(domain.EventNewMessage), 1)
		assert.Len(t, alice.events(domain.EventMessageRead), 1)

		// publisher 回來之後依序送出
		close(f.publisher.block)
		f.coord.Close()
		assert.Equal(t, []domain.MessageStatus{domain.StatusDelivered, domain.StatusRead}, f.publisher.transitions("m1"))
	})
}

func TestDeliveryCoordinator_Read(t *testing.T) {
	ctx := context.Background()

	t.Run("回條只給原 sender", func(t *testing.T) {
		f := newCoordinatorFixture(t, config.DeliveryConfig{})
		alice := f.connect("alice")
		bob := f.connect("bob")
		alice.reset()
		msg := f.store(t, "m1", "alice")
		f.coord.Send(ctx, "alice", domain.NewMessagePayload{Message: msg})
		bob.reset()

		f.coord.Read(ctx, "bob", domain.MessageReadPayload{MessageID: "m1", ConversationID: "conv-ab"})

		receipts := alice.events(domain.EventMessageRead)
		require.Len(t, receipts, 1)
		var p domain.MessageReadPayload
		require.NoError(t, json.Unmarshal(receipts[0], &p))
		assert.Equal(t, domain.MessageReadPayload{MessageID: "m1", ConversationID: "conv-ab"}, p)
		assert.Empty(t, bob.events(domain.EventMessageRead))

		assert.Equal(t, domain.StatusRead, f.msgs.status("m1"))
		conv, err := f.convs.FindByID(ctx, "conv-ab")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusRead, conv.LastMessage.Status)
	})

	t.Run("sent 先補 delivered", func(t *testing.T) {
		f := newCoordinatorFixture(t, config.DeliveryConfig{})
		f.store(t, "m1", "alice")

		f.coord.Read(ctx, "bob", domain.MessageReadPayload{MessageID: "m1"})

		assert.Equal(t, []domain.MessageStatus{domain.StatusSent, domain.StatusDelivered, domain.StatusRead}, f.msgs.statusHistory("m1"))
		f.coord.Close()
		assert.Equal(t, []domain.MessageStatus{domain.StatusDelivered, domain.StatusRead}, f.publisher.transitions("m1"))
	})

	t.Run("conversationId 以儲存的為準", func(t *testing.T) {
		f := newCoordinatorFixture(t, config.DeliveryConfig{})
		alice := f.connect("alice")
		f.store(t, "m1", "alice")

		f.coord.Read(ctx, "bob", domain.MessageReadPayload{MessageID: "m1", ConversationID: "spoofed"})

		receipts := alice.events(domain.EventMessageRead)
		require.Len(t, receipts, 1)
		var p domain.MessageReadPayload
		require.NoError(t, json.Unmarshal(receipts[0], &p))
		assert.Equal(t, "conv-ab", p.ConversationID)
	})

	t.Run("no-op 情境", func(t *testing.T) {
		f := newCoordinatorFixture(t, config.DeliveryConfig{})
		alice := f.connect("alice")
		f.store(t, "m1", "alice")

		f.coord.Read(ctx, "bob", domain.MessageReadPayload{MessageID: "ghost"})
		f.coord.Read(ctx, "bob", domain.MessageReadPayload{})
		f.coord.Read(ctx, "alice", domain.MessageReadPayload{MessageID: "m1"})
		f.coord.Read(ctx, "carol", domain.MessageReadPayload{MessageID: "m1"})

		assert.Empty(t, alice.events(domain.EventMessageRead))
		assert.Equal(t, domain.StatusSent, f.msgs.status("m1"))
	})

	t.Run("重複 read", func(t *testing.T) {
		f := newCoordinatorFixture(t, config.DeliveryConfig{})
		f.connect("alice")
		f.store(t, "m1", "alice")

		f.coord.Read(ctx, "bob", domain.MessageReadPayload{MessageID: "m1"})
		f.coord.Read(ctx, "bob", domain.MessageReadPayload{MessageID: "m1"})

		f.coord.Close()
		assert.Equal(t, []domain.MessageStatus{domain.StatusDelivered, domain.StatusRead}, f.publisher.transitions("m1"))
	})
}

func TestDeliveryCoordinator_ConcurrentNeverRegresses(t *testing.T) {
	ctx := context.Background()
	f := newCoordinatorFixture(t, config.DeliveryConfig{})
	f.connect("alice")
	f.connect("bob")

	for i := 0; i < 50; i++ {
		msg := f.store(t, fmt.Sprintf("race-%d", i), "alice")

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			f.coord.Send(ctx, "alice", domain.NewMessagePayload{Message: msg})
		}()
		go func() {
			defer wg.Done()
			f.coord.Read(ctx, "bob", domain.MessageReadPayload{MessageID: msg.ID})
		}()
		wg.Wait()

		assert.Equal(t, domain.StatusRead, f.msgs.status(msg.ID))
		history := f.msgs.statusHistory(msg.ID)
		for j := 1; j < len(history); j++ {
			assert.True(t, history[j-1].Before(history[j]), "history %v", history)
		}
	}
}
