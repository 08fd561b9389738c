package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"direct_chat_service/internal/chat/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MessageRepository definition message storage
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	FindByID(ctx context.Context, messageID string) (*domain.Message, error)
	// FindByConversation oldest first
	FindByConversation(ctx context.Context, conversationID string) ([]domain.Message, error)
	// AdvanceStatus move the message to status when it is still below it and return the stored message.
	// A message already at or past status is returned unchanged, never downgraded.
	AdvanceStatus(ctx context.Context, messageID string, status domain.MessageStatus) (*domain.Message, error)
	// MarkConversationRead mark every message not sent by readerID as read, passing through delivered
	MarkConversationRead(ctx context.Context, conversationID, readerID string) (int64, error)
	// CountUnreadByConversation messages not sent by readerID and not yet read, per conversation
	CountUnreadByConversation(ctx context.Context, readerID string, conversationIDs []string) ([]domain.ConversationUnreadInfo, error)
}

type messageRepository struct {
	coll *mongo.Collection
}

// NewMongoMessageRepository create a MessageRepository
func NewMongoMessageRepository(db *mongo.Database) MessageRepository {
	return &messageRepository{
		coll: db.Collection("messages"),
	}
}

// EnsureMessageIndexes conversation + created_at for history reads
func EnsureMessageIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("messages").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "conversation", Value: 1}, {Key: "created_at", Value: 1}},
	})
	return err
}

func (r *messageRepository) Create(ctx context.Context, msg *domain.Message) error {
	_, err := r.coll.InsertOne(ctx, msg)
	return err
}

func (r *messageRepository) FindByID(ctx context.Context, messageID string) (*domain.Message, error) {
	var msg domain.Message
	err := r.coll.FindOne(ctx, bson.M{"_id": messageID}).Decode(&msg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepository) FindByConversation(ctx context.Context, conversationID string) ([]domain.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cur, err := r.coll.Find(ctx, bson.M{"conversation": conversationID}, opts)
	if err != nil {
		return nil, err
	}
	msgs := []domain.Message{}
	if err := cur.All(ctx, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *messageRepository) AdvanceStatus(ctx context.Context, messageID string, status domain.MessageStatus) (*domain.Message, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("unknown status %q", status)
	}
	lower := status.Lower()
	if len(lower) == 0 {
		return r.FindByID(ctx, messageID)
	}

	// 只有狀態低於目標時才更新, 併發的 delivered/read 不會倒退
	filter := bson.M{
		"_id":    messageID,
		"status": bson.M{"$in": lower},
	}
	update := bson.M{"$set": bson.M{"status": status, "updated_at": time.Now().UTC()}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var msg domain.Message
	err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&msg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return r.FindByID(ctx, messageID)
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepository) MarkConversationRead(ctx context.Context, conversationID, readerID string) (int64, error) {
	now := time.Now().UTC()
	filter := func(status domain.MessageStatus) bson.M {
		return bson.M{
			"conversation": conversationID,
			"sender":       bson.M{"$ne": readerID},
			"status":       status,
		}
	}
	set := func(status domain.MessageStatus) bson.M {
		return bson.M{"$set": bson.M{"status": status, "updated_at": now}}
	}

	// 先補上 delivered, read 不會跳過 delivered
	if _, err := r.coll.UpdateMany(ctx, filter(domain.StatusSent), set(domain.StatusDelivered)); err != nil {
		return 0, err
	}
	res, err := r.coll.UpdateMany(ctx, filter(domain.StatusDelivered), set(domain.StatusRead))
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (r *messageRepository) CountUnreadByConversation(ctx context.Context, readerID string, conversationIDs []string) ([]domain.ConversationUnreadInfo, error) {
	if len(conversationIDs) == 0 {
		return nil, nil
	}
	pipeline := mongo.Pipeline{
		// 1. 過濾出對方送出且未讀的訊息
		bson.D{{Key: "$match", Value: bson.D{
			{Key: "conversation", Value: bson.D{{Key: "$in", Value: conversationIDs}}},
			{Key: "sender", Value: bson.D{{Key: "$ne", Value: readerID}}},
			{Key: "status", Value: bson.D{{Key: "$ne", Value: domain.StatusRead}}},
		}}},
		// 2. 按 conversation 分組計算未讀數量
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$conversation"},
			{Key: "unread_count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}

	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate error: %w", err)
	}

	var results []domain.ConversationUnreadInfo
	if err := cur.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("cursor All error: %w", err)
	}
	return results, nil
}
