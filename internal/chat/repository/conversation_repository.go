package repository

import (
	"context"
	"errors"
	"time"

	"direct_chat_service/internal/chat/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConversationRepository definition two party conversations
type ConversationRepository interface {
	Create(ctx context.Context, conv *domain.Conversation) error
	FindByID(ctx context.Context, conversationID string) (*domain.Conversation, error)
	FindByParticipants(ctx context.Context, memberA, memberB string) (*domain.Conversation, error)
	// FindByMember most recently updated first
	FindByMember(ctx context.Context, memberID string) ([]domain.Conversation, error)
	// SetLastMessage point the summary at msg and bump updated_at
	SetLastMessage(ctx context.Context, conversationID string, msg *domain.Message) error
	// SyncLastMessage refresh the summary copy when it is still msg, no-op otherwise
	SyncLastMessage(ctx context.Context, conversationID string, msg *domain.Message) error
}

type conversationRepository struct {
	coll *mongo.Collection
}

// NewMongoConversationRepository create new mongo conversation repository
func NewMongoConversationRepository(db *mongo.Database) ConversationRepository {
	return &conversationRepository{
		coll: db.Collection("conversations"),
	}
}

// EnsureConversationIndexes participants lookup + list order
func EnsureConversationIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("conversations").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "participants", Value: 1}, {Key: "updated_at", Value: -1}}},
	})
	return err
}

// Create create conversation
func (r *conversationRepository) Create(ctx context.Context, conv *domain.Conversation) error {
	_, err := r.coll.InsertOne(ctx, conv)
	return err
}

// FindByID find conversation by id
func (r *conversationRepository) FindByID(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := r.coll.FindOne(ctx, bson.M{"_id": conversationID}).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// FindByParticipants find the conversation of exactly these two members
func (r *conversationRepository) FindByParticipants(ctx context.Context, memberA, memberB string) (*domain.Conversation, error) {
	filter := bson.M{
		"participants": bson.M{
			"$all":  []string{memberA, memberB},
			"$size": 2,
		},
	}
	var conv domain.Conversation
	err := r.coll.FindOne(ctx, filter).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// FindByMember list member's conversations
func (r *conversationRepository) FindByMember(ctx context.Context, memberID string) ([]domain.Conversation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	cur, err := r.coll.Find(ctx, bson.M{"participants": memberID}, opts)
	if err != nil {
		return nil, err
	}
	convs := []domain.Conversation{}
	if err := cur.All(ctx, &convs); err != nil {
		return nil, err
	}
	return convs, nil
}

// SetLastMessage update conversation summary
func (r *conversationRepository) SetLastMessage(ctx context.Context, conversationID string, msg *domain.Message) error {
	update := bson.M{"$set": bson.M{"last_message": msg, "updated_at": time.Now().UTC()}}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": conversationID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrConversationNotFound
	}
	return nil
}

// SyncLastMessage keep the embedded last message status in step with the message, never backwards
func (r *conversationRepository) SyncLastMessage(ctx context.Context, conversationID string, msg *domain.Message) error {
	lower := msg.Status.Lower()
	if len(lower) == 0 {
		return nil
	}
	filter := bson.M{
		"_id":                 conversationID,
		"last_message._id":    msg.ID,
		"last_message.status": bson.M{"$in": lower},
	}
	update := bson.M{"$set": bson.M{"last_message": msg}}
	_, err := r.coll.UpdateOne(ctx, filter, update)
	return err
}
