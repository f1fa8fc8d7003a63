package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mnuel1/chat-fieldiq/internal/domain/models"
)

const (
	conversationsColl = "conversations"
	messagesColl      = "messages"
)

// ConversationStore persists chat threads, their append-only message trail,
// and the accumulated form state the slot-filling pipeline mutates between
// turns.
type ConversationStore struct {
	client *mongo.Client
	dbName string
	now    func() time.Time
}

// NewConversationStore builds a conversation store sharing the event store's
// MongoDB client.
func NewConversationStore(store *EventStore) *ConversationStore {
	return &ConversationStore{
		client: store.client,
		dbName: store.dbName,
		now:    time.Now,
	}
}

func (s *ConversationStore) coll(name string) *mongo.Collection {
	return s.client.Database(s.dbName).Collection(name)
}

// GetOrCreate returns the user's conversation, creating an empty one on first
// contact. The upsert keeps concurrent first turns from racing two threads
// into existence.
func (s *ConversationStore) GetOrCreate(ctx context.Context, userID string) (*models.Conversation, error) {
	now := s.now().UTC()
	filter := bson.M{"user_id": userID}
	update := bson.M{"$setOnInsert": bson.M{
		"_id":        uuid.NewString(),
		"user_id":    userID,
		"form_data":  bson.M{},
		"created_at": now,
	}}

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var conversation models.Conversation
	if err := s.coll(conversationsColl).FindOneAndUpdate(ctx, filter, update, opts).Decode(&conversation); err != nil {
		return nil, fmt.Errorf("get or create conversation for user %s: %w", userID, err)
	}
	return &conversation, nil
}

// Get fetches a conversation by id, returning nil when it does not exist.
func (s *ConversationStore) Get(ctx context.Context, conversationID string) (*models.Conversation, error) {
	var conversation models.Conversation
	err := s.coll(conversationsColl).FindOne(ctx, bson.M{"_id": conversationID}).Decode(&conversation)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch conversation %s: %w", conversationID, err)
	}
	return &conversation, nil
}

// ReplaceFormData overwrites the conversation's accumulated form state
// wholesale. A nil form clears the state to an empty map.
func (s *ConversationStore) ReplaceFormData(ctx context.Context, conversationID string, form map[string]any) error {
	if form == nil {
		form = map[string]any{}
	}

	res, err := s.coll(conversationsColl).UpdateOne(ctx,
		bson.M{"_id": conversationID},
		bson.M{"$set": bson.M{"form_data": form}})
	if err != nil {
		return fmt.Errorf("replace form data for conversation %s: %w", conversationID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("replace form data: conversation %s not found", conversationID)
	}
	return nil
}

// AppendMessage adds one message to the conversation trail and bumps
// last_message_at.
func (s *ConversationStore) AppendMessage(ctx context.Context, conversationID string, role models.MessageRole, text string, metadata map[string]any) error {
	now := s.now().UTC()
	message := models.ChatMessage{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Message:        text,
		Metadata:       metadata,
		CreatedAt:      now,
	}

	if _, err := s.coll(messagesColl).InsertOne(ctx, message); err != nil {
		return fmt.Errorf("append message to conversation %s: %w", conversationID, err)
	}

	_, err := s.coll(conversationsColl).UpdateOne(ctx,
		bson.M{"_id": conversationID},
		bson.M{"$set": bson.M{"last_message_at": now}})
	if err != nil {
		return fmt.Errorf("bump last_message_at for conversation %s: %w", conversationID, err)
	}
	return nil
}

// RecentMessages returns the last limit messages in chronological order.
func (s *ConversationStore) RecentMessages(ctx context.Context, conversationID string, limit int) ([]models.ChatMessage, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.coll(messagesColl).Find(ctx, bson.M{"conversation_id": conversationID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list messages for conversation %s: %w", conversationID, err)
	}

	var messages []models.ChatMessage
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}

	// Reverse the newest-first fetch back into conversation order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
