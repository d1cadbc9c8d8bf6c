package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domainchat "renthub/internal/domain/chat"
)

// ChatStore persists conversations and messages in MongoDB. The uniqueness
// invariant lives in a unique index on pair_key, so find-or-create is a
// single upsert rather than a check-then-insert race.
type ChatStore struct {
	db            *mongo.Database
	conversations *mongo.Collection
	messages      *mongo.Collection
}

func NewChatStore(db *mongo.Database) (*ChatStore, error) {
	store := &ChatStore{
		db:            db,
		conversations: db.Collection("chat_conversations"),
		messages:      db.Collection("chat_messages"),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := store.conversations.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "pair_key", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "participants", Value: 1}, {Key: "last_message_at", Value: -1}}},
	}); err != nil {
		return nil, err
	}
	if _, err := store.messages.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: 1}, {Key: "seq", Value: 1}}},
		{Keys: bson.D{{Key: "receiver_id", Value: 1}, {Key: "is_read", Value: 1}}},
	}); err != nil {
		return nil, err
	}
	return store, nil
}

type conversationDocument struct {
	ID              string    `bson:"_id"`
	PairKey         string    `bson:"pair_key"`
	PropertyID      string    `bson:"property_id"`
	Participants    []string  `bson:"participants"`
	CreatedAt       time.Time `bson:"created_at"`
	LastMessageAt   time.Time `bson:"last_message_at"`
	LastSenderID    string    `bson:"last_sender_id,omitempty"`
	LastMessageText string    `bson:"last_message_text,omitempty"`
	Seq             int64     `bson:"seq"`
}

type messageDocument struct {
	ID             string    `bson:"_id"`
	ConversationID string    `bson:"conversation_id"`
	Seq            int64     `bson:"seq"`
	SenderID       string    `bson:"sender_id"`
	ReceiverID     string    `bson:"receiver_id"`
	Content        string    `bson:"content"`
	CreatedAt      time.Time `bson:"created_at"`
	IsRead         bool      `bson:"is_read"`
	ReadAt         time.Time `bson:"read_at,omitempty"`
}

func (d conversationDocument) toDomain() *domainchat.Conversation {
	conversation := &domainchat.Conversation{
		ID:              domainchat.ConversationID(d.ID),
		PropertyID:      d.PropertyID,
		CreatedAt:       d.CreatedAt.UTC(),
		LastMessageAt:   d.LastMessageAt.UTC(),
		LastSenderID:    d.LastSenderID,
		LastMessageText: d.LastMessageText,
	}
	if len(d.Participants) == 2 {
		conversation.ParticipantA = d.Participants[0]
		conversation.ParticipantB = d.Participants[1]
	}
	return conversation
}

func (d messageDocument) toDomain() domainchat.Message {
	return domainchat.Message{
		ID:             domainchat.MessageID(d.ID),
		ConversationID: domainchat.ConversationID(d.ConversationID),
		Seq:            d.Seq,
		SenderID:       d.SenderID,
		ReceiverID:     d.ReceiverID,
		Content:        d.Content,
		CreatedAt:      d.CreatedAt.UTC(),
		IsRead:         d.IsRead,
	}
}

func (s *ChatStore) ByID(ctx context.Context, id domainchat.ConversationID) (*domainchat.Conversation, error) {
	var doc conversationDocument
	if err := s.conversations.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		return nil, storeStatus(err, "conversation not found")
	}
	return doc.toDomain(), nil
}

func (s *ChatStore) FindByTriple(ctx context.Context, propertyID, userA, userB string) (*domainchat.Conversation, error) {
	key, err := domainchat.PairKey(propertyID, userA, userB)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	var doc conversationDocument
	if err := s.conversations.FindOne(ctx, bson.M{"pair_key": key}).Decode(&doc); err != nil {
		return nil, storeStatus(err, "conversation not found")
	}
	return doc.toDomain(), nil
}

func (s *ChatStore) FindOrCreate(ctx context.Context, propertyID, userA, userB string, now time.Time) (*domainchat.Conversation, bool, error) {
	candidate, err := domainchat.NewConversation(domainchat.CreateConversationParams{
		ID:         domainchat.ConversationID(uuid.NewString()),
		PropertyID: propertyID,
		UserA:      userA,
		UserB:      userB,
		Now:        now,
	})
	if err != nil {
		return nil, false, status.Error(codes.InvalidArgument, err.Error())
	}
	key, err := domainchat.PairKey(propertyID, userA, userB)
	if err != nil {
		return nil, false, status.Error(codes.InvalidArgument, err.Error())
	}

	insert := conversationDocument{
		ID:            string(candidate.ID),
		PairKey:       key,
		PropertyID:    candidate.PropertyID,
		Participants:  []string{candidate.ParticipantA, candidate.ParticipantB},
		CreatedAt:     candidate.CreatedAt,
		LastMessageAt: candidate.LastMessageAt,
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var doc conversationDocument
	err = s.conversations.FindOneAndUpdate(ctx,
		bson.M{"pair_key": key},
		bson.M{"$setOnInsert": insert},
		opts,
	).Decode(&doc)
	if err != nil {
		// A concurrent upsert for the same pair_key can lose the unique-index
		// race; the winner's document is now there to fetch.
		if mongo.IsDuplicateKeyError(err) {
			existing, ferr := s.FindByTriple(ctx, propertyID, userA, userB)
			if ferr != nil {
				return nil, false, ferr
			}
			return existing, false, nil
		}
		return nil, false, storeStatus(err, "conversation not found")
	}
	return doc.toDomain(), doc.ID == string(candidate.ID), nil
}

func (s *ChatStore) ListForUser(ctx context.Context, userID string) ([]domainchat.Conversation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "last_message_at", Value: -1}})
	cursor, err := s.conversations.Find(ctx, bson.M{"participants": userID}, opts)
	if err != nil {
		return nil, storeStatus(err, "")
	}
	defer cursor.Close(ctx)
	result := make([]domainchat.Conversation, 0)
	for cursor.Next(ctx) {
		var doc conversationDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, storeStatus(err, "")
		}
		result = append(result, *doc.toDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, storeStatus(err, "")
	}
	return result, nil
}

// Append inserts the message and bumps the conversation preview in one
// transaction, so a concurrent list never sees a conversation whose preview
// lags its own last_message_at.
func (s *ChatStore) Append(ctx context.Context, conversationID domainchat.ConversationID, senderID, content string, now time.Time) (*domainchat.Message, error) {
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	session, err := s.db.Client().StartSession()
	if err != nil {
		return nil, storeStatus(err, "")
	}
	defer session.EndSession(ctx)

	result, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		var conv conversationDocument
		bumpOpts := options.FindOneAndUpdate().SetReturnDocument(options.After)
		if err := s.conversations.FindOneAndUpdate(sc,
			bson.M{"_id": string(conversationID)},
			bson.M{
				"$inc": bson.M{"seq": 1},
				"$set": bson.M{
					"last_message_at":   now,
					"last_sender_id":    senderID,
					"last_message_text": domainchat.Preview(content),
				},
			},
			bumpOpts,
		).Decode(&conv); err != nil {
			return nil, err
		}
		receiverID, derr := conv.toDomain().OtherParticipant(senderID)
		if derr != nil {
			return nil, derr
		}
		doc := messageDocument{
			ID:             uuid.NewString(),
			ConversationID: string(conversationID),
			Seq:            conv.Seq,
			SenderID:       senderID,
			ReceiverID:     receiverID,
			Content:        content,
			CreatedAt:      now,
		}
		if _, err := s.messages.InsertOne(sc, doc); err != nil {
			return nil, err
		}
		message := doc.toDomain()
		return &message, nil
	})
	if err != nil {
		if errors.Is(err, domainchat.ErrNotParticipant) {
			return nil, status.Error(codes.PermissionDenied, "sender is not a conversation participant")
		}
		return nil, storeStatus(err, "conversation not found")
	}
	return result.(*domainchat.Message), nil
}

func (s *ChatStore) ListOrdered(ctx context.Context, conversationID domainchat.ConversationID) ([]domainchat.Message, error) {
	if err := s.conversations.FindOne(ctx, bson.M{"_id": string(conversationID)}).Err(); err != nil {
		return nil, storeStatus(err, "conversation not found")
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "seq", Value: 1}})
	cursor, err := s.messages.Find(ctx, bson.M{"conversation_id": string(conversationID)}, opts)
	if err != nil {
		return nil, storeStatus(err, "")
	}
	defer cursor.Close(ctx)
	result := make([]domainchat.Message, 0)
	for cursor.Next(ctx) {
		var doc messageDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, storeStatus(err, "")
		}
		result = append(result, doc.toDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, storeStatus(err, "")
	}
	return result, nil
}

// MarkConversationRead is a bulk conditional update scoped to rows that are
// unread when it executes; a message appended afterwards stays unread.
func (s *ChatStore) MarkConversationRead(ctx context.Context, conversationID domainchat.ConversationID, viewerID string, now time.Time) (int64, error) {
	if now.IsZero() {
		now = time.Now()
	}
	res, err := s.messages.UpdateMany(ctx,
		bson.M{
			"conversation_id": string(conversationID),
			"receiver_id":     viewerID,
			"is_read":         false,
		},
		bson.M{"$set": bson.M{"is_read": true, "read_at": now.UTC()}},
	)
	if err != nil {
		return 0, storeStatus(err, "")
	}
	return res.ModifiedCount, nil
}

func (s *ChatStore) UnreadCountFor(ctx context.Context, userID string) (int64, error) {
	count, err := s.messages.CountDocuments(ctx, bson.M{"receiver_id": userID, "is_read": false})
	if err != nil {
		return 0, storeStatus(err, "")
	}
	return count, nil
}

func (s *ChatStore) UnreadByConversation(ctx context.Context, userID string) (map[domainchat.ConversationID]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"receiver_id": userID, "is_read": false}}},
		{{Key: "$group", Value: bson.M{"_id": "$conversation_id", "count": bson.M{"$sum": 1}}}},
	}
	cursor, err := s.messages.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, storeStatus(err, "")
	}
	defer cursor.Close(ctx)
	result := make(map[domainchat.ConversationID]int64)
	for cursor.Next(ctx) {
		var row struct {
			ConversationID string `bson:"_id"`
			Count          int64  `bson:"count"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, storeStatus(err, "")
		}
		result[domainchat.ConversationID(row.ConversationID)] = row.Count
	}
	if err := cursor.Err(); err != nil {
		return nil, storeStatus(err, "")
	}
	return result, nil
}

// storeStatus maps driver errors onto the store error contract.
func storeStatus(err error, notFoundMsg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		if notFoundMsg == "" {
			notFoundMsg = "not found"
		}
		return status.Error(codes.NotFound, notFoundMsg)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return status.FromContextError(err).Err()
	default:
		return status.Error(codes.Unavailable, err.Error())
	}
}
