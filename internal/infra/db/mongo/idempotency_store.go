package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainchat "renthub/internal/domain/chat"
)

// IdempotencyStore keeps sent-message records keyed by client idempotency
// key, expired by a TTL index so stale keys do not pile up.
type IdempotencyStore struct {
	col *mongo.Collection
}

func NewIdempotencyStore(db *mongo.Database, ttl time.Duration) (*IdempotencyStore, error) {
	col := db.Collection("chat_idempotency")
	if ttl <= 0 {
		ttl = 168 * time.Hour
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	idx := mongo.IndexModel{
		Keys:    bson.D{{Key: "created_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(int32(ttl.Seconds())),
	}
	if _, err := col.Indexes().CreateOne(ctx, idx); err != nil {
		return nil, err
	}
	return &IdempotencyStore{col: col}, nil
}

type idempotencyDocument struct {
	Key       string          `bson:"_id"`
	Message   messageDocument `bson:"message"`
	CreatedAt time.Time       `bson:"created_at"`
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (*domainchat.Message, bool, error) {
	var doc idempotencyDocument
	err := s.col.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, storeStatus(err, "")
	}
	message := doc.Message.toDomain()
	return &message, true, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, key string, msg *domainchat.Message) error {
	if msg == nil {
		return nil
	}
	doc := idempotencyDocument{
		Key: key,
		Message: messageDocument{
			ID:             string(msg.ID),
			ConversationID: string(msg.ConversationID),
			Seq:            msg.Seq,
			SenderID:       msg.SenderID,
			ReceiverID:     msg.ReceiverID,
			Content:        msg.Content,
			CreatedAt:      msg.CreatedAt,
			IsRead:         msg.IsRead,
		},
		CreatedAt: time.Now().UTC(),
	}
	opts := options.Replace().SetUpsert(true)
	if _, err := s.col.ReplaceOne(ctx, bson.M{"_id": key}, doc, opts); err != nil {
		return storeStatus(err, "")
	}
	return nil
}
