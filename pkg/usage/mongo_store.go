package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// mongoRecord is the document layout of a counter in the usage_counters collection.
type mongoRecord struct {
	UserID    string    `bson:"user_id"`
	MonthKey  string    `bson:"month_key"`
	Action    string    `bson:"action"`
	Count     int64     `bson:"count"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// MongoStore implements Store on a MongoDB collection.
// Use OpenMongoStore, or run EnsureIndexes before first use: without the unique
// index concurrent upserts can create duplicate documents for one key.
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore creates a Mongo-backed counter store using the usage_counters collection.
func NewMongoStore(db *mongo.Database) *MongoStore {
	if db == nil {
		panic("usage: mongo database is required")
	}
	return &MongoStore{coll: db.Collection("usage_counters")}
}

// OpenMongoStore creates the store and ensures its unique index.
func OpenMongoStore(ctx context.Context, db *mongo.Database) (*MongoStore, error) {
	s := NewMongoStore(db)
	if err := s.EnsureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// EnsureIndexes creates the unique compound index backing upsert semantics. It is idempotent.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "user_id", Value: 1},
			{Key: "month_key", Value: 1},
			{Key: "action", Value: 1},
		},
		Options: options.Index().SetUnique(true).SetName("uniq_user_month_action"),
	})
	if err != nil {
		return fmt.Errorf("create usage counter index: %w", err)
	}
	return nil
}

func mongoFilter(userID uuid.UUID, monthKey string, action Action) bson.D {
	return bson.D{
		{Key: "user_id", Value: userID.String()},
		{Key: "month_key", Value: monthKey},
		{Key: "action", Value: string(action)},
	}
}

func (s *MongoStore) Get(ctx context.Context, userID uuid.UUID, monthKey string, action Action) (int64, error) {
	var rec mongoRecord
	err := s.coll.FindOne(ctx, mongoFilter(userID, monthKey, action)).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Join(ErrReadFailed, fmt.Errorf("get usage counter: %w", err))
	}
	return rec.Count, nil
}

func (s *MongoStore) Increment(ctx context.Context, userID uuid.UUID, monthKey string, action Action) (int64, error) {
	update := bson.D{
		{Key: "$inc", Value: bson.D{{Key: "count", Value: int64(1)}}},
		{Key: "$set", Value: bson.D{{Key: "updated_at", Value: time.Now().UTC()}}},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	filter := mongoFilter(userID, monthKey, action)
	var rec mongoRecord
	err := s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&rec)
	if mongo.IsDuplicateKeyError(err) {
		// Lost an insert race on the unique index; the document exists now.
		err = s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&rec)
	}
	if err != nil {
		return 0, errors.Join(ErrIncrementFailed, fmt.Errorf("increment usage counter: %w", err))
	}
	return rec.Count, nil
}
