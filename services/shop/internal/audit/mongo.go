package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/appetiteclub/apt"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionName = "entries"

// MongoSink stores audit entries in MongoDB.
type MongoSink struct {
	url    string
	dbName string
	logger apt.Logger
	client *mongo.Client
	coll   *mongo.Collection
}

func NewMongoSink(url, dbName string, logger apt.Logger) *MongoSink {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	if dbName == "" {
		dbName = "cakeshop_audit"
	}
	return &MongoSink{url: url, dbName: dbName, logger: logger}
}

func (s *MongoSink) Start(ctx context.Context) error {
	clientOptions := options.Client().ApplyURI(s.url).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return fmt.Errorf("cannot connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("cannot ping MongoDB: %w", err)
	}

	s.client = client
	s.coll = client.Database(s.dbName).Collection(collectionName)

	idx := mongo.IndexModel{Keys: bson.D{{Key: "timestamp", Value: -1}}}
	if _, err := s.coll.Indexes().CreateOne(ctx, idx); err != nil {
		s.logger.Error("cannot create audit index", "error", err)
	}

	s.logger.Infof("Connected to MongoDB audit store, database: %s", s.dbName)
	return nil
}

func (s *MongoSink) Stop(ctx context.Context) error {
	if s.client != nil {
		if err := s.client.Disconnect(ctx); err != nil {
			return fmt.Errorf("cannot disconnect from MongoDB: %w", err)
		}
		s.logger.Info("Disconnected from MongoDB")
	}
	return nil
}

func (s *MongoSink) Write(ctx context.Context, e Entry) error {
	if s.coll == nil {
		return fmt.Errorf("audit store not started")
	}
	if _, err := s.coll.InsertOne(ctx, e); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *MongoSink) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if s.coll == nil {
		return nil, fmt.Errorf("audit store not started")
	}

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}).SetLimit(int64(limit))
	cur, err := s.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find audit entries: %w", err)
	}
	defer cur.Close(ctx)

	var entries []Entry
	if err := cur.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("decode audit entries: %w", err)
	}
	return entries, nil
}

// Clear deletes every entry and returns how many were removed.
func (s *MongoSink) Clear(ctx context.Context) (int64, error) {
	if s.coll == nil {
		return 0, fmt.Errorf("audit store not started")
	}
	res, err := s.coll.DeleteMany(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("clear audit entries: %w", err)
	}
	return res.DeletedCount, nil
}
