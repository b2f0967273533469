// Package audit records admin actions in MongoDB.
package audit

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"lpg-service/internal/config"
)

const service = "lpg-service"

// Entry is one audit log document.
type Entry struct {
	ID        string    `bson:"_id,omitempty"`
	Service   string    `bson:"service"`
	Actor     string    `bson:"actor"`
	Action    string    `bson:"action"`
	EntityID  string    `bson:"entity_id"`
	Data      bson.M    `bson:"data,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
}

type Auditor interface {
	Record(ctx context.Context, entry *Entry) error
}

type MongoAuditor struct {
	client     *mongo.Client
	collection *mongo.Collection
}

func NewMongoAuditor(ctx context.Context, cfg config.MongoDBConfig) (*MongoAuditor, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb ping failed: %w", err)
	}

	return &MongoAuditor{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
	}, nil
}

func (m *MongoAuditor) Record(ctx context.Context, entry *Entry) error {
	entry.Service = service
	entry.CreatedAt = time.Now().UTC()

	if _, err := m.collection.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("failed to write audit log %s: %w", entry.Action, err)
	}
	return nil
}

// Recent returns the newest entries for one entity.
func (m *MongoAuditor) Recent(ctx context.Context, entityID string, limit int64) ([]*Entry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)

	cursor, err := m.collection.Find(ctx, bson.M{"entity_id": entityID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []*Entry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode audit logs: %w", err)
	}

	return entries, nil
}

func (m *MongoAuditor) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// Noop discards every entry. Used when no MongoDB URI is configured.
type Noop struct{}

func (Noop) Record(context.Context, *Entry) error { return nil }
