package repository

import (
	"context"
	"fmt"
	"time"

	"perfbot/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const auditService = "perfbot"

// MongoAudit writes order audit entries to a MongoDB collection
type MongoAudit struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoAudit connects and pings the server
func NewMongoAudit(ctx context.Context, uri, database, collection string) (*MongoAudit, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &MongoAudit{
		client:     client,
		collection: client.Database(database).Collection(collection),
	}, nil
}

// Ping checks the connection for health reporting
func (m *MongoAudit) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

// Close disconnects the client
func (m *MongoAudit) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// AuditLog is the stored document shape
type AuditLog struct {
	ID        interface{} `bson:"_id,omitempty" json:"-"`
	Service   string      `bson:"service" json:"service"`
	Action    string      `bson:"action" json:"action"`
	EntityID  string      `bson:"entity_id" json:"entity_id"`
	UserID    string      `bson:"user_id" json:"user_id"`
	Data      bson.M      `bson:"data" json:"data"`
	CreatedAt time.Time   `bson:"created_at" json:"created_at"`
}

// Record inserts one audit entry
func (m *MongoAudit) Record(ctx context.Context, entry model.AuditEntry) error {
	doc := AuditLog{
		Service:   auditService,
		Action:    entry.Action,
		EntityID:  entry.EntityID,
		UserID:    entry.UserID,
		Data:      bson.M(entry.Data),
		CreatedAt: entry.CreatedAt,
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	if _, err := m.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

// History returns the newest entries for an entity recorded for userID
func (m *MongoAudit) History(ctx context.Context, userID, entityID string, limit int64) ([]model.AuditEntry, error) {
	filter := bson.M{"entity_id": entityID, "user_id": userID}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)

	cursor, err := m.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer cursor.Close(ctx)

	var logs []AuditLog
	if err := cursor.All(ctx, &logs); err != nil {
		return nil, fmt.Errorf("failed to decode audit logs: %w", err)
	}

	entries := make([]model.AuditEntry, 0, len(logs))
	for _, l := range logs {
		entries = append(entries, model.AuditEntry{
			Action:    l.Action,
			EntityID:  l.EntityID,
			UserID:    l.UserID,
			Data:      map[string]interface{}(l.Data),
			CreatedAt: l.CreatedAt,
		})
	}
	return entries, nil
}
