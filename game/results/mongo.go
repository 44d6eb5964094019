package results

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wricardo/drivesim/game/engine"
)

// PayloadCollection is the part of *mongo.Collection the store needs
type PayloadCollection interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
}

// MongoStore inserts one document per finished run
type MongoStore struct {
	Collection PayloadCollection
}

// ConnectMongo connects and pings the server
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo.Connect error: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo.Ping error: %w", err)
	}
	return client, nil
}

// NewMongoStore stores runs in database.collection of client
func NewMongoStore(client *mongo.Client, database, collection string) *MongoStore {
	return &MongoStore{Collection: client.Database(database).Collection(collection)}
}

// Submit implements engine.ResultSink
func (m *MongoStore) Submit(ctx context.Context, payload engine.SubmissionPayload) (engine.Acknowledgment, error) {
	if m.Collection == nil {
		return engine.Acknowledgment{}, fmt.Errorf("mongo collection is nil")
	}
	res, err := m.Collection.InsertOne(ctx, payload)
	if err != nil {
		return engine.Acknowledgment{}, fmt.Errorf("failed to insert run %s: %w", payload.RunID, err)
	}
	return engine.Acknowledgment{Success: true, Message: fmt.Sprintf("stored run %s as %v", payload.RunID, res.InsertedID)}, nil
}
