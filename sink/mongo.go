package sink

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/use-agent/harvest/models"
)

// Mongo mirrors records into a collection, upserting on
// (location, acategory, title) so re-running a query refreshes rows.
type Mongo struct {
	client   *mongo.Client
	listings *mongo.Collection
}

// NewMongo connects, pings and ensures the upsert key index.
func NewMongo(ctx context.Context, uri, database, collection string) (*Mongo, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("sink: connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("sink: ping MongoDB: %w", err)
	}

	m := &Mongo{
		client:   client,
		listings: client.Database(database).Collection(collection),
	}

	index := mongo.IndexModel{
		Keys: bson.D{
			{Key: "location", Value: 1},
			{Key: "acategory", Value: 1},
			{Key: "title", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	}
	if _, err := m.listings.Indexes().CreateOne(ctx, index); err != nil {
		slog.Warn("mongo: create listing index failed", "error", err)
	}

	return m, nil
}

// Save implements Sink with one bulk write of upserts.
func (m *Mongo) Save(ctx context.Context, q models.Query, records []models.NormalizedRecord) (string, error) {
	ref := m.listings.Database().Name() + "." + m.listings.Name()
	if len(records) == 0 {
		return ref, nil
	}

	now := time.Now().UTC()
	writes := make([]mongo.WriteModel, 0, len(records))
	for _, r := range records {
		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(upsertFilter(r)).
			SetUpdate(bson.M{
				"$set":         r,
				"$currentDate": bson.M{"updated_at": true},
				"$setOnInsert": bson.M{"first_seen": now},
			}).
			SetUpsert(true))
	}

	res, err := m.listings.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return "", fmt.Errorf("sink: mongo bulk upsert for %s: %w", q, err)
	}
	slog.Info("records mirrored to mongo",
		"collection", ref,
		"upserted", res.UpsertedCount,
		"modified", res.ModifiedCount,
	)
	return ref, nil
}

// Close disconnects the client.
func (m *Mongo) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

func upsertFilter(r models.NormalizedRecord) bson.M {
	return bson.M{
		"location":  r.Location,
		"acategory": r.SearchTerm,
		"title":     r.Title,
	}
}
