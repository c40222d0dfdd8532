package db

import (
	"context"

	"github.com/ukydev/vitarenta/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MaxTelemetryLimit bounds FindTelemetry.
const MaxTelemetryLimit = 1000

// MongoTelemetryCollection wraps a MongoDB collection for telemetry operations.
type MongoTelemetryCollection struct {
	Source CollectionSource
}

// NewTelemetryCollection returns a telemetry store backed by src.
func NewTelemetryCollection(src CollectionSource) *MongoTelemetryCollection {
	return &MongoTelemetryCollection{Source: src}
}

func (c *MongoTelemetryCollection) coll() (*mongo.Collection, error) {
	return resolve(c.Source, TelemetrySamplesCollection)
}

// InsertTelemetry inserts a telemetry record into the collection.
func (c *MongoTelemetryCollection) InsertTelemetry(ctx context.Context, telemetry *models.Telemetry) error {
	coll, err := c.coll()
	if err != nil {
		return err
	}
	if telemetry.ID.IsZero() {
		telemetry.ID = primitive.NewObjectID()
	}
	_, err = coll.InsertOne(ctx, telemetry)
	return err
}

// FindTelemetry returns the latest samples of a vehicle, newest first.
func (c *MongoTelemetryCollection) FindTelemetry(ctx context.Context, vehiculeID string, limit int) ([]models.Telemetry, error) {
	coll, err := c.coll()
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > MaxTelemetryLimit {
		limit = MaxTelemetryLimit
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := coll.Find(ctx, bson.M{"vehicule_id": vehiculeID}, opts)
	if err != nil {
		return nil, err
	}
	out := []models.Telemetry{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
