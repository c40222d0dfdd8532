package db

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Indexes lists the indexes every deployment needs, per collection.
var Indexes = map[string][]mongo.IndexModel{
	UsersCollection: {
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "role", Value: 1}}},
	},
	VehiclesCollection: {
		{Keys: bson.D{{Key: "immatriculation", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "agence_id", Value: 1}, {Key: "statut", Value: 1}}},
	},
	ReservationsCollection: {
		{Keys: bson.D{{Key: "vehicule_id", Value: 1}, {Key: "date_debut", Value: 1}, {Key: "date_fin", Value: 1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}}},
		{Keys: bson.D{{Key: "agence_id", Value: 1}, {Key: "date_creation", Value: 1}}},
	},
	LocksCollection: {
		{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
	},
	ParticipationsCollection: {
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "challenge_id", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "deadline", Value: 1}}},
	},
	ProgressEntriesCollection: {
		{Keys: bson.D{{Key: "user_challenge_id", Value: 1}, {Key: "recorded_at", Value: 1}}},
	},
	RewardsCollection: {
		{Keys: bson.D{{Key: "user_challenge_id", Value: 1}}, Options: options.Index().SetUnique(true)},
	},
	TelemetrySamplesCollection: {
		{Keys: bson.D{{Key: "vehicule_id", Value: 1}, {Key: "timestamp", Value: -1}}},
	},
}

// EnsureIndexes creates the indexes listed in Indexes. Creating an index that
// already exists is a no-op in MongoDB.
func EnsureIndexes(ctx context.Context, src CollectionSource) error {
	for name, specs := range Indexes {
		coll, err := resolve(src, name)
		if err != nil {
			return err
		}
		created, err := coll.Indexes().CreateMany(ctx, specs)
		if err != nil {
			return fmt.Errorf("create indexes on %s: %w", name, err)
		}
		log.WithFields(log.Fields{
			"collection": name,
			"indexes":    created,
		}).Debug("Ensured indexes")
	}
	return nil
}
