package db

import (
	"context"
	"time"

	"github.com/ukydev/vitarenta/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoChallengeCollection implements ChallengeCollection.
type MongoChallengeCollection struct {
	Source CollectionSource
}

// NewChallengeCollection returns an eco-challenge store backed by src.
func NewChallengeCollection(src CollectionSource) *MongoChallengeCollection {
	return &MongoChallengeCollection{Source: src}
}

func (c *MongoChallengeCollection) coll() (*mongo.Collection, error) {
	return resolve(c.Source, ChallengesCollection)
}

// InsertChallenge inserts a challenge and assigns its ID.
func (c *MongoChallengeCollection) InsertChallenge(ctx context.Context, ch *models.EcoChallenge) error {
	coll, err := c.coll()
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	ch.CreatedAt = now
	ch.UpdatedAt = now
	if ch.ValidFrom.IsZero() {
		ch.ValidFrom = now
	}
	if ch.ID.IsZero() {
		ch.ID = primitive.NewObjectID()
	}
	_, err = coll.InsertOne(ctx, ch)
	return mapErr(err)
}

// FindChallengeByID finds a challenge by its ID.
func (c *MongoChallengeCollection) FindChallengeByID(ctx context.Context, id string) (*models.EcoChallenge, error) {
	coll, err := c.coll()
	if err != nil {
		return nil, err
	}
	oid, err := ObjectID(id)
	if err != nil {
		return nil, err
	}
	var ch models.EcoChallenge
	if err := coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&ch); err != nil {
		return nil, mapErr(err)
	}
	return &ch, nil
}

// FindChallenges lists challenges, featured first then newest.
func (c *MongoChallengeCollection) FindChallenges(ctx context.Context, filter ChallengeFilter) ([]models.EcoChallenge, error) {
	coll, err := c.coll()
	if err != nil {
		return nil, err
	}
	query := bson.M{}
	if filter.Type != "" {
		query["type"] = filter.Type
	}
	if filter.Difficulty != "" {
		query["difficulty"] = filter.Difficulty
	}
	if filter.Featured != nil {
		query["featured"] = *filter.Featured
	}
	if filter.OpenAt != nil {
		at := *filter.OpenAt
		query["is_active"] = true
		query["valid_from"] = bson.M{"$lte": at}
		query["$or"] = bson.A{
			bson.M{"valid_until": bson.M{"$exists": false}},
			bson.M{"valid_until": nil},
			bson.M{"valid_until": bson.M{"$gt": at}},
		}
	}

	opts := options.Find().SetSort(bson.D{{Key: "featured", Value: -1}, {Key: "created_at", Value: -1}})
	cursor, err := coll.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	out := []models.EcoChallenge{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateChallenge replaces the stored challenge document.
func (c *MongoChallengeCollection) UpdateChallenge(ctx context.Context, ch *models.EcoChallenge) error {
	coll, err := c.coll()
	if err != nil {
		return err
	}
	ch.UpdatedAt = time.Now().UTC()
	res, err := coll.ReplaceOne(ctx, bson.M{"_id": ch.ID}, ch)
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteChallenge deletes a challenge by its ID.
func (c *MongoChallengeCollection) DeleteChallenge(ctx context.Context, id string) error {
	coll, err := c.coll()
	if err != nil {
		return err
	}
	oid, err := ObjectID(id)
	if err != nil {
		return err
	}
	res, err := coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeactivateExpired turns off active challenges whose valid_until has passed.
func (c *MongoChallengeCollection) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	coll, err := c.coll()
	if err != nil {
		return 0, err
	}
	res, err := coll.UpdateMany(ctx,
		bson.M{"is_active": true, "valid_until": bson.M{"$lte": now}},
		bson.M{"$set": bson.M{"is_active": false, "updated_at": now}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}
