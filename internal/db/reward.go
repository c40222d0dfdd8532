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

// MongoRewardCollection implements RewardCollection.
type MongoRewardCollection struct {
	Source CollectionSource
}

// NewRewardCollection returns a reward store backed by src.
func NewRewardCollection(src CollectionSource) *MongoRewardCollection {
	return &MongoRewardCollection{Source: src}
}

func (c *MongoRewardCollection) coll() (*mongo.Collection, error) {
	return resolve(c.Source, RewardsCollection)
}

// EnsureReward creates the reward for r.UserChallengeID unless one exists.
// It reports whether a new reward was written.
func (c *MongoRewardCollection) EnsureReward(ctx context.Context, r *models.EcoChallengeReward) (bool, error) {
	coll, err := c.coll()
	if err != nil {
		return false, err
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}

	res, err := coll.UpdateOne(ctx,
		bson.M{"user_challenge_id": r.UserChallengeID},
		bson.M{"$setOnInsert": r},
		options.Update().SetUpsert(true),
	)
	if mongo.IsDuplicateKeyError(err) {
		// concurrent upsert on the unique index; the other writer won
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return res.UpsertedCount > 0, nil
}

// MarkClaimed flags the reward of a participation as claimed.
func (c *MongoRewardCollection) MarkClaimed(ctx context.Context, userChallengeID string) error {
	coll, err := c.coll()
	if err != nil {
		return err
	}
	res, err := coll.UpdateOne(ctx,
		bson.M{"user_challenge_id": userChallengeID},
		bson.M{"$set": bson.M{"claimed": true}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Leaderboard ranks users by total reward points.
func (c *MongoRewardCollection) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	coll, err := c.coll()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":        "$user_id",
			"points":     bson.M{"$sum": "$points"},
			"credit":     bson.M{"$sum": "$credit"},
			"challenges": bson.M{"$sum": 1},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "points", Value: -1}, {Key: "_id", Value: 1}}}},
		{{Key: "$limit", Value: limit}},
	}
	cursor, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	out := []models.LeaderboardEntry{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
