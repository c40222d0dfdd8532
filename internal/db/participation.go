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

// MongoParticipationCollection implements ParticipationCollection.
type MongoParticipationCollection struct {
	Source CollectionSource
}

// NewParticipationCollection returns a participation store backed by src.
func NewParticipationCollection(src CollectionSource) *MongoParticipationCollection {
	return &MongoParticipationCollection{Source: src}
}

func (c *MongoParticipationCollection) coll() (*mongo.Collection, error) {
	return resolve(c.Source, ParticipationsCollection)
}

// InsertParticipation inserts a participation and assigns its ID.
func (c *MongoParticipationCollection) InsertParticipation(ctx context.Context, p *models.UserEcoChallenge) error {
	coll, err := c.coll()
	if err != nil {
		return err
	}
	p.UpdatedAt = time.Now().UTC()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	_, err = coll.InsertOne(ctx, p)
	return mapErr(err)
}

// FindParticipationByID finds a participation by its ID.
func (c *MongoParticipationCollection) FindParticipationByID(ctx context.Context, id string) (*models.UserEcoChallenge, error) {
	coll, err := c.coll()
	if err != nil {
		return nil, err
	}
	oid, err := ObjectID(id)
	if err != nil {
		return nil, err
	}
	var p models.UserEcoChallenge
	if err := coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&p); err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

// FindParticipations lists participations, newest first.
func (c *MongoParticipationCollection) FindParticipations(ctx context.Context, filter ParticipationFilter) ([]models.UserEcoChallenge, error) {
	coll, err := c.coll()
	if err != nil {
		return nil, err
	}
	query := bson.M{}
	if filter.UserID != "" {
		query["user_id"] = filter.UserID
	}
	if filter.ChallengeID != "" {
		query["challenge_id"] = filter.ChallengeID
	}
	if len(filter.Statuses) > 0 {
		query["status"] = bson.M{"$in": filter.Statuses}
	}
	cursor, err := coll.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "started_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	out := []models.UserEcoChallenge{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CountParticipants counts active and completed participations of a challenge.
func (c *MongoParticipationCollection) CountParticipants(ctx context.Context, challengeID string) (int64, error) {
	coll, err := c.coll()
	if err != nil {
		return 0, err
	}
	return coll.CountDocuments(ctx, bson.M{
		"challenge_id": challengeID,
		"status":       bson.M{"$in": []models.ParticipationStatus{models.ParticipationActive, models.ParticipationCompleted}},
	})
}

// IncrementProgress adds value to an active participation and recomputes
// progress_percentage against target, capped at 100 and rounded to 2 decimals.
// It returns the updated document.
func (c *MongoParticipationCollection) IncrementProgress(ctx context.Context, id string, value, target float64) (*models.UserEcoChallenge, error) {
	coll, err := c.coll()
	if err != nil {
		return nil, err
	}
	oid, err := ObjectID(id)
	if err != nil {
		return nil, err
	}

	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"progress":   bson.M{"$add": bson.A{"$progress", value}},
			"updated_at": time.Now().UTC(),
		}}},
		{{Key: "$set", Value: bson.M{
			"progress_percentage": bson.M{"$round": bson.A{
				bson.M{"$min": bson.A{100, bson.M{"$multiply": bson.A{bson.M{"$divide": bson.A{"$progress", target}}, 100}}}},
				2,
			}},
		}}},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var p models.UserEcoChallenge
	err = coll.FindOneAndUpdate(ctx, bson.M{"_id": oid, "status": models.ParticipationActive}, update, opts).Decode(&p)
	if err == mongo.ErrNoDocuments {
		return nil, c.missingOrConflict(ctx, coll, oid)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SetParticipationStatus moves a participation from one status to another,
// stamping completed_at on completion. ErrConflict means the stored status
// is no longer from.
func (c *MongoParticipationCollection) SetParticipationStatus(ctx context.Context, id string, from, to models.ParticipationStatus) error {
	coll, err := c.coll()
	if err != nil {
		return err
	}
	oid, err := ObjectID(id)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	set := bson.M{"status": to, "updated_at": now}
	if to == models.ParticipationCompleted {
		set["completed_at"] = now
	}
	res, err := coll.UpdateOne(ctx, bson.M{"_id": oid, "status": from}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return c.missingOrConflict(ctx, coll, oid)
	}
	return nil
}

// MarkRewardClaimed flags a completed participation as claimed. A second
// claim fails with ErrConflict.
func (c *MongoParticipationCollection) MarkRewardClaimed(ctx context.Context, id string) error {
	coll, err := c.coll()
	if err != nil {
		return err
	}
	oid, err := ObjectID(id)
	if err != nil {
		return err
	}
	res, err := coll.UpdateOne(ctx,
		bson.M{"_id": oid, "status": models.ParticipationCompleted, "reward_claimed": false},
		bson.M{"$set": bson.M{"reward_claimed": true, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return c.missingOrConflict(ctx, coll, oid)
	}
	return nil
}

// UnmarkRewardClaimed clears the claimed flag so a failed claim can be retried.
func (c *MongoParticipationCollection) UnmarkRewardClaimed(ctx context.Context, id string) error {
	coll, err := c.coll()
	if err != nil {
		return err
	}
	oid, err := ObjectID(id)
	if err != nil {
		return err
	}
	res, err := coll.UpdateOne(ctx,
		bson.M{"_id": oid, "reward_claimed": true},
		bson.M{"$set": bson.M{"reward_claimed": false, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return c.missingOrConflict(ctx, coll, oid)
	}
	return nil
}

// ExpireOverdue marks active participations whose deadline has passed as expired.
func (c *MongoParticipationCollection) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	coll, err := c.coll()
	if err != nil {
		return 0, err
	}
	res, err := coll.UpdateMany(ctx,
		bson.M{"status": models.ParticipationActive, "deadline": bson.M{"$lt": now}},
		bson.M{"$set": bson.M{"status": models.ParticipationExpired, "updated_at": now}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// ParticipationAnalytics returns per challenge participation counts.
func (c *MongoParticipationCollection) ParticipationAnalytics(ctx context.Context) ([]models.ChallengeAnalytics, error) {
	coll, err := c.coll()
	if err != nil {
		return nil, err
	}
	countStatus := func(s models.ParticipationStatus) bson.M {
		return bson.M{"$sum": bson.M{"$cond": bson.A{bson.M{"$eq": bson.A{"$status", s}}, 1, 0}}}
	}
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":          "$challenge_id",
			"participants": bson.M{"$sum": 1},
			"completed":    countStatus(models.ParticipationCompleted),
			"abandoned":    countStatus(models.ParticipationAbandoned),
			"expired":      countStatus(models.ParticipationExpired),
		}}},
		{{Key: "$sort", Value: bson.M{"participants": -1}}},
	}
	cursor, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	out := []models.ChallengeAnalytics{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *MongoParticipationCollection) missingOrConflict(ctx context.Context, coll *mongo.Collection, oid primitive.ObjectID) error {
	n, err := coll.CountDocuments(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrConflict
}

// MongoProgressCollection implements ProgressCollection.
type MongoProgressCollection struct {
	Source CollectionSource
}

// NewProgressCollection returns a progress entry store backed by src.
func NewProgressCollection(src CollectionSource) *MongoProgressCollection {
	return &MongoProgressCollection{Source: src}
}

// InsertProgress records one progress entry.
func (c *MongoProgressCollection) InsertProgress(ctx context.Context, p *models.EcoChallengeProgress) error {
	coll, err := resolve(c.Source, ProgressEntriesCollection)
	if err != nil {
		return err
	}
	if p.RecordedAt.IsZero() {
		p.RecordedAt = time.Now().UTC()
	}
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	_, err = coll.InsertOne(ctx, p)
	return err
}

// FindProgress lists the entries of a participation in recording order.
func (c *MongoProgressCollection) FindProgress(ctx context.Context, userChallengeID string) ([]models.EcoChallengeProgress, error) {
	coll, err := resolve(c.Source, ProgressEntriesCollection)
	if err != nil {
		return nil, err
	}
	cursor, err := coll.Find(ctx,
		bson.M{"user_challenge_id": userChallengeID},
		options.Find().SetSort(bson.D{{Key: "recorded_at", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	out := []models.EcoChallengeProgress{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
