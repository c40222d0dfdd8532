package db

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// advisoryLock is a lock document used by reservations and challenge joins.
// A TTL index on expires_at removes abandoned locks; Acquire also takes over
// expired ones directly.
type advisoryLock struct {
	ID        string    `bson:"_id,omitempty"`
	Owner     string    `bson:"owner"`
	ExpiresAt time.Time `bson:"expires_at"`
	CreatedAt time.Time `bson:"created_at"`
}

// MongoLockCollection implements LockCollection on the reservation_locks collection.
type MongoLockCollection struct {
	Source CollectionSource
}

// NewLockCollection returns a lock store backed by src.
func NewLockCollection(src CollectionSource) *MongoLockCollection {
	return &MongoLockCollection{Source: src}
}

func (c *MongoLockCollection) coll() (*mongo.Collection, error) {
	return resolve(c.Source, LocksCollection)
}

// Acquire takes the lock named key for owner until ttl elapses. It returns
// ErrLocked when another owner holds an unexpired lock.
func (c *MongoLockCollection) Acquire(ctx context.Context, key, owner string, ttl time.Duration) error {
	coll, err := c.coll()
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	// Matches only a missing or expired lock; a live one makes the upsert
	// collide on _id.
	filter := bson.M{"_id": key, "expires_at": bson.M{"$lte": now}}
	update := bson.M{"$set": advisoryLock{
		Owner:     owner,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}}
	_, err = coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		return ErrLocked
	}
	return err
}

// Release drops the lock if owner still holds it.
func (c *MongoLockCollection) Release(ctx context.Context, key, owner string) error {
	coll, err := c.coll()
	if err != nil {
		return err
	}
	_, err = coll.DeleteOne(ctx, bson.M{"_id": key, "owner": owner})
	return err
}
