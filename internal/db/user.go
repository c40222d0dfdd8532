package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ukydev/vitarenta/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoUserCollection implements UserCollection for MongoDB
type MongoUserCollection struct {
	Source CollectionSource
}

// NewUserCollection returns a user store backed by src.
func NewUserCollection(src CollectionSource) *MongoUserCollection {
	return &MongoUserCollection{Source: src}
}

func (c *MongoUserCollection) coll() (*mongo.Collection, error) {
	return resolve(c.Source, UsersCollection)
}

// InsertUser inserts a new user. The email is stored lowercased and must be unique.
func (c *MongoUserCollection) InsertUser(ctx context.Context, user *models.User) error {
	coll, err := c.coll()
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.DateJoined = now
	user.UpdatedAt = now
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}

	if _, err := coll.InsertOne(ctx, user); err != nil {
		return mapErr(err)
	}
	return nil
}

// FindUserByID finds a user by their ID
func (c *MongoUserCollection) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	coll, err := c.coll()
	if err != nil {
		return nil, err
	}
	oid, err := ObjectID(id)
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&user); err != nil {
		return nil, mapErr(err)
	}
	return &user, nil
}

// FindUserByEmail finds a user by their email, case-insensitively.
func (c *MongoUserCollection) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	coll, err := c.coll()
	if err != nil {
		return nil, err
	}

	var user models.User
	filter := bson.M{"email": strings.ToLower(strings.TrimSpace(email))}
	if err := coll.FindOne(ctx, filter).Decode(&user); err != nil {
		return nil, mapErr(err)
	}
	return &user, nil
}

// FindUsers lists users matching the filter, newest first.
func (c *MongoUserCollection) FindUsers(ctx context.Context, filter UserFilter) ([]models.User, error) {
	coll, err := c.coll()
	if err != nil {
		return nil, err
	}

	query := bson.M{}
	if filter.Role != "" {
		query["role"] = filter.Role
	}
	if filter.Active != nil {
		query["is_active"] = *filter.Active
	}
	if filter.AgenceID != "" {
		query["agence_id"] = filter.AgenceID
	}

	cursor, err := coll.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "date_joined", Value: -1}}))
	if err != nil {
		return nil, err
	}
	users := []models.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// UpdateUser replaces the stored user document.
func (c *MongoUserCollection) UpdateUser(ctx context.Context, user *models.User) error {
	coll, err := c.coll()
	if err != nil {
		return err
	}

	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.UpdatedAt = time.Now().UTC()

	res, err := coll.ReplaceOne(ctx, bson.M{"_id": user.ID}, user)
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUser deletes a user from the database
func (c *MongoUserCollection) DeleteUser(ctx context.Context, id string) error {
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

// UpdateLastLogin updates the last login time for a user
func (c *MongoUserCollection) UpdateLastLogin(ctx context.Context, id string) error {
	return c.set(ctx, id, bson.M{"$set": bson.M{"last_login": time.Now().UTC()}})
}

// AddEcoScore adds points to the user's eco score.
func (c *MongoUserCollection) AddEcoScore(ctx context.Context, id string, points int) error {
	return c.set(ctx, id, bson.M{"$inc": bson.M{"eco_score": points}})
}

func (c *MongoUserCollection) set(ctx context.Context, id string, update bson.M) error {
	coll, err := c.coll()
	if err != nil {
		return err
	}
	oid, err := ObjectID(id)
	if err != nil {
		return err
	}

	if set, ok := update["$set"].(bson.M); ok {
		set["updated_at"] = time.Now().UTC()
	} else {
		update["$set"] = bson.M{"updated_at": time.Now().UTC()}
	}

	res, err := coll.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// CountUsersByRole returns the number of users per role.
func (c *MongoUserCollection) CountUsersByRole(ctx context.Context) (map[models.Role]int64, error) {
	coll, err := c.coll()
	if err != nil {
		return nil, err
	}

	rows, err := countBy(ctx, coll, bson.M{}, "$role")
	if err != nil {
		return nil, fmt.Errorf("count users by role: %w", err)
	}
	out := make(map[models.Role]int64, len(rows))
	for k, v := range rows {
		out[models.Role(k)] = v
	}
	return out, nil
}

type groupCount struct {
	Key   string `bson:"_id"`
	Count int64  `bson:"count"`
}

// countBy groups the documents matching match by the key expression and
// counts them. The key must evaluate to a string.
func countBy(ctx context.Context, coll *mongo.Collection, match bson.M, key interface{}) (map[string]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{"_id": key, "count": bson.M{"$sum": 1}}}},
	}
	cursor, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var rows []groupCount
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Key] = row.Count
	}
	return out, nil
}
