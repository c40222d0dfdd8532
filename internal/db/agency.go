package db

import (
	"context"
	"regexp"
	"time"

	"github.com/ukydev/vitarenta/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoAgencyCollection implements AgencyCollection.
type MongoAgencyCollection struct {
	Source CollectionSource
}

// NewAgencyCollection returns an agency store backed by src.
func NewAgencyCollection(src CollectionSource) *MongoAgencyCollection {
	return &MongoAgencyCollection{Source: src}
}

func (c *MongoAgencyCollection) coll() (*mongo.Collection, error) {
	return resolve(c.Source, AgenciesCollection)
}

// InsertAgency inserts an agency and assigns its ID.
func (c *MongoAgencyCollection) InsertAgency(ctx context.Context, agence *models.Agence) error {
	coll, err := c.coll()
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	agence.DateCreation = now
	agence.UpdatedAt = now
	if agence.ID.IsZero() {
		agence.ID = primitive.NewObjectID()
	}
	_, err = coll.InsertOne(ctx, agence)
	return mapErr(err)
}

// FindAgencyByID finds an agency by its ID.
func (c *MongoAgencyCollection) FindAgencyByID(ctx context.Context, id string) (*models.Agence, error) {
	coll, err := c.coll()
	if err != nil {
		return nil, err
	}
	oid, err := ObjectID(id)
	if err != nil {
		return nil, err
	}
	var agence models.Agence
	if err := coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&agence); err != nil {
		return nil, mapErr(err)
	}
	return &agence, nil
}

// FindAgencies lists agencies sorted by name.
func (c *MongoAgencyCollection) FindAgencies(ctx context.Context, filter AgencyFilter) ([]models.Agence, error) {
	coll, err := c.coll()
	if err != nil {
		return nil, err
	}
	query := bson.M{}
	if filter.Ville != "" {
		query["ville"] = bson.M{"$regex": primitive.Regex{Pattern: "^" + regexp.QuoteMeta(filter.Ville) + "$", Options: "i"}}
	}
	if filter.Active != nil {
		query["active"] = *filter.Active
	}
	cursor, err := coll.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "nom", Value: 1}}))
	if err != nil {
		return nil, err
	}
	agences := []models.Agence{}
	if err := cursor.All(ctx, &agences); err != nil {
		return nil, err
	}
	return agences, nil
}

// UpdateAgency replaces the stored agency document.
func (c *MongoAgencyCollection) UpdateAgency(ctx context.Context, agence *models.Agence) error {
	coll, err := c.coll()
	if err != nil {
		return err
	}
	agence.UpdatedAt = time.Now().UTC()
	res, err := coll.ReplaceOne(ctx, bson.M{"_id": agence.ID}, agence)
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAgency deletes an agency by its ID.
func (c *MongoAgencyCollection) DeleteAgency(ctx context.Context, id string) error {
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
