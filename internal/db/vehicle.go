package db

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ukydev/vitarenta/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MaxPageSize bounds VehicleFilter.PageSize.
const MaxPageSize = 100

// MongoVehicleCollection implements VehicleCollection.
type MongoVehicleCollection struct {
	Source CollectionSource
}

// NewVehicleCollection returns a vehicle store backed by src.
func NewVehicleCollection(src CollectionSource) *MongoVehicleCollection {
	return &MongoVehicleCollection{Source: src}
}

func (c *MongoVehicleCollection) coll() (*mongo.Collection, error) {
	return resolve(c.Source, VehiclesCollection)
}

// InsertVehicle inserts a vehicle record. The plate is normalized to upper case.
func (c *MongoVehicleCollection) InsertVehicle(ctx context.Context, vehicle *models.Vehicule) error {
	coll, err := c.coll()
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	vehicle.DateCreation = now
	vehicle.UpdatedAt = now
	vehicle.Immatriculation = normalizePlate(vehicle.Immatriculation)
	if vehicle.Statut == "" {
		vehicle.Statut = models.VehicleDisponible
	}
	if vehicle.ID.IsZero() {
		vehicle.ID = primitive.NewObjectID()
	}
	_, err = coll.InsertOne(ctx, vehicle)
	return mapErr(err)
}

// FindVehicleByID finds a vehicle by its ID.
func (c *MongoVehicleCollection) FindVehicleByID(ctx context.Context, id string) (*models.Vehicule, error) {
	coll, err := c.coll()
	if err != nil {
		return nil, err
	}
	oid, err := ObjectID(id)
	if err != nil {
		return nil, err
	}
	var vehicle models.Vehicule
	if err := coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&vehicle); err != nil {
		return nil, mapErr(err)
	}
	return &vehicle, nil
}

// vehicleQuery builds the MongoDB filter for f.
func vehicleQuery(f VehicleFilter) (bson.M, error) {
	query := bson.M{}
	if f.Carburant != "" {
		query["carburant"] = f.Carburant
	}
	if f.Transmission != "" {
		query["transmission"] = f.Transmission
	}
	if f.Marque != "" {
		query["marque"] = primitive.Regex{Pattern: "^" + regexp.QuoteMeta(f.Marque), Options: "i"}
	}
	if f.Statut != "" {
		query["statut"] = f.Statut
	}
	if f.AgenceID != "" {
		query["agence_id"] = f.AgenceID
	}
	price := bson.M{}
	if f.PrixMin != nil {
		price["$gte"] = *f.PrixMin
	}
	if f.PrixMax != nil {
		price["$lte"] = *f.PrixMax
	}
	if len(price) > 0 {
		query["prix_par_jour"] = price
	}
	if f.PlacesMin > 0 {
		query["nombre_places"] = bson.M{"$gte": f.PlacesMin}
	}
	if len(f.ExcludeIDs) > 0 {
		ids := make([]primitive.ObjectID, 0, len(f.ExcludeIDs))
		for _, id := range f.ExcludeIDs {
			oid, err := ObjectID(id)
			if err != nil {
				return nil, err
			}
			ids = append(ids, oid)
		}
		query["_id"] = bson.M{"$nin": ids}
	}
	return query, nil
}

// FindVehicles returns one page of matching vehicles and the total match count.
func (c *MongoVehicleCollection) FindVehicles(ctx context.Context, filter VehicleFilter) ([]models.Vehicule, int64, error) {
	coll, err := c.coll()
	if err != nil {
		return nil, 0, err
	}
	query, err := vehicleQuery(filter)
	if err != nil {
		return nil, 0, err
	}

	total, err := coll.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().SetSort(bson.D{{Key: "prix_par_jour", Value: 1}, {Key: "_id", Value: 1}})
	if filter.PageSize > 0 {
		size := filter.PageSize
		if size > MaxPageSize {
			size = MaxPageSize
		}
		page := filter.Page
		if page < 1 {
			page = 1
		}
		opts.SetSkip(int64((page - 1) * size)).SetLimit(int64(size))
	}

	cursor, err := coll.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	vehicles := []models.Vehicule{}
	if err := cursor.All(ctx, &vehicles); err != nil {
		return nil, 0, err
	}
	return vehicles, total, nil
}

// UpdateVehicle replaces the stored vehicle document.
func (c *MongoVehicleCollection) UpdateVehicle(ctx context.Context, vehicle *models.Vehicule) error {
	coll, err := c.coll()
	if err != nil {
		return err
	}
	vehicle.UpdatedAt = time.Now().UTC()
	vehicle.Immatriculation = normalizePlate(vehicle.Immatriculation)
	res, err := coll.ReplaceOne(ctx, bson.M{"_id": vehicle.ID}, vehicle)
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetVehicleStatus updates only the vehicle's statut.
func (c *MongoVehicleCollection) SetVehicleStatus(ctx context.Context, id string, status models.VehicleStatus) error {
	return c.setFields(ctx, id, bson.M{"statut": status})
}

// SetVehiclePosition records the last known position.
func (c *MongoVehicleCollection) SetVehiclePosition(ctx context.Context, id string, pos models.Location) error {
	return c.setFields(ctx, id, bson.M{"position": pos})
}

// SetVehicleImage records the public image URL.
func (c *MongoVehicleCollection) SetVehicleImage(ctx context.Context, id, url string) error {
	return c.setFields(ctx, id, bson.M{"image_url": url})
}

func (c *MongoVehicleCollection) setFields(ctx context.Context, id string, fields bson.M) error {
	coll, err := c.coll()
	if err != nil {
		return err
	}
	oid, err := ObjectID(id)
	if err != nil {
		return err
	}
	fields["updated_at"] = time.Now().UTC()
	res, err := coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": fields})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteVehicle deletes a vehicle by its ID.
func (c *MongoVehicleCollection) DeleteVehicle(ctx context.Context, id string) error {
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

// CountVehiclesByStatus counts vehicles per statut, optionally for one agency.
func (c *MongoVehicleCollection) CountVehiclesByStatus(ctx context.Context, agenceID string) (map[models.VehicleStatus]int64, error) {
	coll, err := c.coll()
	if err != nil {
		return nil, err
	}
	match := bson.M{}
	if agenceID != "" {
		match["agence_id"] = agenceID
	}
	rows, err := countBy(ctx, coll, match, "$statut")
	if err != nil {
		return nil, fmt.Errorf("count vehicles by status: %w", err)
	}
	out := make(map[models.VehicleStatus]int64, len(rows))
	for k, v := range rows {
		out[models.VehicleStatus(k)] = v
	}
	return out, nil
}

func normalizePlate(plate string) string {
	return strings.ToUpper(strings.TrimSpace(plate))
}
