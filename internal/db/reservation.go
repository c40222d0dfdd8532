package db

import (
	"context"
	"fmt"
	"time"

	"github.com/ukydev/vitarenta/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoReservationCollection implements ReservationCollection.
type MongoReservationCollection struct {
	Source CollectionSource
}

// NewReservationCollection returns a reservation store backed by src.
func NewReservationCollection(src CollectionSource) *MongoReservationCollection {
	return &MongoReservationCollection{Source: src}
}

func (c *MongoReservationCollection) coll() (*mongo.Collection, error) {
	return resolve(c.Source, ReservationsCollection)
}

// InsertReservation inserts a reservation and assigns its ID.
func (c *MongoReservationCollection) InsertReservation(ctx context.Context, r *models.Reservation) error {
	coll, err := c.coll()
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	r.DateCreation = now
	r.UpdatedAt = now
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	_, err = coll.InsertOne(ctx, r)
	return mapErr(err)
}

// FindReservationByID finds a reservation by its ID.
func (c *MongoReservationCollection) FindReservationByID(ctx context.Context, id string) (*models.Reservation, error) {
	coll, err := c.coll()
	if err != nil {
		return nil, err
	}
	oid, err := ObjectID(id)
	if err != nil {
		return nil, err
	}
	var r models.Reservation
	if err := coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&r); err != nil {
		return nil, mapErr(err)
	}
	return &r, nil
}

// FindReservations lists reservations, most recent start date first.
func (c *MongoReservationCollection) FindReservations(ctx context.Context, filter ReservationFilter) ([]models.Reservation, error) {
	query := bson.M{}
	if filter.UserID != "" {
		query["user_id"] = filter.UserID
	}
	if filter.AgenceID != "" {
		query["agence_id"] = filter.AgenceID
	}
	if filter.VehiculeID != "" {
		query["vehicule_id"] = filter.VehiculeID
	}
	if filter.Statut != "" {
		query["statut"] = filter.Statut
	}
	return c.find(ctx, query, options.Find().SetSort(bson.D{{Key: "date_debut", Value: -1}}))
}

// overlapQuery matches blocking reservations intersecting [start, end).
func overlapQuery(start, end time.Time) bson.M {
	return bson.M{
		"statut":     bson.M{"$in": models.BlockingStatuses},
		"date_debut": bson.M{"$lt": end},
		"date_fin":   bson.M{"$gt": start},
	}
}

// FindOverlapping returns the blocking reservations of a vehicle that
// intersect [start, end).
func (c *MongoReservationCollection) FindOverlapping(ctx context.Context, vehiculeID string, start, end time.Time) ([]models.Reservation, error) {
	query := overlapQuery(start, end)
	query["vehicule_id"] = vehiculeID
	return c.find(ctx, query, options.Find().SetSort(bson.D{{Key: "date_debut", Value: 1}}))
}

// BusyVehicleIDs returns the ids of vehicles with a blocking reservation in [start, end).
func (c *MongoReservationCollection) BusyVehicleIDs(ctx context.Context, start, end time.Time) ([]string, error) {
	coll, err := c.coll()
	if err != nil {
		return nil, err
	}
	values, err := coll.Distinct(ctx, "vehicule_id", overlapQuery(start, end))
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			ids = append(ids, s)
		}
	}
	return ids, nil
}

func (c *MongoReservationCollection) find(ctx context.Context, query bson.M, opts *options.FindOptions) ([]models.Reservation, error) {
	coll, err := c.coll()
	if err != nil {
		return nil, err
	}
	cursor, err := coll.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	out := []models.Reservation{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateReservationStatus moves a reservation from one status to another.
// It fails with ErrConflict when the stored status is no longer from.
func (c *MongoReservationCollection) UpdateReservationStatus(ctx context.Context, id string, from, to models.ReservationStatus) error {
	coll, err := c.coll()
	if err != nil {
		return err
	}
	oid, err := ObjectID(id)
	if err != nil {
		return err
	}
	res, err := coll.UpdateOne(ctx,
		bson.M{"_id": oid, "statut": from},
		bson.M{"$set": bson.M{"statut": to, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		n, err := coll.CountDocuments(ctx, bson.M{"_id": oid})
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return ErrConflict
	}
	return nil
}

// DeleteReservation deletes a reservation by its ID.
func (c *MongoReservationCollection) DeleteReservation(ctx context.Context, id string) error {
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

// HasActiveReservations reports whether the vehicle has a blocking reservation
// that has not ended yet.
func (c *MongoReservationCollection) HasActiveReservations(ctx context.Context, vehiculeID string) (bool, error) {
	coll, err := c.coll()
	if err != nil {
		return false, err
	}
	n, err := coll.CountDocuments(ctx, bson.M{
		"vehicule_id": vehiculeID,
		"statut":      bson.M{"$in": models.BlockingStatuses},
		"date_fin":    bson.M{"$gt": time.Now().UTC()},
	}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CountReservationsByStatus counts reservations per statut, optionally for one agency.
func (c *MongoReservationCollection) CountReservationsByStatus(ctx context.Context, agenceID string) (map[models.ReservationStatus]int64, error) {
	coll, err := c.coll()
	if err != nil {
		return nil, err
	}
	rows, err := countBy(ctx, coll, agencyMatch(agenceID), "$statut")
	if err != nil {
		return nil, fmt.Errorf("count reservations by status: %w", err)
	}
	out := make(map[models.ReservationStatus]int64, len(rows))
	for k, v := range rows {
		out[models.ReservationStatus(k)] = v
	}
	return out, nil
}

// Revenue sums montant_total over confirmed and completed reservations.
func (c *MongoReservationCollection) Revenue(ctx context.Context, agenceID string) (float64, error) {
	coll, err := c.coll()
	if err != nil {
		return 0, err
	}
	match := agencyMatch(agenceID)
	match["statut"] = bson.M{"$in": []models.ReservationStatus{models.ReservationConfirmee, models.ReservationTerminee}}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$montant_total"}}}},
	}
	cursor, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, err
	}
	var rows []struct {
		Total float64 `bson:"total"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Total, nil
}

// DailyCounts counts reservations created per UTC day since the given time.
// Keys are formatted as 2006-01-02.
func (c *MongoReservationCollection) DailyCounts(ctx context.Context, agenceID string, since time.Time) (map[string]int64, error) {
	coll, err := c.coll()
	if err != nil {
		return nil, err
	}
	match := agencyMatch(agenceID)
	match["date_creation"] = bson.M{"$gte": since}

	day := bson.M{"$dateToString": bson.M{"format": "%Y-%m-%d", "date": "$date_creation", "timezone": "UTC"}}
	return countBy(ctx, coll, match, day)
}

// CountByVehicle counts reservations per vehicle, cancelled ones excluded.
func (c *MongoReservationCollection) CountByVehicle(ctx context.Context) (map[string]int64, error) {
	coll, err := c.coll()
	if err != nil {
		return nil, err
	}
	return countBy(ctx, coll, bson.M{"statut": bson.M{"$ne": models.ReservationAnnulee}}, "$vehicule_id")
}

func agencyMatch(agenceID string) bson.M {
	if agenceID == "" {
		return bson.M{}
	}
	return bson.M{"agence_id": agenceID}
}
