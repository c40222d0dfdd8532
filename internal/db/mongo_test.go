package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/vitarenta/internal/config"
	"github.com/ukydev/vitarenta/internal/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func testMongoConfig() config.MongoConfig {
	cfg := config.Defaults().Mongo
	cfg.RetryDelay = time.Millisecond
	cfg.ConnectTimeout = 50 * time.Millisecond
	cfg.MaxRetries = 3
	return cfg
}

func TestManager_Connect_BadURI(t *testing.T) {
	cfg := testMongoConfig()
	cfg.URI = "not-a-mongo-uri"
	m := NewManager(cfg)

	err := m.Connect(context.Background())
	assert.Error(t, err)
	assert.False(t, m.Healthy())
	assert.Nil(t, m.Database())
}

func TestManager_Connect_RetriesThenFails(t *testing.T) {
	cfg := testMongoConfig()
	m := NewManager(cfg)

	calls := 0
	m.dial = func(ctx context.Context, opts ...*options.ClientOptions) (*mongo.Client, error) {
		calls++
		return nil, errors.New("connection refused")
	}

	err := m.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, cfg.MaxRetries, calls)
	assert.False(t, m.Healthy())
}

func TestManager_Connect_StopsOnContextCancel(t *testing.T) {
	cfg := testMongoConfig()
	cfg.RetryDelay = time.Hour
	m := NewManager(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	m.dial = func(ctx context.Context, opts ...*options.ClientOptions) (*mongo.Client, error) {
		calls++
		cancel()
		return nil, errors.New("connection refused")
	}

	err := m.Connect(ctx)
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestManager_RetryPolicy(t *testing.T) {
	cfg := testMongoConfig()
	cfg.RetryDelay = time.Second
	cfg.MaxRetries = 5
	m := NewManager(cfg)

	b := m.RetryPolicy(context.Background())
	expected := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}
	for i, want := range expected {
		assert.Equal(t, want, b.NextBackOff(), "retry %d", i)
	}
	assert.Equal(t, backoff.Stop, b.NextBackOff())
}

func TestManager_RetryPolicy_SingleAttempt(t *testing.T) {
	cfg := testMongoConfig()
	cfg.MaxRetries = 1
	b := NewManager(cfg).RetryPolicy(context.Background())
	assert.Equal(t, backoff.Stop, b.NextBackOff())
}

func TestManager_PingNotConnected(t *testing.T) {
	m := NewManager(testMongoConfig())
	assert.ErrorIs(t, m.Ping(context.Background()), ErrNotConnected)
	assert.False(t, m.Healthy())
	assert.Nil(t, m.Collection(UsersCollection))
	assert.NoError(t, m.Disconnect(context.Background()))
}

func TestManager_ReconnectCountsAttempts(t *testing.T) {
	m := NewManager(testMongoConfig())
	m.dial = func(ctx context.Context, opts ...*options.ClientOptions) (*mongo.Client, error) {
		return nil, errors.New("down")
	}

	assert.Error(t, m.Reconnect(context.Background()))
	assert.Error(t, m.Reconnect(context.Background()))
	assert.Equal(t, int64(2), m.Reconnects())
}

func TestStores_NilCollection(t *testing.T) {
	ctx := context.Background()
	src := DatabaseSource{}

	assert.ErrorIs(t, NewUserCollection(src).InsertUser(ctx, &models.User{}), ErrNilCollection)
	assert.ErrorIs(t, NewAgencyCollection(src).InsertAgency(ctx, &models.Agence{}), ErrNilCollection)
	assert.ErrorIs(t, NewVehicleCollection(src).InsertVehicle(ctx, &models.Vehicule{}), ErrNilCollection)
	assert.ErrorIs(t, NewReservationCollection(src).InsertReservation(ctx, &models.Reservation{}), ErrNilCollection)
	assert.ErrorIs(t, NewLockCollection(src).Acquire(ctx, "k", "o", time.Second), ErrNilCollection)
	assert.ErrorIs(t, NewChallengeCollection(src).InsertChallenge(ctx, &models.EcoChallenge{}), ErrNilCollection)
	assert.ErrorIs(t, NewParticipationCollection(src).InsertParticipation(ctx, &models.UserEcoChallenge{}), ErrNilCollection)
	assert.ErrorIs(t, NewProgressCollection(src).InsertProgress(ctx, &models.EcoChallengeProgress{}), ErrNilCollection)
	_, err := NewRewardCollection(src).EnsureReward(ctx, &models.EcoChallengeReward{})
	assert.ErrorIs(t, err, ErrNilCollection)
	assert.ErrorIs(t, NewTelemetryCollection(src).InsertTelemetry(ctx, &models.Telemetry{}), ErrNilCollection)
	assert.ErrorIs(t, NewUserCollection(nil).UpdateLastLogin(ctx, "x"), ErrNilCollection)
}

func TestObjectID(t *testing.T) {
	_, err := ObjectID("invalid-id")
	assert.ErrorIs(t, err, ErrInvalidID)

	oid, err := ObjectID("64b7f0c2a1b2c3d4e5f60718")
	require.NoError(t, err)
	assert.Equal(t, "64b7f0c2a1b2c3d4e5f60718", oid.Hex())
}

func TestMapErr(t *testing.T) {
	assert.NoError(t, mapErr(nil))
	assert.ErrorIs(t, mapErr(mongo.ErrNoDocuments), ErrNotFound)

	dup := mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000 duplicate key"}}}
	assert.ErrorIs(t, mapErr(dup), ErrDuplicate)

	other := errors.New("boom")
	assert.Equal(t, other, mapErr(other))
}

func TestVehicleQuery(t *testing.T) {
	lo, hi := 30.0, 80.0
	q, err := vehicleQuery(VehicleFilter{
		Carburant:  models.CarburantElectrique,
		PrixMin:    &lo,
		PrixMax:    &hi,
		PlacesMin:  5,
		ExcludeIDs: []string{"64b7f0c2a1b2c3d4e5f60718"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.CarburantElectrique, q["carburant"])
	assert.Len(t, q["prix_par_jour"], 2)
	assert.Contains(t, q, "nombre_places")
	assert.Contains(t, q, "_id")

	_, err = vehicleQuery(VehicleFilter{ExcludeIDs: []string{"nope"}})
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestNormalizePlate(t *testing.T) {
	assert.Equal(t, "AB-123-CD", normalizePlate("  ab-123-cd "))
}
