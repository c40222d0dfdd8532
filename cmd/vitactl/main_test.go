package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/vitarenta/internal/auth"
	"github.com/ukydev/vitarenta/internal/config"
	"github.com/ukydev/vitarenta/internal/db"
	"github.com/ukydev/vitarenta/internal/db/dbmock"
	"github.com/ukydev/vitarenta/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestSeedDemo_FreshDatabase(t *testing.T) {
	agencies := new(dbmock.AgencyCollection)
	vehicles := new(dbmock.VehicleCollection)
	challenges := new(dbmock.ChallengeCollection)

	agencies.On("FindAgencies", mock.Anything, mock.Anything).Return([]models.Agence{}, nil)
	agencies.On("InsertAgency", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		args.Get(1).(*models.Agence).ID = primitive.NewObjectID()
	}).Return(nil)
	vehicles.On("InsertVehicle", mock.Anything, mock.MatchedBy(func(v *models.Vehicule) bool {
		return v.AgenceID != "" && v.AgenceID != primitive.NilObjectID.Hex()
	})).Return(nil)
	challenges.On("FindChallenges", mock.Anything, db.ChallengeFilter{}).Return([]models.EcoChallenge{}, nil)
	challenges.On("InsertChallenge", mock.Anything, mock.MatchedBy(func(c *models.EcoChallenge) bool {
		return c.IsActive && !c.ValidFrom.IsZero()
	})).Return(nil)

	res, err := seedDemo(context.Background(), agencies, vehicles, challenges)

	require.NoError(t, err)
	assert.Equal(t, seedResult{Agencies: 2, Vehicles: 7, Challenges: 3}, res)
	agencies.AssertExpectations(t)
	vehicles.AssertExpectations(t)
	challenges.AssertExpectations(t)
}

func TestSeedDemo_AlreadySeeded(t *testing.T) {
	agencies := new(dbmock.AgencyCollection)
	vehicles := new(dbmock.VehicleCollection)
	challenges := new(dbmock.ChallengeCollection)

	for _, demo := range demoFleet() {
		existing := demo.agence
		existing.ID = primitive.NewObjectID()
		agencies.On("FindAgencies", mock.Anything, db.AgencyFilter{Ville: existing.Ville}).Return([]models.Agence{existing}, nil)
	}
	vehicles.On("InsertVehicle", mock.Anything, mock.Anything).Return(db.ErrDuplicate)
	challenges.On("FindChallenges", mock.Anything, mock.Anything).Return(demoChallenges(), nil)

	res, err := seedDemo(context.Background(), agencies, vehicles, challenges)

	require.NoError(t, err)
	assert.Equal(t, seedResult{}, res)
	agencies.AssertNotCalled(t, "InsertAgency", mock.Anything, mock.Anything)
	challenges.AssertNotCalled(t, "InsertChallenge", mock.Anything, mock.Anything)
}

func TestSeedDemo_StoreFailure(t *testing.T) {
	agencies := new(dbmock.AgencyCollection)
	agencies.On("FindAgencies", mock.Anything, mock.Anything).Return(nil, errors.New("socket closed"))

	_, err := seedDemo(context.Background(), agencies, nil, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "find agencies")
}

func newAuthService(t *testing.T) *auth.Service {
	t.Helper()
	svc, err := auth.NewService(config.AuthConfig{JWTSecret: "vitactl-test-secret"})
	require.NoError(t, err)
	return svc
}

func TestCreateAdmin(t *testing.T) {
	authService := newAuthService(t)

	t.Run("created", func(t *testing.T) {
		users := new(dbmock.UserCollection)
		users.On("InsertUser", mock.Anything, mock.MatchedBy(func(u *models.User) bool {
			return u.Role == models.RoleAdmin && u.IsActive && u.Email == "boss@vitarenta.fr" &&
				authService.CheckPassword("s3cretpass", u.PasswordHash)
		})).Return(nil)

		user, err := createAdmin(context.Background(), authService, users, " Boss@VitaRenta.fr ", "s3cretpass", "Durand", "Alice")

		require.NoError(t, err)
		assert.Equal(t, "Alice Durand", user.FullName())
		users.AssertExpectations(t)
	})

	t.Run("duplicate email", func(t *testing.T) {
		users := new(dbmock.UserCollection)
		users.On("InsertUser", mock.Anything, mock.Anything).Return(db.ErrDuplicate)

		_, err := createAdmin(context.Background(), authService, users, "boss@vitarenta.fr", "s3cretpass", "", "")

		assert.ErrorIs(t, err, errUserExists)
	})

	t.Run("invalid input", func(t *testing.T) {
		users := new(dbmock.UserCollection)

		_, err := createAdmin(context.Background(), authService, users, "not-an-email", "s3cretpass", "", "")
		assert.Error(t, err)
		_, err = createAdmin(context.Background(), authService, users, "boss@vitarenta.fr", "short", "", "")
		assert.Error(t, err)
		users.AssertNotCalled(t, "InsertUser", mock.Anything, mock.Anything)
	})
}

// nilSource connects commands to a database with no collections.
func nilSource(calls *int) connectFunc {
	return func(ctx context.Context, cfg *config.Config) (db.CollectionSource, func(), error) {
		*calls++
		return db.DatabaseSource{}, func() {}, nil
	}
}

func execute(t *testing.T, connect connectFunc, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cfg := config.Defaults()
	root := newRootCmd(&cli{cfg: cfg, connect: connect, out: &out})
	root.SetArgs(args)
	root.SetErr(&out)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCmd_Commands(t *testing.T) {
	var calls int
	for _, name := range []string{"indexes", "seed", "sweep", "forecast"} {
		t.Run(name, func(t *testing.T) {
			_, err := execute(t, nilSource(&calls), name)
			assert.ErrorIs(t, err, db.ErrNilCollection)
		})
	}
	assert.Equal(t, 4, calls)
}

func TestRootCmd_ForecastHorizon(t *testing.T) {
	var calls int
	_, err := execute(t, nilSource(&calls), "forecast", "--horizon", "0")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "--horizon")
	assert.Zero(t, calls)
}

func TestRootCmd_CreateAdminRequiresFlags(t *testing.T) {
	var calls int
	_, err := execute(t, nilSource(&calls), "create-admin", "--email", "boss@vitarenta.fr")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "password")
	assert.Zero(t, calls)
}

func TestRootCmd_ConnectFailure(t *testing.T) {
	failing := func(ctx context.Context, cfg *config.Config) (db.CollectionSource, func(), error) {
		return nil, nil, errors.New("connect to MongoDB: server selection timeout")
	}
	_, err := execute(t, failing, "seed")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "server selection timeout")
}
