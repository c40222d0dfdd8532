// Command vitactl runs operator tasks against the VitaRenta database.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/ukydev/vitarenta/internal/analytics"
	"github.com/ukydev/vitarenta/internal/auth"
	"github.com/ukydev/vitarenta/internal/config"
	"github.com/ukydev/vitarenta/internal/db"
	"github.com/ukydev/vitarenta/internal/ecochallenge"
	"github.com/ukydev/vitarenta/internal/logging"
	"github.com/ukydev/vitarenta/internal/models"
)

// connectFunc opens the database for a command. Replaced in tests.
type connectFunc func(ctx context.Context, cfg *config.Config) (db.CollectionSource, func(), error)

func connectMongo(ctx context.Context, cfg *config.Config) (db.CollectionSource, func(), error) {
	manager := db.NewManager(cfg.Mongo)
	if err := manager.Connect(ctx); err != nil {
		return nil, nil, fmt.Errorf("connect to MongoDB: %w", err)
	}
	closeFn := func() {
		if err := manager.Disconnect(context.Background()); err != nil {
			log.WithError(err).Warn("Failed to disconnect from MongoDB")
		}
	}
	return manager, closeFn, nil
}

type cli struct {
	cfg     *config.Config
	connect connectFunc
	out     io.Writer
}

func (c *cli) withDatabase(cmd *cobra.Command, fn func(ctx context.Context, src db.CollectionSource) error) error {
	ctx := cmd.Context()
	src, closeFn, err := c.connect(ctx, c.cfg)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(ctx, src)
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "vitactl",
		Short:         "Operator tasks for the VitaRenta platform",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.cfg != nil {
				return nil
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
			c.cfg = cfg
			return nil
		},
	}
	root.SetOut(c.out)
	root.AddCommand(
		newIndexesCmd(c),
		newSeedCmd(c),
		newCreateAdminCmd(c),
		newSweepCmd(c),
		newForecastCmd(c),
	)
	return root
}

func newIndexesCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "indexes",
		Short: "Create the MongoDB indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withDatabase(cmd, func(ctx context.Context, src db.CollectionSource) error {
				if err := db.EnsureIndexes(ctx, src); err != nil {
					return err
				}
				fmt.Fprintln(c.out, "indexes ready")
				return nil
			})
		},
	}
}

func newSeedCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load demo agencies, vehicles and eco-challenges",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withDatabase(cmd, func(ctx context.Context, src db.CollectionSource) error {
				res, err := seedDemo(ctx, db.NewAgencyCollection(src), db.NewVehicleCollection(src), db.NewChallengeCollection(src))
				if err != nil {
					return err
				}
				fmt.Fprintf(c.out, "agencies: %d created, vehicles: %d created, challenges: %d created\n",
					res.Agencies, res.Vehicles, res.Challenges)
				return nil
			})
		},
	}
}

func newCreateAdminCmd(c *cli) *cobra.Command {
	var email, password, nom, prenom string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			authService, err := auth.NewService(c.cfg.Auth)
			if err != nil {
				return err
			}
			return c.withDatabase(cmd, func(ctx context.Context, src db.CollectionSource) error {
				user, err := createAdmin(ctx, authService, db.NewUserCollection(src), email, password, nom, prenom)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.out, "admin %s created (id %s)\n", user.Email, user.ID.Hex())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "admin email")
	cmd.Flags().StringVar(&password, "password", "", "admin password")
	cmd.Flags().StringVar(&nom, "nom", "Admin", "last name")
	cmd.Flags().StringVar(&prenom, "prenom", "VitaRenta", "first name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

var errUserExists = errors.New("a user with this email already exists")

func createAdmin(ctx context.Context, authService *auth.Service, users db.UserCollection, email, password, nom, prenom string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := authService.ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := authService.ValidatePassword(password); err != nil {
		return nil, err
	}
	hash, err := authService.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		Nom:          nom,
		Prenom:       prenom,
		Role:         models.RoleAdmin,
		IsActive:     true,
	}
	if err := users.InsertUser(ctx, user); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return nil, errUserExists
		}
		return nil, err
	}
	return user, nil
}

func newSweepCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Expire overdue participations and close ended challenges",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withDatabase(cmd, func(ctx context.Context, src db.CollectionSource) error {
				eco := ecochallenge.NewService(
					db.NewChallengeCollection(src),
					db.NewParticipationCollection(src),
					db.NewProgressCollection(src),
					db.NewRewardCollection(src),
					db.NewUserCollection(src),
					db.NewLockCollection(src),
				)
				res, err := eco.Sweep(ctx)
				if err != nil {
					return err
				}
				return printJSON(c.out, res)
			})
		},
	}
}

func newForecastCmd(c *cli) *cobra.Command {
	var agenceID string
	var horizon, history int
	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Print the reservation demand forecast",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if horizon < 1 || horizon > analytics.MaxHorizon {
				return fmt.Errorf("--horizon must be between 1 and %d", analytics.MaxHorizon)
			}
			return c.withDatabase(cmd, func(ctx context.Context, src db.CollectionSource) error {
				stats := analytics.NewService(db.NewUserCollection(src), db.NewVehicleCollection(src), db.NewReservationCollection(src))
				fc, err := stats.Forecast(ctx, agenceID, horizon, history)
				if err != nil {
					return err
				}
				return printJSON(c.out, fc)
			})
		},
	}
	cmd.Flags().StringVar(&agenceID, "agence", "", "agency id (empty for the whole network)")
	cmd.Flags().IntVar(&horizon, "horizon", 7, "days to forecast")
	cmd.Flags().IntVar(&history, "history", 30, "days of history to fit on")
	return cmd
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &cli{connect: connectMongo, out: os.Stdout}
	if err := newRootCmd(c).ExecuteContext(ctx); err != nil {
		log.WithError(err).Error("vitactl failed")
		stop()
		os.Exit(1)
	}
}
