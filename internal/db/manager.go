package db

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/vitarenta/internal/config"
	"github.com/ukydev/vitarenta/internal/metrics"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotConnected is returned when the manager has no live client.
var ErrNotConnected = errors.New("database not connected")

// Manager owns the MongoDB client. It connects with exponential backoff,
// tracks health and swaps in a new client on Reconnect.
type Manager struct {
	cfg config.MongoConfig

	// mu serializes Connect, Reconnect and Disconnect.
	mu sync.Mutex
	// state guards client and database for readers.
	state    sync.RWMutex
	client   *mongo.Client
	database *mongo.Database

	healthy    atomic.Bool
	reconnects atomic.Int64

	// dial is replaceable in tests.
	dial func(ctx context.Context, opts ...*options.ClientOptions) (*mongo.Client, error)
}

// NewManager creates a manager for the given configuration. It does not connect.
func NewManager(cfg config.MongoConfig) *Manager {
	return &Manager{
		cfg:  cfg,
		dial: mongo.Connect,
	}
}

// RetryPolicy returns the backoff used for connection attempts: the n-th
// retry (0-based) waits retry_delay * 2^n, at most max_retries attempts total.
func (m *Manager) RetryPolicy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.cfg.RetryDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = time.Duration(math.MaxInt64)
	b.MaxElapsedTime = 0
	b.Reset()

	retries := m.cfg.MaxRetries - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// Connect establishes the connection, retrying according to RetryPolicy.
// The last error is returned when every attempt fails.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectLocked(ctx)
}

func (m *Manager) connectLocked(ctx context.Context) error {
	opts := options.Client().
		ApplyURI(m.cfg.URI).
		SetServerSelectionTimeout(m.cfg.ConnectTimeout).
		SetConnectTimeout(m.cfg.ConnectTimeout)
	if err := opts.Validate(); err != nil {
		m.healthy.Store(false)
		return fmt.Errorf("invalid mongo uri: %w", err)
	}

	attempt := 0
	var client *mongo.Client
	operation := func() error {
		attempt++
		c, err := m.attempt(ctx, opts)
		if err != nil {
			return err
		}
		client = c
		return nil
	}
	notify := func(err error, wait time.Duration) {
		log.WithFields(log.Fields{
			"attempt":     attempt,
			"max_retries": m.cfg.MaxRetries,
			"retry_in":    wait.String(),
		}).WithError(err).Warn("MongoDB connection attempt failed")
	}

	if err := backoff.RetryNotify(operation, m.RetryPolicy(ctx), notify); err != nil {
		m.healthy.Store(false)
		metrics.DBHealthy.Set(0)
		return fmt.Errorf("mongo connect failed after %d attempts: %w", attempt, err)
	}

	m.state.Lock()
	m.client = client
	m.database = client.Database(m.cfg.Database)
	m.state.Unlock()

	m.healthy.Store(true)
	metrics.DBHealthy.Set(1)
	log.WithFields(log.Fields{
		"database": m.cfg.Database,
		"attempts": attempt,
	}).Info("Connected to MongoDB")
	return nil
}

func (m *Manager) attempt(ctx context.Context, opts *options.ClientOptions) (*mongo.Client, error) {
	client, err := m.dial(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo.Connect error: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo.Ping error: %w", err)
	}
	return client, nil
}

// Reconnect drops the current client and connects again. Concurrent callers
// are serialized; a caller that finds the connection already restored by
// another returns immediately.
func (m *Manager) Reconnect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.healthy.Load() && m.pingCurrent(ctx) == nil {
		return nil
	}

	m.state.Lock()
	old := m.client
	m.client = nil
	m.database = nil
	m.state.Unlock()
	if old != nil {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = old.Disconnect(disconnectCtx)
		cancel()
	}

	m.reconnects.Add(1)
	metrics.DBReconnects.Inc()
	log.WithField("reconnects", m.reconnects.Load()).Warn("Reconnecting to MongoDB")
	return m.connectLocked(ctx)
}

// Ping checks the current connection and records the result.
func (m *Manager) Ping(ctx context.Context) error {
	err := m.pingCurrent(ctx)
	m.healthy.Store(err == nil)
	if err == nil {
		metrics.DBHealthy.Set(1)
	} else {
		metrics.DBHealthy.Set(0)
	}
	return err
}

func (m *Manager) pingCurrent(ctx context.Context) error {
	m.state.RLock()
	client := m.client
	m.state.RUnlock()
	if client == nil {
		return ErrNotConnected
	}
	pingCtx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
	defer cancel()
	return client.Ping(pingCtx, nil)
}

// Healthy reports the result of the last connect or ping.
func (m *Manager) Healthy() bool {
	return m.healthy.Load()
}

// Reconnects returns how many reconnects have been attempted.
func (m *Manager) Reconnects() int64 {
	return m.reconnects.Load()
}

// Database returns the current database handle, or nil when disconnected.
func (m *Manager) Database() *mongo.Database {
	m.state.RLock()
	defer m.state.RUnlock()
	return m.database
}

// Collection implements CollectionSource.
func (m *Manager) Collection(name string) *mongo.Collection {
	database := m.Database()
	if database == nil {
		return nil
	}
	return database.Collection(name)
}

// Disconnect closes the client.
func (m *Manager) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.Lock()
	client := m.client
	m.client = nil
	m.database = nil
	m.state.Unlock()

	m.healthy.Store(false)
	if client == nil {
		return nil
	}
	return client.Disconnect(ctx)
}
