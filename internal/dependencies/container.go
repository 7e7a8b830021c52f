package dependencies

import (
	"context"
	"fmt"
	"log/slog"

	"ABWatch/internal/browser"
	"ABWatch/internal/config"
	"ABWatch/internal/executor"
	"ABWatch/internal/orchestrator"
	"ABWatch/internal/screenshot"
	"ABWatch/internal/storage"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Container struct {
	Config *config.Config
	Logger *slog.Logger

	RunStore     storage.RunStore
	CheckStore   storage.CheckStore
	FailureStore storage.FailureStore
	TargetStore  storage.TargetStore
	ProfileStore storage.ProfileStore

	Screenshots  *screenshot.Store
	Browser      browser.Factory
	Executor     *executor.Executor
	Orchestrator *orchestrator.Orchestrator

	DB    *pgxpool.Pool
	Redis *storage.RedisClient
}

// NewContainer wires the full dependency graph in order: database and
// Redis connections, stores, the browser stack and the orchestrator.
func NewContainer(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Container, error) {
	container := &Container{
		Config: cfg,
		Logger: log,
	}

	if err := container.initDatabase(ctx); err != nil {
		return nil, err
	}

	if err := container.initRedis(); err != nil {
		return nil, err
	}

	if err := container.initStorage(); err != nil {
		return nil, err
	}

	if err := container.initMonitoring(); err != nil {
		return nil, err
	}

	log.Info("dependency container initialized")
	return container, nil
}

func (c *Container) initDatabase(ctx context.Context) error {
	db, err := storage.NewPostgres(ctx, &c.Config.Database, c.Logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	c.DB = db
	return nil
}

func (c *Container) initRedis() error {
	client, err := storage.NewRedisClient(&c.Config.Redis, c.Logger)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	c.Redis = client
	return nil
}

func (c *Container) initStorage() error {
	c.RunStore = storage.NewRunStore(c.DB)
	c.CheckStore = storage.NewCheckStore(c.DB)
	c.FailureStore = storage.NewFailureStore(c.DB)
	c.TargetStore = storage.NewTargetStore(c.DB)
	c.ProfileStore = storage.NewProfileStore(c.DB)
	return nil
}

func (c *Container) initMonitoring() error {
	shots, err := screenshot.NewStore(c.Config.Monitor.ScreenshotDir, c.Logger.With("component", "screenshots"))
	if err != nil {
		return fmt.Errorf("failed to initialize screenshot store: %w", err)
	}
	c.Screenshots = shots

	c.Browser = browser.NewChromeFactory(c.Config.Browser, c.Logger.With("component", "browser"))

	c.Executor = executor.New(
		c.Browser,
		c.Screenshots,
		executor.Config{
			CookieName:     c.Config.Monitor.CookieName,
			AttemptTimeout: c.Config.Monitor.AttemptTimeout,
			MaxRetries:     c.Config.Monitor.MaxRetries,
			RetryDelay:     c.Config.Monitor.RetryDelay,
			MaxErrorLength: c.Config.Monitor.MaxErrorLength,
		},
		c.Logger.With("component", "executor"),
	)

	c.Orchestrator = orchestrator.New(
		c.RunStore,
		c.CheckStore,
		c.FailureStore,
		c.TargetStore,
		c.ProfileStore,
		c.Redis,
		c.Redis,
		c.Executor,
		orchestrator.Config{
			BatchSize:  c.Config.Monitor.BatchSize,
			RunLockTTL: c.Config.Monitor.RunLockTTL,
		},
		c.Logger.With("component", "orchestrator"),
	)

	return nil
}

// Close releases all connections.
func (c *Container) Close() error {
	var errs []error

	if c.DB != nil {
		c.DB.Close()
	}

	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing dependencies: %v", errs)
	}

	return nil
}
