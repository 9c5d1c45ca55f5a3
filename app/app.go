// Package app wires configuration, storage, persistence and the job
// transport into the services used by the HTTP server and the workers.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sndcds/attachments/formats"
	"github.com/sndcds/attachments/generator"
	"github.com/sndcds/attachments/imageproc"
	"github.com/sndcds/attachments/logging"
	"github.com/sndcds/attachments/picture"
	"github.com/sndcds/attachments/queue"
	"github.com/sndcds/attachments/queue/redisq"
	"github.com/sndcds/attachments/repository"
	"github.com/sndcds/attachments/repository/memory"
	"github.com/sndcds/attachments/repository/pg"
	"github.com/sndcds/attachments/resolver"
	"github.com/sndcds/attachments/service"
	"github.com/sndcds/attachments/storage"
	"github.com/sndcds/attachments/storage/local"
)

var ErrNoDatabase = errors.New("no database configured")

type App struct {
	Config Config
	Logger *zap.Logger

	DB      *pgxpool.Pool
	PgStore *pg.Storage
	Redis   *redis.Client
	Queue   *redisq.Queue
	Pool    *queue.Pool

	Repo       repository.Repository
	Disks      *storage.Disks
	Registry   *formats.Registry
	Generator  *generator.Generator
	Dispatcher queue.Dispatcher
	Resolver   *resolver.Resolver
	Selector   *picture.Selector
	Uploader   *service.Uploader
	Deleter    *service.Deleter
	Editor     *service.Editor
}

// New builds the application. Without a database host records are kept in
// memory. With worker.in_process jobs run on an in-process pool started
// with ctx, otherwise they go to redis.
func New(ctx context.Context, config Config, logger *zap.Logger) (*App, error) {
	app := &App{
		Config:   config,
		Logger:   logging.OrNop(logger),
		Disks:    storage.NewDisks(),
		Registry: formats.NewRegistry(),
	}

	for _, d := range config.Disks {
		disk, err := local.New(d.Root, d.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("disk %s: %w", d.Name, err)
		}
		app.Disks.Register(d.Name, disk)
	}
	if err := RegisterFormats(app.Registry, config.Formats); err != nil {
		return nil, err
	}

	if err := app.InitDB(ctx); err != nil {
		return nil, err
	}

	app.Generator = generator.New(
		app.Repo,
		app.Registry,
		app.Disks,
		imageproc.NewProcessor(app.Logger),
		config.Worker.Generator(),
		app.Logger,
	)

	if err := app.InitQueue(ctx); err != nil {
		app.Close()
		return nil, err
	}

	app.Resolver = resolver.New(app.Disks, app.Logger)
	if config.Worker.GenerateOnMiss {
		app.Resolver = app.Resolver.WithMissDispatcher(app.Dispatcher)
	}
	app.Selector = picture.NewSelector(app.Resolver)
	app.Uploader = service.NewUploader(app.Repo, app.Disks, app.Registry, app.Dispatcher, config.DefaultDisk, app.Logger)
	app.Deleter = service.NewDeleter(app.Repo, app.Disks, app.Logger)
	app.Editor = service.NewEditor(app.Repo)
	return app, nil
}

func (app *App) InitDB(ctx context.Context) error {
	connStr := app.Config.DB.ConnString()
	if connStr == "" {
		app.Logger.Warn("no database configured, attachments are kept in memory")
		app.Repo = memory.New()
		return nil
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("unable to reach database: %w", err)
	}

	app.DB = pool
	app.PgStore = pg.New(pool, app.Config.DB.Schema)
	app.Repo = app.PgStore
	app.Logger.Info("database connection pool initialized", zap.String("host", app.Config.DB.Host))
	return nil
}

func (app *App) InitQueue(ctx context.Context) error {
	if app.Config.Worker.InProcess {
		app.Pool = queue.NewPool(app.Generator.Execute, app.Config.Worker.Concurrency, app.Config.Worker.QueueSize, app.Logger)
		app.Pool.Start(ctx)
		app.Dispatcher = app.Pool
		return nil
	}

	app.Redis = redis.NewClient(&redis.Options{
		Addr:     app.Config.Redis.Address,
		Password: app.Config.Redis.Password,
		DB:       app.Config.Redis.DB,
	})
	if err := app.Redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("unable to reach redis: %w", err)
	}
	app.Queue = redisq.New(app.Redis, app.Config.Redis.Prefix, app.Logger)
	app.Dispatcher = app.Queue
	return nil
}

// Migrate creates the database schema.
func (app *App) Migrate(ctx context.Context) error {
	if app.PgStore == nil {
		return ErrNoDatabase
	}
	return app.PgStore.Migrate(ctx)
}

// Work consumes the redis queue until ctx is cancelled.
func (app *App) Work(ctx context.Context) error {
	if app.Queue == nil {
		return errors.New("worker.in_process is set; jobs run inside the server")
	}
	app.Logger.Info("consuming generation jobs", zap.Int("concurrency", app.Config.Worker.Concurrency))
	return app.Queue.Consume(ctx, app.Config.Worker.Concurrency, app.Generator.Execute)
}

// Close drains the in-process pool and closes all connections.
func (app *App) Close() {
	if app.Pool != nil {
		app.Pool.Stop()
	}
	if app.Redis != nil {
		_ = app.Redis.Close()
	}
	if app.DB != nil {
		app.DB.Close()
	}
}
