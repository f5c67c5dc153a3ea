package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/hilthontt/roomdrop/internal/application/transfer"
	"github.com/hilthontt/roomdrop/internal/domain"
	"github.com/hilthontt/roomdrop/internal/infrastructure/configs"
	"github.com/hilthontt/roomdrop/internal/infrastructure/events"
	"github.com/hilthontt/roomdrop/internal/infrastructure/jobs"
	"github.com/hilthontt/roomdrop/internal/infrastructure/logging"
	"github.com/hilthontt/roomdrop/internal/infrastructure/messaging"
	"github.com/hilthontt/roomdrop/internal/infrastructure/metrics"
	"github.com/hilthontt/roomdrop/internal/infrastructure/ratelimiter"
	"github.com/hilthontt/roomdrop/internal/infrastructure/repository"
	"github.com/hilthontt/roomdrop/internal/infrastructure/storage"
	"github.com/hilthontt/roomdrop/internal/infrastructure/tracing"
	"github.com/hilthontt/roomdrop/internal/infrastructure/ws"
	"github.com/hilthontt/roomdrop/internal/presentation/api"
	"github.com/hilthontt/roomdrop/internal/presentation/handler/files"
	"github.com/hilthontt/roomdrop/internal/presentation/handler/health"
	"github.com/hilthontt/roomdrop/internal/presentation/handler/rooms"
)

const version = "0.1.0"

func main() {
	cfg, err := configs.Load(configs.DetermineConfigPath())
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.NewLogger(&logging.LoggerConfig{
		FilePath:   cfg.Logger.FilePath,
		Encoding:   cfg.Logger.Encoding,
		Level:      cfg.Logger.Level,
		MaxSizeMB:  cfg.Logger.MaxSizeMB,
		MaxBackups: cfg.Logger.MaxBackups,
	})
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal(logging.General, logging.Startup, "server exited", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}
}

func run(ctx context.Context, cfg *configs.Config, logger logging.Logger) error {
	shutdownTracer, err := tracing.InitTracer(ctx, tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		ServiceName:  cfg.Tracing.ServiceName,
		Environment:  cfg.Tracing.Environment,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		SampleRatio:  cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return err
	}
	defer shutdownTracer(context.Background())

	m := metrics.New()

	store, localBase, err := newContentStore(ctx, cfg)
	if err != nil {
		return err
	}

	hub := ws.NewHub(cfg.HTTP.AllowedOrigins, logger)
	notifiers := []domain.RoomNotifier{hub}

	if cfg.Events.Enabled {
		rmq, err := messaging.NewRabbitMQ(cfg.Events.AmqpURI, cfg.Events.Exchange)
		if err != nil {
			return err
		}
		defer rmq.Close()

		if err := rmq.DeclareAndBindQueue(messaging.RoomsQueue, []string{"room.*"}); err != nil {
			return err
		}
		notifiers = append(notifiers, events.NewRoomPublisher(rmq, logger))
	}
	notifier := events.NewFanout(notifiers...)

	onEvict := repository.WithEvictionHook(func(code domain.RoomCode) {
		notifier.RoomExpired(context.Background(), code)
	})

	registry, closeRegistry, err := newRoomRegistry(ctx, cfg, store, onEvict)
	if err != nil {
		return err
	}
	defer closeRegistry()

	logger.Info(logging.General, logging.Startup, "room registry ready", map[logging.ExtraKey]any{
		logging.Backend: cfg.Registry.Backend,
	})

	transferUseCase := transfer.NewTransferUseCase(registry, store, logger, transfer.Options{
		RoomPrefix:    cfg.Registry.RoomPrefix,
		UploadTimeout: cfg.Storage.UploadTimeout,
		Notifier:      notifier,
		Metrics:       m,
	})

	// The object-store registry sweeps its own blobs.
	sweepStore := store
	if cfg.Registry.Backend == configs.BackendObjectStore {
		sweepStore = nil
	}
	sweeper := jobs.NewRoomSweepJob(registry, sweepStore, cfg.Registry.RoomPrefix, logger, m, cfg.Registry.SweepInterval)
	go sweeper.Start(ctx)
	defer sweeper.Stop()

	var limiter ratelimiter.Limiter
	if cfg.RateLimiter.Enabled {
		rl := ratelimiter.NewFixedWindowRateLimiter(cfg.RateLimiter.RequestsPerTimeFrame, cfg.RateLimiter.TimeFrame)
		defer rl.Close()
		limiter = rl
	}

	var filesHandler *files.Handler
	if localBase != "" {
		filesHandler = files.NewHandler(localBase, cfg.Registry.RoomPrefix, registry, logger)
	}

	roomHandler := rooms.NewHandler(transferUseCase, hub, logger, cfg.HTTP.MaxMemoryMB<<20)
	app := api.NewApplication(*cfg, roomHandler, health.NewHandler(version), filesHandler, logger, m, limiter)

	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))

	return app.Run(ctx, app.Mount())
}

// newContentStore returns the configured store and, for the local disk store,
// the directory the /files/ route serves from.
func newContentStore(ctx context.Context, cfg *configs.Config) (domain.ContentStore, string, error) {
	switch cfg.Storage.Driver {
	case configs.DriverMinio:
		store, err := storage.NewMinioStore(ctx, storage.MinioConfig{
			Endpoint:   cfg.Storage.Endpoint,
			AccessKey:  cfg.Storage.AccessKey,
			SecretKey:  cfg.Storage.SecretKey,
			Bucket:     cfg.Storage.Bucket,
			Region:     cfg.Storage.Region,
			UseSSL:     cfg.Storage.UseSSL,
			PresignTTL: cfg.Storage.PresignTTL,
		})
		if err != nil {
			return nil, "", fmt.Errorf("minio store: %w", err)
		}
		return store, "", nil
	default:
		store, err := storage.NewLocalStorage(cfg.Storage.LocalPath, cfg.Storage.PublicBaseURL)
		if err != nil {
			return nil, "", err
		}
		return store, store.BasePath(), nil
	}
}

func newRoomRegistry(ctx context.Context, cfg *configs.Config, store domain.ContentStore, opts ...repository.Option) (domain.RoomRegistry, func(), error) {
	noop := func() {}

	switch cfg.Registry.Backend {
	case configs.BackendRedis:
		client, err := repository.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, noop, err
		}
		return repository.NewRedisRoomRegistry(client, cfg.Redis.KeyPrefix, opts...), func() { _ = client.Close() }, nil
	case configs.BackendObjectStore:
		return repository.NewObjectStoreRoomRegistry(store, cfg.Registry.RoomPrefix, opts...), noop, nil
	default:
		return repository.NewMemoryRoomRegistry(opts...), noop, nil
	}
}

