package bootstrap

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/auth"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/cache"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/cleanup"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/config"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/discovery"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/events"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/handlers"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/media"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/metrics"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/models"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/orphans"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/repository"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/server"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/services"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/storage"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/utils"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type AppContext struct {
	Config    *config.Config
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
	Mongo     *mongo.Client
	Redis     *redis.Client
	Store     storage.Backend
	Media     *media.Client
	Ledger    *orphans.Ledger
	Events    *events.Publisher
	Reaper    *services.Reaper
	Sweeper   *cleanup.Sweeper
	Verifier  *auth.Verifier
	Routes    server.Routes
	Registrar *discovery.Registrar
}

type CleanupFn func(context.Context)

// Init loads configuration and wires every component. The returned cleanup
// drains the reaper before closing connections.
func Init(ctx context.Context, configPath string) (*AppContext, CleanupFn, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	logger, err := utils.NewLogger(cfg.App.Env, cfg.Log.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	sugar := logger.Sugar()
	sugar.Infof("Starting %s in %s environment", cfg.App.Name, cfg.App.Env)

	app := &AppContext{Config: cfg, Logger: logger, Metrics: metrics.New()}
	ok := false
	cleanupFn := func(ctx context.Context) { app.close(ctx) }
	defer func() {
		if !ok {
			cleanupFn(ctx)
		}
	}()

	if app.Store, err = openStore(ctx, cfg, logger); err != nil {
		return nil, nil, err
	}

	var db *mongo.Database
	if cfg.Mongo.Driver == "mongo" {
		app.Mongo, err = repository.Connect(ctx, cfg.Mongo.URI, cfg.MongoTimeout)
		if err != nil {
			return nil, nil, err
		}
		db = app.Mongo.Database(cfg.Mongo.Database)
		sugar.Infof("Connected to MongoDB database %s", cfg.Mongo.Database)
	} else {
		sugar.Warn("Using in-memory metadata store; records are lost on restart")
	}

	var ledger cleanup.Ledger
	if cfg.Redis.Addr != "" {
		if app.Redis, err = orphans.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); err != nil {
			return nil, nil, err
		}
		app.Ledger = orphans.NewLedger(app.Redis)
		ledger = app.Ledger
	} else {
		sugar.Warn("Redis not configured; orphans are only logged and presigned URLs are not cached")
	}

	var pub services.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		app.Events = events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		pub = app.Events
	}

	policies := media.DefaultPolicies(cfg.MaxUploadBytes())
	codec := media.NewCodec(cfg.Media.BaseURL, cfg.Media.Root)
	app.Media = media.NewClient(app.Store, codec, policies, media.BreakerConfig{
		MaxFailures: cfg.Breaker.MaxFailures,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
	}, app.Metrics, logger)

	reporter := services.NewOrphanReporter(logger, app.Metrics, app.Ledger, pub)
	app.Reaper = services.NewReaper(app.Media, services.ReaperConfig{
		Workers:        cfg.Reaper.Workers,
		QueueSize:      cfg.Reaper.QueueSize,
		MaxRetries:     cfg.Reaper.MaxRetries,
		InitialBackoff: cfg.ReaperBackoff,
		MaxBackoff:     cfg.ReaperMaxBackoff,
		JobTimeout:     cfg.ReaperJobTimeout,
	}, reporter, logger)

	deps := services.Deps{
		Media:               app.Media,
		Reaper:              app.Reaper,
		Orphans:             reporter,
		Events:              pub,
		Metrics:             app.Metrics,
		Log:                 logger,
		CompensationTimeout: cfg.CompensationTimeout,
	}
	w := &wiring{ctx: ctx, db: db, deps: deps, maxBytes: cfg.MaxUploadBytes(), decode: app.Media.Decode}
	if err := wire(w, models.Profiles); err != nil {
		return nil, nil, err
	}
	if err := wire(w, models.Donations); err != nil {
		return nil, nil, err
	}
	if err := wire(w, models.FreeFood); err != nil {
		return nil, nil, err
	}
	if err := wire(w, models.NGOs); err != nil {
		return nil, nil, err
	}

	prefixes := make([]string, 0, len(policies))
	for _, folder := range media.Folders(policies) {
		prefixes = append(prefixes, codec.Prefix(folder))
	}
	app.Sweeper = cleanup.New(w.sources, app.Store, app.Media, ledger, prefixes, cleanup.Config{
		Grace:       cfg.CleanupGrace,
		DryRun:      cfg.Cleanup.DryRun,
		Concurrency: cfg.Cleanup.Concurrency,
	}, app.Metrics, logger)

	app.Verifier, err = auth.NewVerifier(auth.VerifierConfig{
		PublicKeyPath: cfg.JWT.PublicKeyPath,
		Secret:        cfg.JWT.Secret,
		Issuer:        cfg.JWT.Issuer,
	})
	if err != nil {
		return nil, nil, err
	}

	app.Routes = server.Routes{
		Resources: w.resources,
		Media:     handlers.NewMedia(codec, app.Store, cache.NewRedis(app.Redis, cfg.Redis.Prefix+"presign:"), cfg.PresignTTL, logger),
		Verifier:  app.Verifier,
		Metrics:   app.Metrics,
	}

	host := cfg.Consul.ServiceHost
	if host == "" {
		host, _ = os.Hostname()
	}
	app.Registrar, err = discovery.New(cfg.Consul.Addr, discovery.Registration{
		ID:   cfg.Consul.ServiceID,
		Name: cfg.App.Name,
		Host: host,
		Port: cfg.App.Port,
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	ok = true
	return app, cleanupFn, nil
}

type wiring struct {
	ctx       context.Context
	db        *mongo.Database
	deps      services.Deps
	maxBytes  int64
	decode    func(string) (string, bool)
	resources []server.Registrar
	sources   []cleanup.Source
}

// wire builds the repository, lifecycle and handler of one kind.
func wire[T models.Resource](w *wiring, kind *models.Kind[T]) error {
	var repo repository.Repository[T]
	if w.db != nil {
		r := repository.NewMongoRepository(w.db.Collection(kind.Collection), kind)
		if err := r.EnsureIndexes(w.ctx); err != nil {
			return fmt.Errorf("ensure %s indexes: %w", kind.Name, err)
		}
		repo = r
	} else {
		repo = repository.NewMemoryRepository(kind)
	}
	life := services.NewLifecycle(kind, repo, w.deps)
	w.resources = append(w.resources, handlers.NewResource(life, w.maxBytes))
	w.sources = append(w.sources, cleanup.FromRepository[T](repo, w.decode))
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Backend, error) {
	switch cfg.Storage.Driver {
	case "s3":
		s, err := storage.NewS3Store(ctx, storage.S3Config{
			Region:    cfg.Storage.Region,
			Bucket:    cfg.Storage.Bucket,
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			PathStyle: cfg.Storage.PathStyle,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case "minio":
		s, err := storage.NewMinioStore(ctx, storage.MinioConfig{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Bucket:    cfg.Storage.Bucket,
			Region:    cfg.Storage.Region,
			UseSSL:    cfg.Storage.UseSSL,
		}, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		logger.Warn("Using in-memory object store; blobs are lost on restart")
		return storage.NewMemoryStore(), nil
	}
}

func (a *AppContext) close(ctx context.Context) {
	if a.Registrar != nil {
		a.Registrar.Deregister()
	}
	if a.Reaper != nil {
		a.Reaper.Close()
	}
	if err := a.Events.Close(); err != nil {
		a.Logger.Error("Kafka writer close error", zap.Error(err))
	}
	if a.Mongo != nil {
		if err := a.Mongo.Disconnect(ctx); err != nil {
			a.Logger.Error("MongoDB disconnect error", zap.Error(err))
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Error("Redis client close error", zap.Error(err))
		}
	}
	if err := a.Logger.Sync(); err != nil {
		log.Printf("Logger sync error: %v", err)
	}
}
