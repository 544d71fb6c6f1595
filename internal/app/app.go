package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/DRSN-tech/recommender/internal/cfg"
	v1Grpc "github.com/DRSN-tech/recommender/internal/delivery/v1/grpc"
	v1Http "github.com/DRSN-tech/recommender/internal/delivery/v1/http"
	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/internal/index"
	"github.com/DRSN-tech/recommender/internal/infrastructure/kafka"
	"github.com/DRSN-tech/recommender/internal/infrastructure/llm"
	s3Repo "github.com/DRSN-tech/recommender/internal/repository/minio"
	"github.com/DRSN-tech/recommender/internal/repository/pgdb"
	pgdbConv "github.com/DRSN-tech/recommender/internal/repository/pgdb/converter"
	qdrantRepo "github.com/DRSN-tech/recommender/internal/repository/qdrant"
	"github.com/DRSN-tech/recommender/internal/repository/redis"
	redisConv "github.com/DRSN-tech/recommender/internal/repository/redis/converter"
	"github.com/DRSN-tech/recommender/internal/usecase"
	"github.com/DRSN-tech/recommender/pkg/clients"
	"github.com/DRSN-tech/recommender/pkg/closer"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/logger"
	"github.com/DRSN-tech/recommender/pkg/postgres"
	"github.com/go-chi/chi/v5"
	"github.com/jimlawless/whereami"
)

const (
	initTimeout         = 10 * time.Second
	shutdownTimeout     = 15 * time.Second
	healthCheckInterval = 5 * time.Second
	// Старая коллекция Qdrant удаляется с задержкой, чтобы дошли запросы на прежнем снапшоте
	qdrantRetireDelay = 30 * time.Second
)

// App собирает зависимости сервиса и управляет его жизненным циклом.
type App struct {
	cfg    *config.Config
	logger logger.Logger
	closer *closer.Closer

	store    *usecase.EmbeddingStore
	httpSrv  *v1Http.Server
	grpcSrv  *v1Grpc.GRPCServer
	consumer *kafka.InteractionConsumer
	checks   map[string]v1Http.HealthCheck
}

// NewApp подключается к хранилищам и собирает слои. При ошибке уже открытые ресурсы закрываются.
func NewApp(cfg *config.Config, log logger.Logger) (_ *App, err error) {
	a := &App{
		cfg:    cfg,
		logger: log,
		closer: closer.NewCloser(0),
		checks: make(map[string]v1Http.HealthCheck),
	}
	defer func() {
		if err != nil {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if cerr := a.closer.Close(ctx); cerr != nil {
				log.Warnf("cleanup after failed init: %v", cerr)
			}
		}
	}()

	initCtx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	// PostgreSQL: журнал взаимодействий и каталог
	db, err := initPGDB(initCtx, log, cfg)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	a.closer.Add("postgres", func(context.Context) error {
		db.Close()
		return nil
	})
	a.checks["postgres"] = db.Ping

	interactionRepo := pgdb.NewInteractionRepo(db.Pool, pgdbConv.InteractionConverter{})
	productRepo := pgdb.NewProductRepo(db.Pool, pgdbConv.ProductConverter{})

	// Redis: профили, карточки товаров, объяснения
	redisClient := clients.NewRedisClient(cfg.Redis)
	if err := redisClient.Ping(initCtx); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	a.closer.Add("redis", func(context.Context) error { return redisClient.Close() })
	a.checks["redis"] = redisClient.Ping

	productCache := redis.NewCacheRepo(redisClient, redisConv.ProductInfoConverter{}, cfg.Redis, log)
	profileCache := redis.NewProfileCacheRepo(redisClient, redisConv.ProfileConverter{})
	explanationCache := redis.NewExplanationCacheRepo(redisClient, redisConv.ExplanationConverter{}, cfg.Explain.CacheTTL)

	// MinIO: снапшоты эмбеддингов
	minioClient, err := clients.NewMinIOClient(cfg.Minio)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	if err := clients.CheckBucket(initCtx, minioClient, cfg.Minio.EmbeddingsBucket); err != nil {
		// Сервис стартует и без датасета: запросы получат 503 до первой успешной загрузки
		log.Warnf("embeddings bucket check failed: %v", err)
	}
	datasetRepo := s3Repo.NewDatasetRepo(minioClient, cfg.Minio)

	builder, retireDelay, err := a.indexBuilder(initCtx)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	a.store = usecase.NewEmbeddingStore(datasetRepo, builder, log, retireDelay)
	a.closer.Add("embedding store", a.store.Close)
	a.checks["embeddings"] = func(context.Context) error {
		_, err := a.store.Snapshot()
		return err
	}

	// Use cases
	catalogUC := usecase.NewCatalogUC(productRepo, productCache, log)
	interactionUC := usecase.NewInteractionUC(interactionRepo, db.Pool, log)
	profileUC := usecase.NewProfileUC(interactionRepo, profileCache, a.store, cfg.Recommend, log)

	var explainer usecase.Explainer
	if cfg.Explain.APIKey == "" {
		log.Infof("explanations: offline mode (no API key)")
		explainer = llm.NewOfflineExplainer()
	} else {
		explainer = llm.NewGeminiExplainer(llm.NewGeminiClient(cfg.Explain, log))
	}
	explainer = llm.NewCachedExplainer(llm.NewNameRewriter(explainer, catalogUC), explanationCache, log)

	var publisher usecase.RecommendationPublisher
	if cfg.Kafka.Enabled() {
		producer := kafka.NewProducer(log, cfg.Kafka)
		a.closer.Add("kafka producer", func(context.Context) error { return producer.Close() })
		publisher = producer
	}

	recommendUC := usecase.NewRecommendUC(
		a.store,
		interactionRepo,
		catalogUC,
		[]usecase.CandidateGenerator{
			usecase.NewViewGenerator(cfg.Recommend),
			usecase.NewCartGenerator(cfg.Recommend),
			usecase.NewPurchaseGenerator(cfg.Recommend),
		},
		usecase.NewProfileGenerator(profileUC, cfg.Recommend),
		usecase.NewMerger(cfg.Recommend.FinalTopK),
		explainer,
		publisher,
		log,
		cfg.Explain.Timeout,
		cfg.Recommend.EnrichConcurrency,
	)

	if cfg.Kafka.Enabled() {
		a.consumer = kafka.NewInteractionConsumer(cfg.Kafka, interactionUC, log)
		a.closer.Add("kafka consumer", func(context.Context) error { return a.consumer.Close() })
	}

	// Delivery
	r := chi.NewRouter()
	v1Http.NewRouter(r, log).Init(v1Http.UseCases{
		Recommend:   recommendUC,
		Profile:     profileUC,
		Interaction: interactionUC,
		Catalog:     catalogUC,
		Embedding:   a.store,
	}, a.checks, cfg.Http.RequestsPerMinute)

	a.httpSrv = v1Http.NewServer(r, cfg.Http)
	a.grpcSrv = v1Grpc.NewGRPCServer(cfg.Grpc, log)

	return a, nil
}

// indexBuilder выбирает бэкенд индекса по конфигурации.
func (a *App) indexBuilder(ctx context.Context) (usecase.IndexBuilder, time.Duration, error) {
	if a.cfg.Qdrant.IndexBackend != config.IndexBackendQdrant {
		a.logger.Infof("vector index: in-memory flat")
		return usecase.IndexBuilderFunc(func(_ context.Context, ds *domain.EmbeddingDataset) (usecase.VectorIndex, error) {
			flat, err := index.NewFlat(ds)
			if err != nil {
				return nil, err
			}
			return flat, nil
		}), 0, nil
	}

	qdrantClient, err := clients.NewQdrantClient(a.cfg.Qdrant)
	if err != nil {
		return nil, 0, e.Wrap(whereami.WhereAmI(), err)
	}
	// Клиент закрывается после хранилища, которое удаляет через него коллекции
	a.closer.Add("qdrant", func(context.Context) error { return qdrantClient.Close() })

	if err := qdrantClient.Ping(ctx); err != nil {
		return nil, 0, e.Wrap(whereami.WhereAmI(), err)
	}
	a.checks["qdrant"] = qdrantClient.Ping

	a.logger.Infof("vector index: qdrant %s:%d", a.cfg.Qdrant.Host, a.cfg.Qdrant.Port)
	return qdrantRepo.NewIndexRepo(qdrantClient.Client, a.cfg.Qdrant, a.logger), qdrantRetireDelay, nil
}

// Run запускает фоновые процессы и серверы и блокируется до сигнала или фатальной ошибки.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loadCtx, loadCancel := context.WithTimeout(ctx, a.cfg.Http.WriteTimeout)
	if res, err := a.store.Reload(loadCtx); err != nil {
		a.logger.Errorf(err, "initial embedding load failed, serving 503 until reload succeeds")
	} else {
		a.logger.Infof("embeddings loaded: version=%s products=%d dim=%d", res.Version, res.Products, res.Dim)
	}
	loadCancel()

	if a.cfg.Minio.ReloadInterval > 0 {
		go a.store.RunReloadLoop(ctx, a.cfg.Minio.ReloadInterval)
	}

	go a.grpcSrv.WatchHealth(ctx, healthCheckInterval, func(ctx context.Context) error {
		_, err := a.store.Snapshot()
		return err
	})

	errCh := make(chan error, 3)

	if a.consumer != nil {
		go func() {
			if err := a.consumer.Run(ctx); err != nil {
				a.logger.Errorf(err, "interaction consumer failed")
				errCh <- err
			}
		}()
	}

	go func() {
		a.logger.Infof("gRPC server starting on %s:%s", a.cfg.Grpc.NetworkMode, a.cfg.Grpc.Port)
		if err := a.grpcSrv.Start(); err != nil {
			a.logger.Errorf(err, "gRPC server failed")
			errCh <- err
		}
	}()
	a.closer.Add("grpc server", a.grpcSrv.Stop)

	go func() {
		a.logger.Infof("HTTP server started on port %s", a.cfg.Http.Port)
		if err := a.httpSrv.Run(); err != nil {
			a.logger.Errorf(err, "HTTP server failed")
			errCh <- err
		}
	}()
	a.closer.Add("http server", a.httpSrv.Stop)

	// === Ожидание сигнала или ошибки ===
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	var appErr error
	select {
	case appErr = <-errCh:
		a.logger.Errorf(appErr, "fatal error, shutting down")
	case <-shutdown:
		a.logger.Infof("Received shutdown signal, stopping gracefully...")
	}

	// Останавливаем фоновые циклы до закрытия ресурсов
	cancel()

	// === Graceful shutdown ===
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := a.closer.Close(shutdownCtx); err != nil {
		a.logger.Errorf(err, "shutdown finished with errors")
		appErr = errors.Join(appErr, err)
	}

	a.logger.Infof("Application shutdown complete")
	return appErr
}

func initPGDB(ctx context.Context, logger logger.Logger, cfg *config.Config) (*postgres.PgDatabase, error) {
	db, err := postgres.Connect(ctx, cfg.Db)
	if err != nil {
		logger.Errorf(err, "failed to connect to database")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if err := db.RunMigrations(logger); err != nil {
		logger.Errorf(err, "failed to run migrations")
		db.Close()
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if err := db.Ping(ctx); err != nil {
		logger.Errorf(err, "failed to ping database")
		db.Close()
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return db, nil
}
