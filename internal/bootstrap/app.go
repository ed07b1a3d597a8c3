package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"vidyai-rag/internal/ai"
	"vidyai-rag/internal/app"
	"vidyai-rag/internal/cache"
	"vidyai-rag/internal/chunker"
	"vidyai-rag/internal/config"
	"vidyai-rag/internal/pkg/pdfextract"
	"vidyai-rag/internal/platform/database"
	"vidyai-rag/internal/platform/logger"
	rabbitmqClient "vidyai-rag/internal/platform/rabbitmq"
	redisClient "vidyai-rag/internal/platform/redis"
	"vidyai-rag/internal/repository"
	"vidyai-rag/internal/source"
	"vidyai-rag/internal/worker"
)

type App struct {
	Config *config.Config
	Log    *logger.Logger
	DB     *gorm.DB
	Redis  *redis.Client
	MQConn *amqp.Connection

	Chapters   *app.ChapterService
	Ingestion  *app.IngestionService
	Jobs       *app.JobService
	Retrieval  *app.RetrievalService
	Questions  *app.QuestionCacheService
	Generation *app.GenerationService

	IngestionWorker *worker.IngestionWorker

	StartedAt time.Time
	closers   []func() error
}

type options struct {
	withQueue bool
}

type Option func(*options)

// WithoutQueue skips the RabbitMQ connection. The resulting App has no worker and its
// job service refuses to enqueue; admin reads use it so they run while the broker is down.
func WithoutQueue() Option {
	return func(o *options) {
		o.withQueue = false
	}
}

func New(ctx context.Context, cfg *config.Config, log *logger.Logger, opts ...Option) (*App, error) {
	o := options{withQueue: true}
	for _, opt := range opts {
		opt(&o)
	}
	a := &App{Config: cfg, Log: log, StartedAt: time.Now()}

	db, err := database.New(ctx, cfg.Database.Driver, cfg.DatabaseDSN())
	if err != nil {
		return nil, err
	}
	a.DB = db
	if err := database.Migrate(db); err != nil {
		_ = a.Close()
		return nil, err
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		// the context cache is advisory; keep serving and let reads miss until redis returns
		log.Warn("redis unavailable, context cache degraded", "addr", cfg.Redis.Addr, "error", err)
		redisCli = redisClient.NewUnchecked(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	}
	a.Redis = redisCli

	if o.withQueue {
		mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.MQConn = mqConn
	}

	docSource, err := a.newSource(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	embedder := ai.NewEmbeddingClient(ai.EmbeddingConfig{
		BaseURL:           cfg.LLM.BaseURL,
		APIKey:            cfg.LLM.APIKey,
		Model:             cfg.LLM.EmbeddingModel,
		BatchSize:         cfg.LLM.EmbeddingBatchSize,
		RequestsPerSecond: cfg.LLM.EmbeddingRPS,
	}, &http.Client{Timeout: 60 * time.Second})
	llm := ai.NewOpenAICompatibleClient(ai.ChatConfig{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: 0.7,
		MaxTokens:   4096,
	}, nil)

	chunkRepo := repository.NewChunkRepository(db)
	chapterRepo := repository.NewChapterRepository(db)
	jobRepo := repository.NewIngestionJobRepository(db)
	questionRepo := repository.NewQuestionCacheRepository(db)

	splitter := chunker.New(chunker.WithSize(cfg.RAG.ChunkSize), chunker.WithOverlap(cfg.RAG.ChunkOverlap))
	contextCache := cache.NewContextCache(cache.NewRedisStore(redisCli), cfg.ContextCacheTTL(), log)

	var publisher app.JobPublisher
	if a.MQConn != nil {
		publisher = rabbitmqClient.NewJobPublisher(a.MQConn, cfg.RabbitMQ.IngestionQueue)
	}

	a.Ingestion = app.NewIngestionService(chunkRepo, embedder, docSource, pdfextract.New(), splitter, log)
	a.Jobs = app.NewJobService(
		jobRepo,
		chapterRepo,
		a.Ingestion,
		publisher,
		cfg.Jobs.MaxAttempts,
		cfg.RetryBackoff(),
		log,
	)
	a.Retrieval = app.NewRetrievalService(chunkRepo, embedder, contextCache, cfg.RAG.TopK, log)
	a.Questions = app.NewQuestionCacheService(questionRepo, cfg.QuestionCacheTTL(), log)
	a.Chapters = app.NewChapterService(chapterRepo, jobRepo, a.Ingestion, log)
	a.Generation = app.NewGenerationService(
		chapterRepo,
		a.Ingestion,
		a.Retrieval,
		a.Questions,
		ai.NewQuestionGenerator(llm),
		log,
	)

	if a.MQConn != nil {
		a.IngestionWorker = worker.NewIngestionWorker(
			a.MQConn,
			a.Jobs,
			cfg.RabbitMQ.IngestionQueue,
			cfg.RabbitMQ.WorkerConcurrency,
			log,
		)
	}

	return a, nil
}

func (a *App) newSource(ctx context.Context) (app.DocumentSource, error) {
	st := a.Config.Storage
	switch st.Mode {
	case "", "local":
		return source.NewLocalSource(st.LocalPath), nil
	case "gcs":
		gcs, err := source.NewGCSSource(ctx, st.GCSBucket, st.CredentialsFile)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, gcs.Close)
		return gcs, nil
	default:
		return nil, fmt.Errorf("unsupported storage mode %q", st.Mode)
	}
}

// StartWorker begins consuming ingestion jobs; Close stops it after in-flight jobs finish.
func (a *App) StartWorker(ctx context.Context) error {
	if a.IngestionWorker == nil {
		return fmt.Errorf("start ingestion worker failed: no queue connection")
	}
	if err := a.IngestionWorker.Start(ctx); err != nil {
		return fmt.Errorf("start ingestion worker failed: %w", err)
	}
	return nil
}

func (a *App) Close() error {
	var closeErr error
	if a.IngestionWorker != nil {
		a.IngestionWorker.Close()
	}
	for _, c := range a.closers {
		if err := c(); err != nil {
			closeErr = err
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.DB != nil {
		sqlDB, err := a.DB.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
