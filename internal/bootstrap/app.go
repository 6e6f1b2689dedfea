// Package bootstrap wires configuration, storage, queueing and LLM clients
// into runnable API and worker processes.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"research-backend/internal/llm"
	"research-backend/internal/llm/chat"
	"research-backend/internal/projects"
	"research-backend/internal/querygen"
	"research-backend/internal/queue"
	"research-backend/internal/research"
	"research-backend/internal/shared/config"
	"research-backend/internal/shared/server/middleware"
	"research-backend/internal/shared/server/respond"
	"research-backend/internal/shared/storage/db"
	"research-backend/internal/shared/telemetry"
	"research-backend/internal/workerproc"
)

// App holds the wired dependencies of one process.
type App struct {
	Config   config.Config
	DB       *sql.DB
	Router   *gin.Engine
	Notifier *research.Notifier
	Runner   *research.Runner
	Producer queue.Producer
	Consumer queue.Consumer

	// LocalQueue is set when no Redis URL is configured and the API process
	// runs the worker loop in-process.
	LocalQueue *queue.LocalQueue
}

// Close releases process resources.
func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
	if closer, ok := a.Producer.(interface{ Close() error }); ok {
		closer.Close()
	}
}

func openStores(ctx context.Context, cfg config.Config, opts db.Options) (*sql.DB, research.Repo, projects.Repo, error) {
	if cfg.DatabaseURL == "" {
		telemetry.Warn("bootstrap.memory_store", map[string]any{
			"reason": "DATABASE_URL not set, using in-memory stores",
		})
		return nil, research.NewMemoryRepo(), projects.NewMemoryRepo(), nil
	}
	conn, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(opts))
	if err != nil {
		return nil, nil, nil, err
	}
	return conn, &research.PGRepo{DB: conn}, &projects.PGRepo{DB: conn}, nil
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Producer, queue.Consumer, *queue.LocalQueue, error) {
	if cfg.RedisURL == "" {
		telemetry.Warn("bootstrap.local_queue", map[string]any{
			"reason": "REDIS_URL not set, using in-process queue",
		})
		local := queue.NewLocalQueue(0, 0)
		return local, local, local, nil
	}
	rq, err := queue.NewRedisQueue(ctx, queue.RedisConfig{URL: cfg.RedisURL})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("redis queue: %w", err)
	}
	return rq, rq, nil, nil
}

func buildResearcher(cfg config.Config) (research.Researcher, error) {
	if cfg.ResearchLLMAPIKey == "" {
		telemetry.Warn("bootstrap.placeholder_llm", map[string]any{"client": "research"})
		return research.NewLLMResearcher(func(research.Descriptor) (llm.Client, error) {
			return llm.PlaceholderClient{}, nil
		})
	}
	return research.NewLLMResearcher(func(d research.Descriptor) (llm.Client, error) {
		return chat.New(cfg.ResearchLLMBaseURL, cfg.ResearchLLMAPIKey, cfg.ResearchLLMModel)
	})
}

func buildStructuringClient(cfg config.Config) (llm.Client, error) {
	if cfg.StructuringLLMAPIKey == "" {
		telemetry.Warn("bootstrap.placeholder_llm", map[string]any{"client": "structuring"})
		return llm.PlaceholderClient{}, nil
	}
	return chat.New("", cfg.StructuringLLMAPIKey, cfg.StructuringLLMModel)
}

func buildRunner(cfg config.Config, repo research.Repo, notifier *research.Notifier) (*research.Runner, error) {
	researcher, err := buildResearcher(cfg)
	if err != nil {
		return nil, err
	}
	structuring, err := buildStructuringClient(cfg)
	if err != nil {
		return nil, err
	}
	return &research.Runner{
		Repo:       repo,
		Researcher: researcher,
		Parser:     &research.LLMParser{Client: structuring},
		Notifier:   notifier,
	}, nil
}

// NewAPI wires the API process: HTTP router, stores, queue producer and, in
// local mode, the in-process worker loop.
func NewAPI(ctx context.Context) (*App, error) {
	cfg := config.Load()

	conn, repo, projectRepo, err := openStores(ctx, cfg, db.DefaultServerOptions())
	if err != nil {
		return nil, err
	}
	if conn != nil {
		if err := db.RunMigrations(ctx, conn); err != nil {
			conn.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}

	producer, consumer, local, err := buildQueue(ctx, cfg)
	if err != nil {
		if conn != nil {
			conn.Close()
		}
		return nil, err
	}

	notifier := research.NewNotifier()
	dispatcher := &research.Dispatcher{Repo: repo, Projects: projectRepo, Producer: producer}

	app := &App{
		Config:     cfg,
		DB:         conn,
		Notifier:   notifier,
		Producer:   producer,
		Consumer:   consumer,
		LocalQueue: local,
	}

	if local != nil {
		// No broker configured: this process also executes jobs.
		runner, err := buildRunner(cfg, repo, notifier)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.Runner = runner
	}

	qgClient, err := buildStructuringClient(cfg)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.Router = buildRouter(cfg, dispatcher, notifier, &querygen.Service{Client: qgClient})
	return app, nil
}

// NewWorker wires the worker process.
func NewWorker(ctx context.Context) (*App, error) {
	cfg := config.Load()

	conn, repo, _, err := openStores(ctx, cfg, db.DefaultWorkerOptions())
	if err != nil {
		return nil, err
	}

	producer, consumer, local, err := buildQueue(ctx, cfg)
	if err != nil {
		if conn != nil {
			conn.Close()
		}
		return nil, err
	}

	notifier := research.NewNotifier()
	runner, err := buildRunner(cfg, repo, notifier)
	if err != nil {
		if conn != nil {
			conn.Close()
		}
		return nil, err
	}

	return &App{
		Config:     cfg,
		DB:         conn,
		Notifier:   notifier,
		Runner:     runner,
		Producer:   producer,
		Consumer:   consumer,
		LocalQueue: local,
	}, nil
}

// RunWorkerLoop consumes queue messages until ctx is canceled. Concurrency
// comes from running several consumer loops over the shared backend; each
// loop handles one job at a time so retry/DLQ decisions stay synchronous.
func (a *App) RunWorkerLoop(ctx context.Context) error {
	processor := &workerproc.Processor{Runner: a.Runner}

	concurrency := a.Config.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	var wg sync.WaitGroup
	errs := make(chan error, concurrency)
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- a.Consumer.Consume(ctx, processor.Handle)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}
	return ctx.Err()
}

func buildRouter(cfg config.Config, dispatcher *research.Dispatcher, notifier *research.Notifier, qg *querygen.Service) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORSAllowOrigin),
	)

	router.GET("/health", func(c *gin.Context) {
		respond.OK(c, gin.H{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
	})
	router.NoRoute(func(c *gin.Context) {
		respond.Error(c, http.StatusNotFound, "not_found", "route not found", nil)
	})

	limiter := middleware.NewRateLimiter(nil)
	dispatchRule := middleware.RateLimitRule{
		MaxRequests: cfg.RateLimitMaxRequests,
		Window:      time.Duration(cfg.RateLimitWindowSeconds) * time.Second,
	}

	api := router.Group("/api/v1")
	api.Use(middleware.Identity(nil))

	researchHandler := &research.Handler{Dispatcher: dispatcher, Notifier: notifier}
	researchHandler.Register(api, middleware.RateLimit(limiter, dispatchRule))

	qgHandler := &querygen.Handler{Service: qg}
	qgHandler.Register(api)

	return router
}
