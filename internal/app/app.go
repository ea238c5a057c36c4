// Package app provides application initialization and dependency injection.
//
// App is the container that wires configuration, the database pool, Genkit,
// the employee and thread stores, the lookup tool, and the chat agent.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"

	"github.com/medevs/hr-agent/db"
	"github.com/medevs/hr-agent/internal/chat"
	"github.com/medevs/hr-agent/internal/config"
	"github.com/medevs/hr-agent/internal/employee"
	"github.com/medevs/hr-agent/internal/thread"
	"github.com/medevs/hr-agent/internal/tools"
)

// modelCallsPerSecond throttles outbound model calls across all concurrent
// runs, keeping bursty traffic under provider quotas.
const (
	modelCallsPerSecond = 2
	modelCallBurst      = 4
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Genkit    *genkit.Genkit
	Embedder  ai.Embedder
	DBPool    *pgxpool.Pool
	Employees *employee.Store
	Threads   *thread.Store
	Tools     []ai.Tool
	Agent     *chat.Agent
}

// Setup creates and initializes the application.
// Returns an App with embedded cleanup; call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.DBPool = pool

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}
	a.Embedder = embedder

	employees, err := employee.NewStore(pool, embedder, logger.With("component", "employee"))
	if err != nil {
		return nil, fmt.Errorf("creating employee store: %w", err)
	}
	a.Employees = employees

	threads, err := thread.NewStore(pool, logger.With("component", "thread"))
	if err != nil {
		return nil, fmt.Errorf("creating thread store: %w", err)
	}
	a.Threads = threads

	lookup, err := tools.NewLookup(employees, logger.With("component", "tools"),
		cfg.LookupLimit, config.MaxLookupLimit)
	if err != nil {
		return nil, fmt.Errorf("creating lookup tool: %w", err)
	}

	toolList, err := tools.Register(g, lookup)
	if err != nil {
		return nil, fmt.Errorf("registering tools: %w", err)
	}
	a.Tools = toolList

	agent, err := chat.New(chat.Config{
		Genkit:        g,
		Threads:       threads,
		Logger:        logger.With("component", "chat"),
		Tools:         toolList,
		ModelName:     cfg.FullModelName(),
		Temperature:   cfg.Temperature,
		MaxSupersteps: cfg.MaxSupersteps,
		RateLimiter:   rate.NewLimiter(rate.Limit(modelCallsPerSecond), modelCallBurst),
	})
	if err != nil {
		return nil, fmt.Errorf("creating chat agent: %w", err)
	}
	a.Agent = agent

	return a, nil
}

// Close gracefully shuts down all resources.
func (a *App) Close() error {
	a.logger().Info("shutting down application")

	if a.DBPool != nil {
		a.DBPool.Close()
		a.logger().Info("database pool closed")
	}

	return nil
}

// Seed populates the employee store with n deterministic synthetic records.
// Re-running with the same count and seed is idempotent.
func (a *App) Seed(ctx context.Context, n int, seed int64) error {
	if n <= 0 {
		return fmt.Errorf("record count must be positive, got %d", n)
	}

	records := employee.Generate(n, seed)
	for i, rec := range records {
		if err := a.Employees.Upsert(ctx, rec); err != nil {
			return fmt.Errorf("seeding record %d/%d: %w", i+1, n, err)
		}
		a.logger().Debug("seeded employee", "employee_id", rec.EmployeeID,
			"progress", fmt.Sprintf("%d/%d", i+1, n))
	}

	a.logger().Info("seeding completed", "count", n)
	return nil
}

func (a *App) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

// provideGenkit initializes Genkit with the Google AI plugin.
// GEMINI_API_KEY is read by the plugin directly from the environment.
func provideGenkit(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*genkit.Genkit, error) {
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, errors.New("initializing genkit with gemini provider")
	}
	logger.Info("initialized Genkit with gemini provider", "model", cfg.ModelName)
	return g, nil
}

// provideDBPool creates a PostgreSQL connection pool and runs migrations.
// Pool is configured with sensible defaults for connection management.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}
