package cli

import (
	"context"
	"os"
	"time"

	"github.com/AustinJR6/wwjd-memory/pkg/adapter"
	"github.com/AustinJR6/wwjd-memory/pkg/embedding"
	"github.com/AustinJR6/wwjd-memory/pkg/extractor"
	"github.com/AustinJR6/wwjd-memory/pkg/interfaces"
	"github.com/AustinJR6/wwjd-memory/pkg/repository"
	"github.com/AustinJR6/wwjd-memory/pkg/usecase/memory"
	"github.com/AustinJR6/wwjd-memory/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// config holds configuration values
type config struct {
	// Repository
	project  string
	database string
	inMemory bool

	// Adapters
	geminiAPIKey      string
	geminiProject     string
	geminiLocation    string
	geminiModel       string
	geminiEmbedModel  string
	anthropicAPIKey   string
	claudeModel       string
	embeddingProvider string
	embeddingDims     int64

	// Engine
	memoryConfigPath string
	upstreamTimeout  time.Duration

	// Logging
	logLevel  string
	logFormat string
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "project",
			Aliases:     []string{"p"},
			Usage:       "Google Cloud project ID",
			Sources:     cli.EnvVars("GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.project,
		},
		&cli.StringFlag{
			Name:        "database",
			Aliases:     []string{"d"},
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("FIRESTORE_DATABASE_ID"),
			Destination: &cfg.database,
		},
		&cli.BoolFlag{
			Name:        "in-memory",
			Usage:       "Use a volatile in-process store instead of Firestore",
			Sources:     cli.EnvVars("WWJD_MEMORY_IN_MEMORY"),
			Destination: &cfg.inMemory,
		},
		&cli.StringFlag{
			Name:        "memory-config",
			Usage:       "Path to YAML file overriding engine constants",
			Sources:     cli.EnvVars("WWJD_MEMORY_CONFIG"),
			Destination: &cfg.memoryConfigPath,
		},
		&cli.DurationFlag{
			Name:        "upstream-timeout",
			Usage:       "Timeout of each embedding and extraction call",
			Value:       memory.DefaultUpstreamTimeout,
			Sources:     cli.EnvVars("WWJD_MEMORY_UPSTREAM_TIMEOUT"),
			Destination: &cfg.upstreamTimeout,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("WWJD_MEMORY_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "Log format (console, json)",
			Value:       logging.FormatConsole,
			Sources:     cli.EnvVars("WWJD_MEMORY_LOG_FORMAT"),
			Destination: &cfg.logFormat,
		},
	}
}

// llmFlags returns flags for LLM-related configuration with destination config
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-api-key",
			Usage:       "Gemini API key. Vertex AI is used when empty",
			Sources:     cli.EnvVars("GEMINI_API_KEY"),
			Destination: &cfg.geminiAPIKey,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini on Vertex AI",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini on Vertex AI",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "gemini-model",
			Usage:       "Gemini model used for extraction",
			Sources:     cli.EnvVars("GEMINI_MODEL"),
			Destination: &cfg.geminiModel,
		},
		&cli.StringFlag{
			Name:        "gemini-embedding-model",
			Usage:       "Gemini model used for embeddings",
			Sources:     cli.EnvVars("GEMINI_EMBEDDING_MODEL"),
			Destination: &cfg.geminiEmbedModel,
		},
		&cli.StringFlag{
			Name:        "anthropic-api-key",
			Usage:       "Anthropic API key, used for extraction when Gemini is not configured",
			Sources:     cli.EnvVars("ANTHROPIC_API_KEY"),
			Destination: &cfg.anthropicAPIKey,
		},
		&cli.StringFlag{
			Name:        "claude-model",
			Usage:       "Claude model used for extraction",
			Sources:     cli.EnvVars("ANTHROPIC_MODEL"),
			Destination: &cfg.claudeModel,
		},
		&cli.StringFlag{
			Name:        "embedding-provider",
			Usage:       "Embedding provider (auto, gemini, local)",
			Value:       embedding.ProviderAuto,
			Sources:     cli.EnvVars("WWJD_MEMORY_EMBEDDING_PROVIDER"),
			Destination: &cfg.embeddingProvider,
		},
		&cli.IntFlag{
			Name:        "embedding-dims",
			Usage:       "Dimension of remote embeddings",
			Value:       embedding.RemoteDims,
			Sources:     cli.EnvVars("WWJD_MEMORY_EMBEDDING_DIMS"),
			Destination: &cfg.embeddingDims,
		},
	}
}

// setupLogger installs the configured logger as default and into ctx
func (cfg *config) setupLogger(ctx context.Context) context.Context {
	logger := logging.New(cfg.logLevel, os.Stderr, logging.WithFormat(cfg.logFormat))
	logging.SetDefault(logger)
	return logging.With(ctx, logger)
}

// newRepository creates a new repository instance. The returned function releases it.
func (cfg *config) newRepository(ctx context.Context) (interfaces.Repository, func(), error) {
	if cfg.inMemory {
		logging.From(ctx).Warn("using in-memory repository, data is lost on exit")
		return repository.NewMemory(), func() {}, nil
	}

	if cfg.project == "" {
		return nil, nil, goerr.New("project is required")
	}
	if cfg.database == "" {
		return nil, nil, goerr.New("database is required")
	}

	repo, err := repository.New(ctx, cfg.project, cfg.database)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to create repository")
	}

	closer := func() {
		if err := repo.Close(); err != nil {
			logging.From(ctx).Warn("failed to close repository", "error", err)
		}
	}
	return repo, closer, nil
}

// newGemini creates a new Gemini adapter instance, or nil when no credential is set
func (cfg *config) newGemini(ctx context.Context) (adapter.Gemini, error) {
	gc := adapter.GeminiConfig{
		APIKey:   cfg.geminiAPIKey,
		Project:  cfg.geminiProject,
		Location: cfg.geminiLocation,
	}
	if !gc.Enabled() {
		return nil, nil
	}
	if gc.APIKey == "" && gc.Location == "" {
		return nil, goerr.New("gemini-location is required")
	}

	var opts []adapter.GeminiOption
	if cfg.geminiModel != "" {
		opts = append(opts, adapter.WithGenerativeModel(cfg.geminiModel))
	}
	if cfg.geminiEmbedModel != "" {
		opts = append(opts, adapter.WithEmbeddingModel(cfg.geminiEmbedModel))
	}

	client, err := adapter.NewGemini(ctx, gc, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create gemini client")
	}
	return client, nil
}

// newClaude creates a new Claude adapter instance, or nil when no key is set
func (cfg *config) newClaude() adapter.Claude {
	if cfg.anthropicAPIKey == "" {
		return nil
	}
	var opts []adapter.ClaudeOption
	if cfg.claudeModel != "" {
		opts = append(opts, adapter.WithClaudeModel(cfg.claudeModel))
	}
	return adapter.NewClaude(cfg.anthropicAPIKey, opts...)
}

func (cfg *config) embeddingConfig() embedding.Config {
	return embedding.Config{
		Provider: cfg.embeddingProvider,
		Dims:     int(cfg.embeddingDims),
	}
}

func (cfg *config) loadMemoryConfig() (memory.Config, error) {
	if cfg.memoryConfigPath == "" {
		return memory.DefaultConfig(), nil
	}

	f, err := os.Open(cfg.memoryConfigPath)
	if err != nil {
		return memory.Config{}, goerr.Wrap(err, "failed to open memory config", goerr.V("path", cfg.memoryConfigPath))
	}
	defer f.Close()

	mc, err := memory.LoadConfig(f)
	if err != nil {
		return memory.Config{}, goerr.Wrap(err, "failed to load memory config", goerr.V("path", cfg.memoryConfigPath))
	}
	return mc, nil
}

// newUseCase wires repository, providers and engine config into a memory UseCase
func (cfg *config) newUseCase(ctx context.Context) (*memory.UseCase, func(), error) {
	mc, err := cfg.loadMemoryConfig()
	if err != nil {
		return nil, nil, err
	}

	gemini, err := cfg.newGemini(ctx)
	if err != nil {
		return nil, nil, err
	}

	embedder, err := embedding.New(cfg.embeddingConfig(), gemini)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to create embedder")
	}

	repo, closer, err := cfg.newRepository(ctx)
	if err != nil {
		return nil, nil, err
	}

	logging.From(ctx).Debug("memory engine configured",
		"embedding_dims", embedder.Dims(),
		"gemini", gemini != nil,
		"claude", cfg.anthropicAPIKey != "",
	)

	opts := []memory.Option{memory.WithConfig(mc)}
	if cfg.upstreamTimeout > 0 {
		opts = append(opts, memory.WithUpstreamTimeout(cfg.upstreamTimeout))
	}

	uc := memory.New(repo, embedder, extractor.New(gemini, cfg.newClaude()), opts...)
	return uc, closer, nil
}
