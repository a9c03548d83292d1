package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"speakerscribe/internal/api"
	"speakerscribe/internal/config"
	"speakerscribe/internal/diarizer"
	"speakerscribe/internal/gpu"
	"speakerscribe/internal/jobstore"
	"speakerscribe/internal/logger"
	"speakerscribe/internal/media"
	"speakerscribe/internal/orchestrator"
	"speakerscribe/internal/performance"
	"speakerscribe/internal/queue"
	"speakerscribe/internal/transcriber"
)

// Run modes. A single process can serve the API, run workers, or both.
const (
	ModeServer = "server"
	ModeWorker = "worker"
	ModeAll    = "all"
)

// jobKeyPrefix namespaces the per-job hashes in Redis
const jobKeyPrefix = "speakerscribe:job"

// Application wires the transcription service together: configuration, the
// Redis-backed store and queue, the model capabilities, the worker pool, and
// the HTTP API.
type Application struct {
	config      *config.Configuration
	logger      *zap.Logger
	mode        string
	redisClient *redis.Client
	transcriber *transcriber.WhisperTranscriber
	diarizer    *diarizer.PyannoteDiarizer
	monitor     *performance.Monitor
	pool        *orchestrator.WorkerPool
	server      *api.Server
}

// NewApplication creates a new application instance with all components
// initialized for the given run mode
func NewApplication(mode string) (*Application, error) {
	if mode != ModeServer && mode != ModeWorker && mode != ModeAll {
		return nil, fmt.Errorf("unknown run mode %q", mode)
	}

	// Load configuration from a config file if CONFIG_PATH is set, otherwise
	// from environment variables.
	var cfg *config.Configuration
	var err error
	if configPath := os.Getenv("CONFIG_PATH"); configPath != "" {
		cfg, err = config.NewConfigurationFromFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file %s: %w", configPath, err)
		}
	} else {
		cfg, err = config.NewConfigurationFromEnv()
		if err != nil {
			return nil, fmt.Errorf("failed to load config from environment: %w", err)
		}
	}

	zapLogger, err := logger.NewLoggerWithLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.GetRedisAddr(),
		Password: cfg.GetRedisPassword(),
		DB:       cfg.GetRedisDB(),
	})

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		redisClient.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.GetRedisAddr(), err)
	}

	store := jobstore.NewRedisStore(redisClient, jobKeyPrefix, cfg.GetJobRetention())
	jobQueue := queue.NewRedisQueue(redisClient, cfg.GetQueueKey())

	app := &Application{
		config:      cfg,
		logger:      zapLogger,
		mode:        mode,
		redisClient: redisClient,
	}

	if mode == ModeWorker || mode == ModeAll {
		device := gpu.NewDetector(zapLogger).PreferredDevice()

		whisper, err := transcriber.NewWhisperTranscriber(cfg.GetPythonPath(), cfg.GetWhisperModel(), device, zapLogger)
		if err != nil {
			app.Shutdown()
			return nil, fmt.Errorf("failed to create transcriber: %w", err)
		}
		app.transcriber = whisper

		pyannote, err := diarizer.NewPyannoteDiarizer(cfg.GetPythonPath(), cfg.GetDiarizerModel(), device, zapLogger)
		if err != nil {
			app.Shutdown()
			return nil, fmt.Errorf("failed to create diarizer: %w", err)
		}
		app.diarizer = pyannote

		converter := media.NewConverter(cfg.GetFFmpegPath(), zapLogger)
		app.monitor = performance.NewMonitorWithBenchmark(zapLogger, cfg.GetBenchmarkMode())
		executor := orchestrator.NewExecutor(store, whisper, pyannote, converter, cfg.GetExecutionTimeout(), app.monitor, zapLogger)
		app.pool = orchestrator.NewWorkerPool(jobQueue, executor, cfg.GetWorkerCount(), zapLogger)
	}

	if mode == ModeServer || mode == ModeAll {
		orc := orchestrator.NewOrchestrator(store, jobQueue, cfg.GetUploadDir(), zapLogger)
		app.server = api.NewServer(orc, cfg.GetListenAddr(), api.StaticTokenAuthorizer(cfg.GetAuthToken()), cfg.GetDefaultLanguage(), zapLogger)
	}

	return app, nil
}

// Run starts the configured components and blocks until the context is
// cancelled or the HTTP listener fails
func (app *Application) Run(ctx context.Context) error {
	app.logger.Info("starting application",
		zap.String("mode", app.mode),
		zap.String("redis", app.config.GetRedisAddr()))

	poolDone := make(chan struct{})
	if app.pool != nil {
		go func() {
			defer close(poolDone)
			app.pool.Run(ctx)
		}()
	} else {
		close(poolDone)
	}

	serverErr := make(chan error, 1)
	if app.server != nil {
		go func() {
			serverErr <- app.server.ListenAndServe()
		}()
	}

	select {
	case <-ctx.Done():
		app.logger.Info("shutdown requested")
	case err := <-serverErr:
		if err != nil {
			return err
		}
	}

	if app.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := app.server.Shutdown(shutdownCtx); err != nil {
			app.logger.Error("API server shutdown failed", zap.Error(err))
		}
	}

	// Let in-flight jobs finish before returning.
	<-poolDone
	if app.monitor != nil {
		app.monitor.LogSummary()
	}
	app.logger.Info("application stopped")
	return nil
}

// Shutdown releases the resources held by the application
func (app *Application) Shutdown() error {
	var firstErr error
	if app.transcriber != nil {
		if err := app.transcriber.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if app.diarizer != nil {
		if err := app.diarizer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if app.redisClient != nil {
		if err := app.redisClient.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if app.logger != nil {
		app.logger.Sync()
	}
	return firstErr
}
