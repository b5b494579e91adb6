// Package server initializes and runs the filevault application: it wires
// the metadata store, blob store, session oracle, job queue, HTTP API and
// optional embedded thumbnail worker, and handles graceful shutdown.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"filevault/internal/logging"
	"filevault/internal/server/blob"
	"filevault/internal/server/config"
	"filevault/internal/server/httpapi"
	"filevault/internal/server/repositories/repomanager"
	"filevault/internal/server/services"
	"filevault/internal/server/sessions"
	"filevault/internal/server/thumbs"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	repos   repomanager.RepositoryManager
	oracle  *sessions.Oracle
	httpSrv *httpapi.Server
	worker  *thumbs.Worker
}

func newBlobStore(ctx context.Context, c *config.Config) (blob.Store, error) {
	switch c.BlobBackend {
	case config.BlobBackendS3:
		return blob.NewS3Store(ctx, blob.S3Config{
			RootUser:     c.S3RootUser,
			RootPassword: c.S3RootPassword,
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
		})
	case config.BlobBackendDisk:
		return blob.NewDiskStore(c.BlobRoot)
	default:
		return nil, fmt.Errorf("unknown blob backend: %q", c.BlobBackend)
	}
}

// NewApp wires the full server: HTTP API plus, when configured, an embedded
// thumbnail worker sharing the same queue handle.
func NewApp(c *config.Config) (*App, error) {

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	ctx := context.Background()

	repos, err := repomanager.NewPostgresRepositoryManager(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	blobs, err := newBlobStore(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("blob store init error: %w", err)
	}

	oracle := sessions.NewOracle(repos.Sessions())
	resolver := sessions.NewCachedResolver(oracle, c.SessionCacheSize, c.SessionCacheTTL)

	// One queue handle for both the producer (upload path) and the
	// consumer, so channel identity cannot diverge between them.
	q := repos.Jobs()

	fileService := services.NewFileService(repos.Files(), resolver, blobs, q, logger)

	httpSrv := httpapi.NewServer(c.EndpointAddrHTTP, fileService, repos.Files(), repos.Conn().PingContext, logger)

	var worker *thumbs.Worker
	if c.RunWorker {
		worker = thumbs.NewWorker(q, repos.Files(), blobs, logger, thumbs.Options{
			PollInterval:      c.WorkerPollInterval,
			MaxAttempts:       c.WorkerMaxAttempts,
			DerivativeTimeout: c.ThumbnailTimeout,
			StaleAfter:        c.JobStaleAfter,
		})
	}

	return &App{
		config:  c,
		logger:  logger,
		repos:   repos,
		oracle:  oracle,
		httpSrv: httpSrv,
		worker:  worker,
	}, nil
}

// NewWorkerApp wires a standalone consumer process: no HTTP surface, just
// the worker over the shared durable queue.
func NewWorkerApp(c *config.Config) (*App, error) {

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	ctx := context.Background()

	repos, err := repomanager.NewPostgresRepositoryManager(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	blobs, err := newBlobStore(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("blob store init error: %w", err)
	}

	worker := thumbs.NewWorker(repos.Jobs(), repos.Files(), blobs, logger, thumbs.Options{
		PollInterval:      c.WorkerPollInterval,
		MaxAttempts:       c.WorkerMaxAttempts,
		DerivativeTimeout: c.ThumbnailTimeout,
		StaleAfter:        c.JobStaleAfter,
	})

	return &App{config: c, logger: logger, repos: repos, worker: worker}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// sessionSweepLoop periodically drops expired sessions from the store.
func (app *App) sessionSweepLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := app.oracle.Sweep(ctx)
			if err != nil {
				app.logger.Warn(ctx, "session sweep failed", "error", err)
				continue
			}
			if n > 0 {
				app.logger.Debug(ctx, "swept expired sessions", "count", n)
			}
		}
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	if app.httpSrv != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := app.httpSrv.Run(ctx); err != nil {
				app.logger.Error(ctx, err.Error())
				cancelFunc()
			}
		}()
	}

	if app.worker != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := app.worker.Run(ctx); err != nil {
				app.logger.Error(ctx, err.Error())
				cancelFunc()
			}
		}()
	}

	if app.oracle != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.sessionSweepLoop(ctx)
		}()
	}

	wg.Wait()

	if err := app.repos.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
}
