// Package app wires the micro registry together and runs it.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MSSkowron/MicroURL/internal/config"
	"github.com/MSSkowron/MicroURL/internal/database"
	"github.com/MSSkowron/MicroURL/internal/repository"
	grpcserver "github.com/MSSkowron/MicroURL/internal/server/grpc"
	"github.com/MSSkowron/MicroURL/internal/server/rest"
	"github.com/MSSkowron/MicroURL/internal/service"
	"github.com/MSSkowron/MicroURL/internal/tracing"
	"github.com/MSSkowron/MicroURL/internal/vocabulary"
	"github.com/MSSkowron/MicroURL/pkg/logger"
)

// ShutdownTimeout bounds how long servers wait for in-flight requests on shutdown.
const ShutdownTimeout = 10 * time.Second

// App owns the registry and the resources behind it.
type App struct {
	cfg      *config.Config
	db       database.Database
	tracing  *tracing.Provider
	registry *service.RegistryServiceImpl
}

// New validates cfg and builds the registry on the configured store.
// The returned App must be closed.
func New(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.SetLevel(cfg.LogLevel)

	a := &App{cfg: cfg}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	a.tracing, err = tracing.NewProvider(ctx, tracing.Config{
		Enabled:      cfg.TracingEnabled,
		Exporter:     cfg.TracingExporter,
		OTLPEndpoint: cfg.TracingOTLPEndpoint,
		SampleRate:   cfg.TracingSampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer provider: %w", err)
	}

	repo, err := a.newRepository(ctx)
	if err != nil {
		return nil, err
	}

	words, err := loadVocabulary(cfg.VocabularyFile)
	if err != nil {
		return nil, err
	}

	generator, err := service.NewCodeGenerator(words, cfg.MicroWords)
	if err != nil {
		return nil, err
	}

	a.registry, err = service.NewRegistryService(repo, generator, cfg.MicroTTL,
		service.WithMaxAttempts(cfg.MaxGenerateAttempts),
		service.WithTracer(a.tracing.Tracer()),
	)
	if err != nil {
		return nil, err
	}

	return a, nil
}

func (a *App) newRepository(ctx context.Context) (repository.MicroRepository, error) {
	var repo repository.MicroRepository

	switch a.cfg.DatabaseDriver {
	case config.DriverMemory:
		repo = repository.NewMemoryMicroRepository()
	case config.DriverSQLite:
		db, err := database.NewSQLiteDatabase(ctx, a.cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		a.db = db
		repo = repository.NewMicroRepository(db)
	case config.DriverPostgres:
		db, err := database.NewPostgresDatabase(ctx, a.cfg.DatabaseURL, database.WithMaxOpenConns(a.cfg.DatabaseMaxOpenConns))
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres database: %w", err)
		}
		a.db = db
		if err := db.Migrate(); err != nil {
			return nil, err
		}
		repo = repository.NewMicroRepository(db)
	default:
		return nil, &config.ConfigurationError{Setting: "DATABASE_DRIVER", Reason: fmt.Sprintf("unknown driver %q", a.cfg.DatabaseDriver)}
	}

	logger.Info("Micro store ready", "driver", a.cfg.DatabaseDriver)

	if a.cfg.LookupCacheTTL > 0 {
		repo = repository.NewCachedMicroRepository(repo, a.cfg.LookupCacheTTL)
	}

	return repo, nil
}

func loadVocabulary(path string) ([]string, error) {
	if path == "" {
		return vocabulary.Default(), nil
	}

	words, err := vocabulary.Load(path)
	if err != nil {
		return nil, &config.ConfigurationError{Setting: "VOCABULARY_FILE", Reason: err.Error()}
	}

	return words, nil
}

// Registry returns the registry service.
func (a *App) Registry() service.RegistryService {
	return a.registry
}

// Run serves the REST API, the gRPC health service and the expiry sweeper until ctx is done
// or one of them fails.
func (a *App) Run(ctx context.Context) error {
	sweeper, err := service.NewExpirySweeper(a.registry, a.cfg.SweepInterval)
	if err != nil {
		return err
	}

	restServer := rest.NewServer(a.registry,
		rest.WithAddress(net.JoinHostPort(a.cfg.ServerAddress, strconv.Itoa(a.cfg.ServerPort))),
	)

	var grpcServer *grpcserver.Server
	if a.cfg.GRPCPort > 0 {
		grpcServer = grpcserver.NewServer(a.registry,
			grpcserver.WithAddress(a.cfg.ServerAddress),
			grpcserver.WithPort(a.cfg.GRPCPort),
		)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("REST server listening", "address", restServer.Addr)
		if err := restServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to run rest server on %s: %w", restServer.Addr, err)
		}
		return nil
	})

	if grpcServer != nil {
		g.Go(grpcServer.ListenAndServe)
		g.Go(func() error {
			return grpcServer.RunHealthChecks(gctx)
		})
	}

	g.Go(func() error {
		return sweeper.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()

		if grpcServer != nil {
			grpcServer.Shutdown(shutdownCtx)
		}
		if err := restServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown rest server: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// Close flushes traces and closes the store.
func (a *App) Close(ctx context.Context) error {
	var errs []error

	if a.tracing != nil {
		if err := a.tracing.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	return errors.Join(errs...)
}
