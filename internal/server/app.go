// Package server wires the bucketvault components together: database,
// credential cipher, services, the JSON API and the gRPC health endpoint.
// It handles graceful shutdown on SIGINT, SIGTERM and SIGQUIT.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/bucketvault/internal/cryptox"
	"github.com/dmitrijs2005/bucketvault/internal/logging"
	"github.com/dmitrijs2005/bucketvault/internal/server/config"
	"github.com/dmitrijs2005/bucketvault/internal/server/metrics"
	"github.com/dmitrijs2005/bucketvault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/bucketvault/internal/server/services"
	"github.com/dmitrijs2005/bucketvault/internal/server/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	gs "github.com/dmitrijs2005/bucketvault/internal/server/grpc"
	hs "github.com/dmitrijs2005/bucketvault/internal/server/http"
)

type runner interface {
	Run(ctx context.Context) error
}

type App struct {
	config     *config.Config
	logger     logging.Logger
	db         *sql.DB
	httpServer runner
	grpcServer runner
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	db, err := repomanager.OpenDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	cipher, err := cryptox.NewCipher(c.EncryptionKey)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cipher init error: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	us := services.NewUserService(db, rm, c, logger)
	bs := services.NewBucketService(db, rm, cipher, logger)
	fs := services.NewFileService(
		bs,
		storage.NewS3Connector(c.S3BaseEndpoint, c.S3UsePathStyle, m, logger),
		services.NewObjectNamespace(logger),
		services.NewShareLinkIssuer(c.ShareLinkTTL, logger),
		c.MaxUploadBytes,
		logger,
	)

	handler := hs.NewHandler(us, bs, fs, c.MaxUploadBytes, logger)
	router := hs.NewRouter(handler, []byte(c.SecretKey), m, registry, logger)

	return &App{
		config:     c,
		logger:     logger,
		db:         db,
		httpServer: hs.NewServer(c.EndpointAddrHTTP, router, logger),
		grpcServer: gs.NewHealthServer(c.EndpointAddrGRPC, logger),
	}, nil
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

// start runs srv and cancels the whole app if it fails.
func (app *App) start(ctx context.Context, cancelFunc context.CancelFunc, name string, srv runner) {
	if err := srv.Run(ctx); err != nil {
		app.logger.Error(ctx, "server failed", "server", name, "error", err)
		cancelFunc()
	}
}

// Run blocks until a signal arrives or one of the servers fails.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.start(ctx, cancelFunc, "http", app.httpServer)
	}()
	go func() {
		defer wg.Done()
		app.start(ctx, cancelFunc, "grpc", app.grpcServer)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Warn(ctx, "db close error", "error", err)
	}

	app.logger.Info(ctx, "App stopped")
}
