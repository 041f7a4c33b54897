package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"

	"github.com/joseph-ayodele/idverify/internal/async"
	"github.com/joseph-ayodele/idverify/internal/common"
	"github.com/joseph-ayodele/idverify/internal/export"
	"github.com/joseph-ayodele/idverify/internal/logging"
	"github.com/joseph-ayodele/idverify/internal/metrics"
	"github.com/joseph-ayodele/idverify/internal/ocr"
	"github.com/joseph-ayodele/idverify/internal/server"
	"github.com/joseph-ayodele/idverify/internal/store"
)

func main() {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	envErr := common.LoadEnvFile(envFile)

	cfg := common.LoadConfig()
	logger, err := logging.NewLogger(cfg.Log.Level)
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	if envErr != nil {
		logger.Warn("ignoring env file", zap.String("path", envFile), zap.Error(envErr))
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine := ocr.NewTesseractFromConfig(cfg.OCR, logger)
	a, err := newApp(cfg, engine, prometheus.DefaultRegisterer, prometheus.DefaultGatherer, logger)
	if err != nil {
		logger.Fatal("building service failed", zap.Error(err))
	}

	httpLis, err := net.Listen("tcp", cfg.Server.HTTPAddr)
	if err != nil {
		logger.Fatal("failed to listen", zap.String("addr", cfg.Server.HTTPAddr), zap.Error(err))
	}
	grpcLis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Fatal("failed to listen", zap.String("addr", cfg.Server.GRPCAddr), zap.Error(err))
	}

	if err := a.serve(ctx, httpLis, grpcLis); err != nil {
		logger.Error("service stopped with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("stopped")
}

// app is the assembled service: one store, one queue and the servers in front of them.
type app struct {
	cfg     *common.Config
	store   *store.Store
	queue   *async.Queue
	monitor *server.EngineMonitor
	http    *http.Server
	grpc    *grpc.Server
	logger  *zap.Logger
}

func newApp(cfg *common.Config, engine ocr.Engine, reg prometheus.Registerer, gatherer prometheus.Gatherer, logger *zap.Logger) (*app, error) {
	collectors, err := metrics.New(reg)
	if err != nil {
		return nil, common.WrapError(err, "register metrics")
	}

	st := store.New(logger,
		store.WithRetention(cfg.Store.Retention),
		store.WithSweepInterval(cfg.Store.SweepInterval),
		store.WithSweepObserver(collectors.Swept),
	)
	extractor := ocr.NewExtractor(engine, ocr.ExtractorConfig(cfg.OCR), logger,
		ocr.WithProfileObserver(collectors.ObserveProfile),
	)
	queue := async.NewQueue(st, extractor, logger,
		async.WithWorkers(cfg.Queue.Workers),
		async.WithCapacity(cfg.Queue.Capacity),
		async.WithTaskTimeout(cfg.Queue.TaskTimeout),
		async.WithObserver(collectors),
	)
	if err := collectors.TrackQueue(queue.Stats); err != nil {
		return nil, common.WrapError(err, "register queue gauges")
	}

	hs := health.NewServer()
	monitor := server.NewEngineMonitor(engine, hs, cfg.Server.HealthProbeInterval, collectors.SetEngineUp, logger)

	handler := server.NewHandler(queue, monitor, export.NewService(st, logger), cfg.Server.MaxUploadBytes, logger)
	router := server.NewRouter(handler, server.RouterOptions{
		JWTSecret:          cfg.Auth.JWTSecret,
		JWTAudience:        cfg.Auth.JWTAudience,
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		Metrics:            collectors,
		Gatherer:           gatherer,
	})

	return &app{
		cfg:     cfg,
		store:   st,
		queue:   queue,
		monitor: monitor,
		http: &http.Server{
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		grpc:   server.NewGRPCServer(hs),
		logger: logger,
	}, nil
}

// serve runs every component until ctx ends or one of them fails, then shuts
// down in order: stop taking HTTP requests, drain the queue, stop gRPC.
func (a *app) serve(ctx context.Context, httpLis, grpcLis net.Listener) error {
	a.queue.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.store.Run(gctx) })
	g.Go(func() error { return a.monitor.Run(gctx) })
	g.Go(func() error {
		a.logger.Info("gRPC health listening", zap.String("addr", grpcLis.Addr().String()))
		return a.grpc.Serve(grpcLis)
	})
	g.Go(func() error {
		a.logger.Info("HTTP listening", zap.String("addr", httpLis.Addr().String()))
		err := serveHTTPServer(gctx, a.http, httpLis, a.cfg.Server.ShutdownTimeout, a.logger)

		drainCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := a.queue.Shutdown(drainCtx); err != nil {
			a.logger.Warn("queue drain incomplete", zap.Error(err))
		}
		a.grpc.GracefulStop()
		return err
	})
	return g.Wait()
}

// serveHTTPServer serves until ctx ends, then shuts the server down gracefully.
func serveHTTPServer(ctx context.Context, server *http.Server, listener net.Listener, shutdownTimeout time.Duration, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		err := server.Serve(listener)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}
