package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/taxdocs/internal/app"
	"github.com/joseph-ayodele/taxdocs/internal/async"
	"github.com/joseph-ayodele/taxdocs/internal/common"
	"github.com/joseph-ayodele/taxdocs/internal/ingest"
	"github.com/joseph-ayodele/taxdocs/internal/server"
)

func main() {
	var (
		configPath = flag.String("config", "", "config file (default ~/.config/taxdocs/config.yaml)")
		watch      = flag.Bool("watch", false, "process files dropped into the inbox directory")
		workers    = flag.Int("workers", 2, "queue workers")
	)
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(2)
	}
	logger := common.NewLogger(os.Stdout, cfg.Log.Format, cfg.Log.Level)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	queue := async.NewProcessorQueue(a.Processor, logger,
		async.WithWorkers(*workers),
		async.WithQueueSize(256),
		async.WithProcessTimeout(10*time.Minute),
		async.WithDepthGauge(a.Metrics),
	)

	gs, hs := server.NewGRPCServer(a.Service(queue), logger)
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	go func() {
		logger.Info("taxdocsd listening", "addr", cfg.Server.GRPCAddr)
		if err := gs.Serve(lis); err != nil {
			logger.Error("grpc serve error", "error", err)
			stop()
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", a.Metrics.Handler())
	metricsSrv := &http.Server{Addr: cfg.Server.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("metrics listening", "addr", cfg.Server.MetricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics serve error", "error", err)
		}
	}()

	if *watch {
		inbox := cfg.Storage.InboxDir
		if inbox == "" {
			inbox = filepath.Join(cfg.Storage.DataDir, "inbox")
		}
		if err := startInboxWatcher(ctx, inbox, queue, logger); err != nil {
			logger.Error("failed to start inbox watcher", "dir", inbox, "error", err)
			os.Exit(1)
		}
	}

	go reloadOnHangup(ctx, *configPath, a.Config, logger)

	<-ctx.Done()
	logger.Info("shutting down")
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	gs.GracefulStop()
	queue.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
}

func startInboxWatcher(ctx context.Context, dir string, queue async.Queue, logger *slog.Logger) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	paths, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       []string{dir},
		InitialScan: true,
		Debounce:    2 * time.Second,
	}, logger)
	if err != nil {
		return err
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-errs:
				if !ok {
					errs = nil
					continue
				}
				logger.Warn("inbox.watch.error", "error", err)
			case p, ok := <-paths:
				if !ok {
					return
				}
				if err := queue.Enqueue(ctx, async.Job{SourcePath: p}); err != nil {
					logger.Warn("inbox.enqueue.failed", "path", p, "error", err)
				}
			}
		}
	}()
	logger.Info("inbox.watch.started", "dir", dir)
	return nil
}

// reloadOnHangup re-reads the config file on SIGHUP. The new snapshot only
// affects runs that start afterwards.
func reloadOnHangup(ctx context.Context, path string, holder *common.ConfigHolder, logger *slog.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			next, err := common.LoadConfig(path)
			if err == nil {
				err = holder.Swap(next)
			}
			if err != nil {
				logger.Error("config.reload.failed", "error", err)
				continue
			}
			logger.Info("config.reload.ok")
		}
	}
}
