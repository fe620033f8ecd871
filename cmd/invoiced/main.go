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
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/joseph-ayodele/invoice-pipeline/internal/agents"
	"github.com/joseph-ayodele/invoice-pipeline/internal/async"
	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
	"github.com/joseph-ayodele/invoice-pipeline/internal/export"
	"github.com/joseph-ayodele/invoice-pipeline/internal/ingest"
	"github.com/joseph-ayodele/invoice-pipeline/internal/llm/provider"
	"github.com/joseph-ayodele/invoice-pipeline/internal/pipeline"
	repo "github.com/joseph-ayodele/invoice-pipeline/internal/repository"
	"github.com/joseph-ayodele/invoice-pipeline/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (defaults to $INVOICE_CONFIG)")
	flag.Parse()

	// Structured text logs without time/level; the supervisor adds both
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey || a.Key == slog.LevelKey {
				return slog.Attr{}
			}
			return a
		},
	}))
	slog.SetDefault(logger)

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := repo.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	gw, err := provider.New(provider.ConfigFrom(cfg.LLM), logger)
	if err != nil {
		logger.Error("failed to build model gateway", "error", err)
		os.Exit(2)
	}

	results := repo.NewResultRepository(store, logger)
	orchestrator := pipeline.NewOrchestrator(gw, agents.PolicyFrom(cfg.Pipeline), pipeline.Options{
		History:        repo.NewInvoiceHistoryRepository(store, logger),
		Results:        results,
		Exporter:       export.NewExporter(cfg.Export.Sheet, logger),
		ExportPath:     cfg.Export.Path,
		Workers:        cfg.Pipeline.Workers,
		InvoiceTimeout: cfg.Pipeline.InvoiceTimeout,
	}, logger)

	queue := async.NewProcessorQueue(orchestrator, logger,
		async.WithWorkers(cfg.Pipeline.Workers),
		async.WithQueueSize(cfg.Pipeline.QueueSize),
		async.WithProcessTimeout(cfg.Pipeline.InvoiceTimeout),
	)

	svc := server.NewInvoiceService(orchestrator, queue, results, store, cfg.Server.UploadDir, logger)

	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           server.NewHTTPHandler(svc, cfg.Server.MaxUploadMB, logger).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("http listening", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	grpcServer := grpc.NewServer()
	healthServer := server.RegisterGRPC(grpcServer, svc, logger)
	go func() {
		logger.Info("grpc listening", "addr", cfg.Server.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("grpc server error", "error", err)
			stop()
		}
	}()

	if cfg.Ingest.WatchDir != "" {
		paths, _, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
			Roots:       []string{cfg.Ingest.WatchDir},
			InitialScan: true,
			Debounce:    cfg.Ingest.Debounce,
			Logger:      logger,
		})
		if err != nil {
			logger.Error("failed to start inbox watcher", "dir", cfg.Ingest.WatchDir, "error", err)
			os.Exit(1)
		}
		go ingest.Feed(ctx, paths, queue, "", logger)
		logger.Info("watching inbox", "dir", cfg.Ingest.WatchDir)
	}

	<-ctx.Done()
	logger.Info("shutting down")
	healthServer.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}
	grpcServer.GracefulStop()
	queue.Shutdown(shutdownCtx)
	logger.Info("stopped")
}
