package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joseph-ayodele/invoice-pipeline/internal/agents"
	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
	"github.com/joseph-ayodele/invoice-pipeline/internal/export"
	"github.com/joseph-ayodele/invoice-pipeline/internal/ingest"
	"github.com/joseph-ayodele/invoice-pipeline/internal/llm/provider"
	"github.com/joseph-ayodele/invoice-pipeline/internal/pipeline"
	repo "github.com/joseph-ayodele/invoice-pipeline/internal/repository"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		configPath = flag.String("config", "", "path to a YAML config file (defaults to $INVOICE_CONFIG)")
		dir        = flag.String("dir", "", "directory to process invoices from")
		out        = flag.String("out", "", "spreadsheet to append results to (defaults to the configured export path)")
		report     = flag.String("report", "", "optional report workbook written after the batch")
		workers    = flag.Int("workers", 0, "concurrent invoices (defaults to the configured worker count)")
		vendor     = flag.String("vendor", "", "vendor name used when none is captured")
		inmem      = flag.Bool("inmem", false, "use an in-memory invoice history instead of the configured database")
	)
	flag.Parse()

	paths := flag.Args()
	if *dir == "" && len(paths) == 0 {
		printError("Error: --dir or at least one file is required\n")
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(2)
	}
	if *inmem {
		cfg.Database.DSN = ":memory:"
	}
	if *out != "" {
		cfg.Export.Path = *out
	}
	if *workers > 0 {
		cfg.Pipeline.Workers = *workers
	}
	if err := cfg.Validate(); err != nil {
		printError("Error: %v\n", err)
		os.Exit(2)
	}

	if *dir != "" {
		found, stats, err := ingest.ScanDirectory(*dir, true)
		if err != nil {
			logger.Error("failed to scan directory", "dir", *dir, "error", err)
			os.Exit(1)
		}
		logger.Info("directory scanned",
			"dir", *dir,
			"scanned", stats.Scanned,
			"matched", stats.Matched,
			"skipped", stats.Skipped,
			"failed", stats.Failed)
		paths = append(paths, found...)
	}
	if len(paths) == 0 {
		fmt.Println("No invoices found.")
		return
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

	orchestrator := pipeline.NewOrchestrator(gw, agents.PolicyFrom(cfg.Pipeline), pipeline.Options{
		History:        repo.NewInvoiceHistoryRepository(store, logger),
		Results:        repo.NewResultRepository(store, logger),
		Exporter:       export.NewExporter(cfg.Export.Sheet, logger),
		ExportPath:     cfg.Export.Path,
		Workers:        cfg.Pipeline.Workers,
		InvoiceTimeout: cfg.Pipeline.InvoiceTimeout,
	}, logger)

	reqs := make([]pipeline.Request, len(paths))
	for i, p := range paths {
		reqs[i] = pipeline.Request{Path: p, VendorHint: *vendor}
	}
	results := orchestrator.ProcessBatch(ctx, reqs)

	if *report != "" {
		if err := export.WriteReport(*report, results, logger); err != nil {
			logger.Error("failed to write report", "path", *report, "error", err)
		}
	}

	processed, failures, persistFailures := 0, 0, 0
	for _, r := range results {
		if r.Failed() {
			failures++
			printError("- %s: %s\n", filepath.Base(r.InvoicePath), r.Error)
		} else {
			processed++
		}
		if r.PersistError != "" {
			persistFailures++
		}
	}

	logger.Info("batch processing complete",
		"invoices", len(results),
		"processed", processed,
		"failures", failures,
		"persist_failures", persistFailures,
		"output_file", cfg.Export.Path)

	fmt.Printf("Batch processing complete!\n")
	fmt.Printf("- Invoices: %d\n", len(results))
	fmt.Printf("- Processed: %d\n", processed)
	fmt.Printf("- Failures: %d\n", failures)
	fmt.Printf("- Output: %s\n", cfg.Export.Path)
	if *report != "" {
		fmt.Printf("- Report: %s\n", *report)
	}
	if failures > 0 {
		os.Exit(1)
	}
}
