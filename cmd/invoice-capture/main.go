package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joseph-ayodele/invoice-pipeline/constants"
	"github.com/joseph-ayodele/invoice-pipeline/internal/agents"
	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
	"github.com/joseph-ayodele/invoice-pipeline/internal/document"
	"github.com/joseph-ayodele/invoice-pipeline/internal/llm"
	"github.com/joseph-ayodele/invoice-pipeline/internal/llm/provider"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a YAML config file (defaults to $INVOICE_CONFIG)")
		file       = flag.String("file", "", "invoice document to capture (required)")
		class      = flag.String("class", "", "force the document class: digital or handwritten")
		timeout    = flag.Duration("timeout", 2*time.Minute, "overall timeout")
	)
	flag.Parse()

	if *file == "" {
		fmt.Fprintln(os.Stderr, "Error: --file is required")
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	doc, err := document.Load(*file, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	switch constants.DocumentClass(*class) {
	case "":
	case constants.Digital, constants.Handwritten:
		doc.Class = constants.DocumentClass(*class)
	default:
		fmt.Fprintf(os.Stderr, "Error: --class must be digital or handwritten, got %q\n", *class)
		os.Exit(1)
	}

	gw, err := provider.New(provider.ConfigFrom(cfg.LLM), logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	out := agents.NewCapture(gw, llm.NewPromptLibrary(), logger).Capture(ctx, doc)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if out.Status == constants.StatusError {
		os.Exit(1)
	}
}
