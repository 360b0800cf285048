package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gierrejunior/using-geocarbon-api/internal/apiclient"
	"github.com/gierrejunior/using-geocarbon-api/internal/common"
	"github.com/gierrejunior/using-geocarbon-api/internal/poll"
	"github.com/gierrejunior/using-geocarbon-api/internal/tabular"
)

func main() {
	var (
		in        = flag.String("in", "", "input CSV/XLSX with job IDs (default <OUTPUT_DIR>/cars_updated.csv)")
		idColumn  = flag.String("id-column", "id", "column holding the job IDs")
		completed = flag.String("completed", "", "completed results file (default <OUTPUT_DIR>/results.csv)")
		failedOut = flag.String("errors", "", "errors file (default <OUTPUT_DIR>/errors.csv)")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if *in == "" {
		*in = filepath.Join(cfg.Files.OutputDir, "cars_updated.csv")
	}
	if *completed == "" {
		*completed = filepath.Join(cfg.Files.OutputDir, "results.csv")
	}
	if *failedOut == "" {
		*failedOut = filepath.Join(cfg.Files.OutputDir, "errors.csv")
	}

	table, err := tabular.Load(*in)
	if err != nil {
		logger.Error("failed to load input file", "path", *in, "error", err)
		os.Exit(1)
	}

	jobs, skipped, err := poll.JobsFromTable(table, *idColumn)
	if err != nil {
		logger.Error("failed to collect job IDs", "column", *idColumn, "error", err)
		os.Exit(1)
	}
	logger.Info("input loaded", "path", *in, "jobs", len(jobs), "skipped_empty", skipped)

	client := apiclient.New(apiclient.Config{
		BaseURL:     cfg.API.BaseURL,
		AccessToken: cfg.API.AccessToken,
		Timeout:     cfg.API.Timeout,
	}, logger)
	poller := poll.NewPoller(client, logger,
		poll.WithMaxAttempts(cfg.Poller.MaxAttempts),
		poll.WithRetryDelay(cfg.Poller.RetryDelay),
	)

	done, failures := poller.Run(context.Background(), jobs)

	if err := os.MkdirAll(filepath.Dir(*completed), 0o755); err != nil {
		logger.Error("failed to create output directory", "error", err)
		os.Exit(1)
	}
	if err := tabular.Save(*completed, nil, poll.CompletedRecords(done)); err != nil {
		logger.Error("failed to write completed results", "path", *completed, "error", err)
		os.Exit(1)
	}
	if err := tabular.Save(*failedOut, nil, poll.FailureRecords(failures)); err != nil {
		logger.Error("failed to write errors file", "path", *failedOut, "error", err)
		os.Exit(1)
	}

	fmt.Printf("Result polling complete!\n")
	fmt.Printf("- Completed: %d\n", len(done))
	fmt.Printf("- Failed: %d\n", len(failures))
	fmt.Printf("- Results: %s\n", *completed)
	fmt.Printf("- Errors: %s\n", *failedOut)
}
