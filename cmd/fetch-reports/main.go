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
		in       = flag.String("in", "", "report sheet to refresh in place (default <OUTPUT_DIR>/cars_report.csv)")
		idColumn = flag.String("id-column", "restriction_id", "column holding the report IDs")
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
		*in = filepath.Join(cfg.Files.OutputDir, "cars_report.csv")
	}

	table, err := tabular.Load(*in)
	if err != nil {
		logger.Error("failed to load input file", "path", *in, "error", err)
		os.Exit(1)
	}
	logger.Info("input loaded", "path", *in, "rows", table.Len())

	client := apiclient.New(apiclient.Config{
		BaseURL:     cfg.API.BaseURL,
		AccessToken: cfg.API.AccessToken,
		Timeout:     cfg.API.Timeout,
	}, logger)

	stats, err := poll.FetchReports(context.Background(), client, logger, table, *idColumn)
	if err != nil {
		logger.Error("report fetch failed", "error", err)
		os.Exit(1)
	}

	// One-shot semantics: statuses go back into the same file.
	if err := table.Save(*in); err != nil {
		logger.Error("failed to write sheet", "path", *in, "error", err)
		os.Exit(1)
	}

	fmt.Printf("Report fetch complete!\n")
	fmt.Printf("- Checked: %d\n", stats.Checked)
	fmt.Printf("- Completed: %d\n", stats.Completed)
	fmt.Printf("- Still pending: %d\n", stats.Pending)
	fmt.Printf("- Errors: %d\n", stats.Errors)
	fmt.Printf("- Sheet: %s\n", *in)
}
