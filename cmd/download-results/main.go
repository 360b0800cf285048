package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gierrejunior/using-geocarbon-api/constants"
	"github.com/gierrejunior/using-geocarbon-api/internal/apiclient"
	"github.com/gierrejunior/using-geocarbon-api/internal/common"
	"github.com/gierrejunior/using-geocarbon-api/internal/download"
	"github.com/gierrejunior/using-geocarbon-api/internal/tabular"
)

func main() {
	var (
		in       = flag.String("in", "", "input CSV/XLSX with analysis IDs (default <OUTPUT_DIR>/cars_updated.csv)")
		out      = flag.String("out", "", "output file with links (default <OUTPUT_DIR>/<input>_download.csv)")
		idColumn = flag.String("id-column", "id", "column holding the analysis IDs")
		entity   = flag.String("entity", string(constants.EntityDeforestationMapBiomas), "entity type for the download endpoint")
		linkOnly = flag.Bool("link-only", false, "resolve download links without fetching the archives")
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

	if !constants.KnownEntityType(*entity) {
		logger.Error("unknown entity type", "entity", *entity, "known", constants.EntityTypes())
		os.Exit(1)
	}

	if *in == "" {
		*in = filepath.Join(cfg.Files.OutputDir, "cars_updated.csv")
	}
	if *out == "" {
		base := strings.TrimSuffix(filepath.Base(*in), filepath.Ext(*in))
		*out = filepath.Join(cfg.Files.OutputDir, base+"_download.csv")
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
	svc := download.NewService(client, logger, cfg.Files.DownloadDir)

	stats, err := svc.Process(context.Background(), table, *idColumn, constants.EntityType(*entity), *linkOnly)
	if err != nil {
		logger.Error("download processing failed", "error", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		logger.Error("failed to create output directory", "error", err)
		os.Exit(1)
	}
	if err := table.Save(*out); err != nil {
		logger.Error("failed to write output file", "path", *out, "error", err)
		os.Exit(1)
	}

	fmt.Printf("Download processing complete!\n")
	fmt.Printf("- Links resolved: %d\n", stats.Linked)
	fmt.Printf("- Archives downloaded: %d\n", stats.Downloaded)
	fmt.Printf("- Skipped: %d\n", stats.Skipped)
	fmt.Printf("- Failed: %d\n", stats.Failed)
	fmt.Printf("- Output: %s\n", *out)
}
