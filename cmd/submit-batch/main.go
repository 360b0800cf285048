package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gierrejunior/using-geocarbon-api/internal/apiclient"
	"github.com/gierrejunior/using-geocarbon-api/internal/common"
	"github.com/gierrejunior/using-geocarbon-api/internal/submit"
	"github.com/gierrejunior/using-geocarbon-api/internal/tabular"
)

func main() {
	var (
		in        = flag.String("in", "", "input CSV/XLSX with CAR codes (default <INPUT_DIR>/cars.csv)")
		out       = flag.String("out", "", "output file (default <OUTPUT_DIR>/<input>_updated.csv)")
		carColumn = flag.String("car-column", "CAR", "column holding the CAR codes")
		years     = flag.String("years", "2004:2023", "year ranges, e.g. 2004:2023 or 2004:2023,2010:2015")
		name      = flag.String("name", "batch", "request name sent to the API")
		unified   = flag.Bool("unified", false, "send all codes in a single unified batch request")
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

	ranges, err := submit.ParseYearRanges(*years)
	if err != nil {
		logger.Error("invalid --years", "error", err)
		os.Exit(1)
	}

	if *in == "" {
		*in = filepath.Join(cfg.Files.InputDir, "cars.csv")
	}
	if *out == "" {
		base := strings.TrimSuffix(filepath.Base(*in), filepath.Ext(*in))
		*out = filepath.Join(cfg.Files.OutputDir, base+"_updated.csv")
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
	svc := submit.NewService(client, logger)

	ctx := context.Background()

	var stats submit.Stats
	var failures []*tabular.Record
	if *unified {
		result, err := svc.DeforestationUnified(ctx, table, *carColumn, *name, ranges)
		if err != nil {
			logger.Error("unified batch submission failed", "error", err)
			os.Exit(1)
		}
		stats.Submitted = result.Codes
	} else {
		stats, failures, err = svc.Deforestation(ctx, table, *carColumn, *name, ranges)
		if err != nil {
			logger.Error("batch submission failed", "error", err)
			os.Exit(1)
		}
	}

	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		logger.Error("failed to create output directory", "error", err)
		os.Exit(1)
	}
	if err := table.Save(*out); err != nil {
		logger.Error("failed to write output file", "path", *out, "error", err)
		os.Exit(1)
	}

	errPath := ""
	if len(failures) > 0 {
		base := strings.TrimSuffix(filepath.Base(*in), filepath.Ext(*in))
		errPath = filepath.Join(cfg.Files.OutputDir, base+"_errors.csv")
		if err := tabular.Save(errPath, nil, failures); err != nil {
			logger.Error("failed to write errors file", "path", errPath, "error", err)
			os.Exit(1)
		}
	}

	fmt.Printf("Batch submission complete!\n")
	fmt.Printf("- Submitted: %d\n", stats.Submitted)
	fmt.Printf("- Skipped: %d\n", stats.Skipped)
	fmt.Printf("- Failed: %d\n", stats.Failed)
	fmt.Printf("- Output: %s\n", *out)
	if errPath != "" {
		fmt.Printf("- Errors: %s\n", errPath)
	}
}
