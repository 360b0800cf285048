package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gierrejunior/using-geocarbon-api/internal/apiclient"
	"github.com/gierrejunior/using-geocarbon-api/internal/common"
	"github.com/gierrejunior/using-geocarbon-api/internal/upload"
)

func main() {
	var (
		dir  = flag.String("dir", "", "folder with the shapefile bundle (default <INPUT_DIR>/geometries)")
		name = flag.String("name", "geometry batch", "name for the uploaded batch")
		date = flag.String("date", "", "availability date YYYY-MM-DD (default today)")
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

	if *dir == "" {
		*dir = filepath.Join(cfg.Files.InputDir, "geometries")
	}
	if *date == "" {
		*date = time.Now().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", *date); err != nil {
		logger.Error("invalid --date, use YYYY-MM-DD", "error", err)
		os.Exit(1)
	}

	client := apiclient.New(apiclient.Config{
		BaseURL:     cfg.API.BaseURL,
		AccessToken: cfg.API.AccessToken,
		Timeout:     cfg.API.Timeout,
	}, logger)
	svc := upload.NewService(client, logger)

	batchID, err := svc.UploadGeometries(context.Background(), *dir, *name, *date)
	if err != nil {
		logger.Error("geometry upload failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Geometry upload complete!\n")
	fmt.Printf("- Folder: %s\n", *dir)
	fmt.Printf("- Batch ID: %s\n", batchID)
}
