// Package upload sends shapefile geometry bundles to the CAR batch endpoint.
package upload

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gierrejunior/using-geocarbon-api/internal/apiclient"
	"github.com/gierrejunior/using-geocarbon-api/internal/common"
)

// MaxBundleFiles is the API's limit on files per geometry bundle.
const MaxBundleFiles = 5

// Service uploads a shapefile bundle (.shp plus sidecar files) as one
// multipart request.
type Service struct {
	client *apiclient.Client
	logger *slog.Logger
}

func NewService(client *apiclient.Client, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{client: client, logger: logger}
}

// UploadGeometries posts every regular file in folder to /car-batch. The
// bundle must contain at most MaxBundleFiles files and at least one .shp.
// Returns the ID of the created batch record.
func (s *Service) UploadGeometries(ctx context.Context, folder, name, availabilityDate string) (string, error) {
	info, err := os.Stat(folder)
	if err != nil || !info.IsDir() {
		return "", common.NewAppError("UPLOAD_FOLDER",
			fmt.Sprintf("folder not found: %s", folder), common.ErrNotFound)
	}

	entries, err := os.ReadDir(folder)
	if err != nil {
		return "", fmt.Errorf("read folder %s: %w", folder, err)
	}

	var files []apiclient.UploadFile
	hasShp := false
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		p := filepath.Join(folder, entry.Name())
		if strings.EqualFold(filepath.Ext(entry.Name()), ".shp") {
			hasShp = true
		}
		files = append(files, apiclient.UploadFile{FieldName: "files", Path: p})
	}

	if len(files) == 0 {
		return "", common.NewAppError("UPLOAD_EMPTY",
			fmt.Sprintf("no files in folder %s", folder), common.ErrInvalidInput)
	}
	if len(files) > MaxBundleFiles {
		return "", common.NewAppError("UPLOAD_TOO_MANY",
			fmt.Sprintf("bundle has %d files, maximum is %d", len(files), MaxBundleFiles),
			common.ErrInvalidInput)
	}
	if !hasShp {
		return "", common.NewAppError("UPLOAD_NO_SHP",
			"bundle must include at least one .shp file", common.ErrInvalidInput)
	}

	s.logger.Info("upload.geometries.start", "folder", folder, "files", len(files), "name", name)

	fields := map[string]string{
		"name":             name,
		"availabilityDate": availabilityDate,
	}
	raw, err := s.client.PostMultipart(ctx, "/car-batch", fields, files)
	if err != nil {
		return "", fmt.Errorf("upload geometries: %w", err)
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := apiclient.DecodeData(raw, &created); err != nil || created.ID == "" {
		if err == nil {
			err = fmt.Errorf("response has no batch id")
		}
		return "", fmt.Errorf("upload response: %w", err)
	}

	s.logger.Info("upload.geometries.ok", "batch_id", created.ID)
	return created.ID, nil
}
