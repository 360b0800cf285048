// Package download resolves result archive links for finished analyses and
// optionally fetches the archives to the local download directory.
package download

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gierrejunior/using-geocarbon-api/constants"
	"github.com/gierrejunior/using-geocarbon-api/internal/apiclient"
	"github.com/gierrejunior/using-geocarbon-api/internal/tabular"
)

// Service turns analysis IDs into download links and archive files.
type Service struct {
	client  *apiclient.Client
	fetcher *http.Client
	logger  *slog.Logger
	baseDir string
}

func NewService(client *apiclient.Client, logger *slog.Logger, baseDir string) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if baseDir == "" {
		baseDir = "download"
	}
	return &Service{
		client: client,
		// Archives are served from object storage and can be large; this
		// client is separate from the API client and its short timeout.
		fetcher: &http.Client{Timeout: 60 * time.Second},
		logger:  logger,
		baseDir: baseDir,
	}
}

// Stats summarizes one download pass.
type Stats struct {
	Linked     int
	Downloaded int
	Skipped    int
	Failed     int
}

// Process resolves the download link for every ID in the column and stores
// it in the download_link column. Unless linkOnly is set, each archive is
// also fetched to <baseDir>/<entity folder>/<id><ext>. Per-ID failures are
// logged and counted, never fatal.
func (s *Service) Process(ctx context.Context, t *tabular.Table, idColumn string, entity constants.EntityType, linkOnly bool) (Stats, error) {
	if err := t.RequireColumn(idColumn); err != nil {
		return Stats{}, err
	}
	t.AddColumn("download_link")

	targetDir := filepath.Join(s.baseDir, entity.Folder())
	if !linkOnly {
		if err := os.MkdirAll(targetDir, 0o755); err != nil {
			return Stats{}, fmt.Errorf("create download dir: %w", err)
		}
	}

	var stats Stats

	s.logger.Info("download.start", "rows", t.Len(), "entity", string(entity), "link_only", linkOnly)

	for row, rec := range t.Records {
		id := strings.TrimSpace(rec.Get(idColumn))
		if id == "" {
			s.logger.Info("download.row.skipped_empty_id", "row", row)
			stats.Skipped++
			continue
		}

		raw, err := s.client.Get(ctx, fmt.Sprintf("/download/%s/%s", entity, id), nil)
		if err != nil {
			s.logger.Error("download.link.failed", "row", row, "id", id, "error", err)
			stats.Failed++
			continue
		}

		var link struct {
			URL string `json:"url"`
		}
		if err := apiclient.DecodeData(raw, &link); err != nil || link.URL == "" {
			s.logger.Error("download.link.missing", "row", row, "id", id)
			stats.Failed++
			continue
		}

		rec.Set("download_link", link.URL)
		stats.Linked++

		if linkOnly {
			s.logger.Info("download.link.ok", "row", row, "id", id)
			continue
		}

		if err := s.fetchArchive(ctx, link.URL, targetDir, id); err != nil {
			s.logger.Error("download.fetch.failed", "row", row, "id", id, "error", err)
			stats.Failed++
			continue
		}
		stats.Downloaded++
		s.logger.Info("download.fetch.ok", "row", row, "id", id)
	}

	s.logger.Info("download.done",
		"linked", stats.Linked, "downloaded", stats.Downloaded,
		"skipped", stats.Skipped, "failed", stats.Failed)
	return stats, nil
}

// fetchArchive streams the archive to <dir>/<id><ext>. The extension comes
// from the URL path, then the Content-Type header, then ".bin".
func (s *Service) fetchArchive(ctx context.Context, rawURL, dir, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := s.fetcher.Do(req)
	if err != nil {
		return fmt.Errorf("fetch archive: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("archive fetch status %d", resp.StatusCode)
	}

	ext := ""
	if u, err := url.Parse(rawURL); err == nil {
		ext = path.Ext(u.Path)
	}
	if ext == "" {
		contentType := strings.Split(resp.Header.Get("Content-Type"), ";")[0]
		if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
			ext = exts[0]
		}
	}
	if ext == "" {
		ext = ".bin"
	}

	target := filepath.Join(dir, id+ext)
	f, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}
	_, copyErr := io.Copy(f, resp.Body)
	closeErr := f.Close()
	if copyErr != nil {
		return fmt.Errorf("write %s: %w", target, copyErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close %s: %w", target, closeErr)
	}
	return nil
}
