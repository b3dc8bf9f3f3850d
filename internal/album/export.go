package album

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"floravision/internal/fileutil"
	"floravision/internal/logging"
	"floravision/internal/services"
)

// ExportResult summarizes an export run.
type ExportResult struct {
	Root       string              `json:"root"`
	Total      int                 `json:"total_saved"`
	Categories map[string]int      `json:"categories"`
	Saved      map[string][]string `json:"saved_paths"`
	Skipped    []string            `json:"skipped,omitempty"`
}

// Exporter copies grouped images into an album directory.
type Exporter struct {
	root   string
	logger *slog.Logger
	now    func() time.Time
}

// NewExporter returns an exporter writing below root.
func NewExporter(root string, logger *slog.Logger) *Exporter {
	return &Exporter{
		root:   root,
		logger: logging.NewComponentLogger(logger, "album"),
		now:    time.Now,
	}
}

// Export copies every entry of groups into a fresh timestamped directory.
// Missing source files are skipped and reported; any other copy failure
// aborts the run.
func (x *Exporter) Export(ctx context.Context, groups []Group, mode Mode) (ExportResult, error) {
	root := filepath.Join(x.root, fmt.Sprintf("%s_classification_%s", mode, x.now().Format("20060102_150405")))
	root = fileutil.UniquePath(root)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return ExportResult{}, services.Wrap(services.ErrFileAccess, "album", "create export root", root, err)
	}

	result := ExportResult{
		Root:       root,
		Categories: make(map[string]int, len(groups)),
		Saved:      make(map[string][]string, len(groups)),
	}
	for _, group := range groups {
		dir := filepath.Join(root, fileutil.SafeName(group.Name))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return result, services.Wrap(services.ErrFileAccess, "album", "create group directory", dir, err)
		}
		for _, entry := range group.Entries {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			dst := fileutil.UniquePath(filepath.Join(dir, filepath.Base(entry.Path)))
			err := fileutil.CopyFileVerified(entry.Path, dst)
			if errors.Is(err, os.ErrNotExist) {
				result.Skipped = append(result.Skipped, entry.Path)
				logging.WarnWithContext(x.logger, "album source missing", "album_source_missing",
					logging.String(logging.FieldImagePath, entry.Path),
					logging.String(logging.FieldImpact, "image left out of the export"),
					logging.String(logging.FieldErrorHint, "re-run enrichment after moving files"),
				)
				continue
			}
			if err != nil {
				return result, services.Wrap(services.ErrFileAccess, "album", "copy image", entry.Path, err)
			}
			result.Categories[group.Name]++
			result.Saved[group.Name] = append(result.Saved[group.Name], dst)
			result.Total++
		}
	}

	x.logger.Info("album exported",
		logging.String("root", root),
		logging.String("mode", string(mode)),
		logging.Int("groups", len(groups)),
		logging.Int("saved", result.Total),
		logging.Int("skipped", len(result.Skipped)),
	)
	return result, nil
}
