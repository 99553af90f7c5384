// Package ingest orchestrates month-by-month backfill of season data
// into the history store.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"pennant/internal/errors"
	"pennant/internal/logging"
	"pennant/internal/model"
)

// Producer supplies one IngestionBatch per (year, month). It is the
// opaque upstream boundary: the scraper or feed behind it is not the
// ingestion core's concern. An empty batch is a valid response for a
// period with no data.
type Producer interface {
	FetchMonth(ctx context.Context, year, month int) (*model.IngestionBatch, error)
}

// FileProducer reads per-month JSON drops from a source directory laid
// out as <dir>/<year>/<mm>.json, the shape the scrape pipeline writes.
type FileProducer struct {
	dir    string
	logger *logging.Logger
}

// NewFileProducer creates a producer over a drop directory.
func NewFileProducer(dir string, logger *logging.Logger) *FileProducer {
	return &FileProducer{dir: dir, logger: logger}
}

// FetchMonth implements Producer. A missing drop file is an empty batch,
// not an error.
func (p *FileProducer) FetchMonth(ctx context.Context, year, month int) (*model.IngestionBatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := filepath.Join(p.dir, fmt.Sprintf("%04d", year), fmt.Sprintf("%02d.json", month))
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		p.logger.Debug("no drop file for period", map[string]interface{}{
			"year":  year,
			"month": month,
		})
		return &model.IngestionBatch{Year: year, Month: month}, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.IngestionSourceError,
			fmt.Sprintf("read drop for %04d-%02d", year, month), err)
	}

	var batch model.IngestionBatch
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, errors.Wrap(errors.IngestionSourceError,
			fmt.Sprintf("parse drop for %04d-%02d", year, month), err)
	}
	batch.Year = year
	batch.Month = month
	return &batch, nil
}
