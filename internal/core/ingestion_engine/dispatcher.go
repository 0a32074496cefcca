package ingestion_engine

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/markdave123-py/docbundle/internal/models"
	"go.uber.org/zap"
)

var _ Ingestor = (*Dispatcher)(nil)

// Dispatcher turns raw file batches into tracked documents and schedules one
// extraction per file on the pool.
type Dispatcher struct {
	store   DocumentStore
	pool    Submitter
	log     *zap.Logger
	metrics *Metrics
}

// NewDispatcher binds a store to a pool handle.
func NewDispatcher(store DocumentStore, pool Submitter, log *zap.Logger, metrics *Metrics) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{store: store, pool: pool, log: log, metrics: metrics}
}

// Ingest commits a pending placeholder for every file, then schedules the
// extractions and returns. The only error it reports is a batch-level one:
// the pool refusing work.
func (d *Dispatcher) Ingest(ctx context.Context, files []models.RawFile, grouped bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(files) == 0 {
		return nil
	}

	batchID := uuid.NewString()
	log := d.log.With(zap.String("batch_id", batchID), zap.Bool("grouped", grouped))

	// Later files win when a batch repeats a key.
	order := make([]string, 0, len(files))
	byKey := make(map[string]models.RawFile, len(files))
	for _, f := range files {
		key := DocumentKey(f, grouped)
		if _, seen := byKey[key]; !seen {
			order = append(order, key)
		}
		byKey[key] = f
	}

	batch := make([]models.Placeholder, 0, len(order))
	for _, key := range order {
		batch = append(batch, models.Placeholder{Key: key, Name: DisplayName(byKey[key])})
	}
	placed := d.store.ApplyPlaceholders(grouped, batch)
	log.Debug("placeholders committed", zap.Int("documents", len(placed)))

	var submitErr error
	for _, doc := range placed {
		if !d.store.MarkLoading(doc.Key, grouped, doc.Version) {
			// A concurrent ingest already replaced this placeholder.
			continue
		}
		req := models.ExtractionRequest{
			Key:     doc.Key,
			Grouped: grouped,
			Version: doc.Version,
			Name:    doc.Name,
			Data:    byKey[doc.Key].Data,
		}
		if submitErr == nil {
			submitErr = d.pool.Submit(req, d.complete)
			if submitErr == nil {
				continue
			}
		}
		d.complete(failure(req, submitErr.Error()))
	}

	if submitErr != nil {
		log.Error("extraction batch rejected", zap.Int("documents", len(placed)), zap.Error(submitErr))
		return fmt.Errorf("ingest batch %s: %w", batchID, submitErr)
	}
	log.Info("extraction batch scheduled", zap.Int("documents", len(placed)))
	return nil
}

// complete merges one response into the store.
func (d *Dispatcher) complete(resp models.ExtractionResponse) {
	if d.store.ApplyCompletion(resp) {
		return
	}
	d.metrics.stale()
	d.log.Debug("discarded stale completion", zap.String("key", resp.Key), zap.Int64("version", resp.Version))
}

// DocumentKey is the relative path for grouped uploads and the bare file name otherwise.
func DocumentKey(f models.RawFile, grouped bool) string {
	if grouped {
		if key := normalizePath(f.RelativePath); key != "" {
			return key
		}
	}
	return baseName(f.Name)
}

// DisplayName is the bare file name shown to the user.
func DisplayName(f models.RawFile) string {
	if f.Name != "" {
		return baseName(f.Name)
	}
	return baseName(f.RelativePath)
}

func baseName(name string) string {
	p := normalizePath(name)
	if p == "" {
		return "untitled"
	}
	return path.Base(p)
}

// normalizePath converts p to a clean, forward-slash relative path.
func normalizePath(p string) string {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	if p == "" {
		return ""
	}
	p = strings.TrimLeft(path.Clean("/"+p), "/")
	if p == "." {
		return ""
	}
	return p
}
