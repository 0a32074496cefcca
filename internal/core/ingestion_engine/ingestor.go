package ingestion_engine

import (
	"context"

	"github.com/markdave123-py/docbundle/internal/models"
)

// Ingestor accepts raw file batches and schedules their extraction.
type Ingestor interface {
	Ingest(ctx context.Context, files []models.RawFile, grouped bool) error
}

// Submitter schedules one extraction request.
type Submitter interface {
	Submit(req models.ExtractionRequest, reply ReplyFunc) error
}

// DocumentStore is the part of the store the dispatcher mutates.
type DocumentStore interface {
	ApplyPlaceholders(grouped bool, batch []models.Placeholder) []models.Document
	MarkLoading(key string, grouped bool, version int64) bool
	ApplyCompletion(resp models.ExtractionResponse) bool
}
