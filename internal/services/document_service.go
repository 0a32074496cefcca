package services

import (
	"context"

	"github.com/markdave123-py/docbundle/internal/core/ingestion_engine"
	"github.com/markdave123-py/docbundle/internal/core/serializer"
	"github.com/markdave123-py/docbundle/internal/core/store"
	"github.com/markdave123-py/docbundle/internal/models"
	"go.uber.org/zap"
)

// EmptySelection replaces the document context in exports when nothing is selected.
const EmptySelection = "No documents selected"

// Session is one user's working set of documents.
type Session struct {
	ID         string
	store      *store.Store
	dispatcher *ingestion_engine.Dispatcher
}

// NewSession binds a fresh store to the shared pool handle.
func NewSession(id string, pool ingestion_engine.Submitter, log *zap.Logger, metrics *ingestion_engine.Metrics) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("session_id", id))
	st := store.New(log.Named("store"))
	return &Session{
		ID:         id,
		store:      st,
		dispatcher: ingestion_engine.NewDispatcher(st, pool, log.Named("dispatcher"), metrics),
	}
}

func (s *Session) Ingest(ctx context.Context, files []models.RawFile, grouped bool) error {
	return s.dispatcher.Ingest(ctx, files, grouped)
}

func (s *Session) Toggle(key string, grouped bool) error {
	return s.store.ToggleSelection(key, grouped)
}

func (s *Session) SelectAll(grouped, selected bool) {
	s.store.SetAllSelected(grouped, selected)
}

func (s *Session) Snapshot() models.DocumentContext {
	return s.store.Snapshot()
}

func (s *Session) Clear() {
	s.store.Clear()
}

// Render serializes the current selection.
func (s *Session) Render(instructions string) models.FinalOutput {
	return serializer.Render(s.store.Snapshot(), instructions)
}

// Export is the clipboard form: context and instructions separated by a blank line.
func (s *Session) Export(instructions string) string {
	snap := s.store.Snapshot()
	out := serializer.Render(snap, instructions)
	if serializer.SelectedCount(snap) == 0 {
		out.DocumentContext = EmptySelection
	}
	return out.DocumentContext + "\n\n" + out.UserInstructions
}
