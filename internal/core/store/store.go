package store

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/markdave123-py/docbundle/internal/models"
	"go.uber.org/zap"
)

// ErrDocumentNotFound is returned when a key is not tracked in the requested group.
var ErrDocumentNotFound = errors.New("document not found")

type versionKey struct {
	key     string
	grouped bool
}

// Store is the authoritative, versioned document map of one session.
//
// Writers are serialized by mu and publish a new immutable context through
// current; readers only ever load that pointer.
type Store struct {
	mu        sync.Mutex
	current   atomic.Pointer[models.DocumentContext]
	highWater map[versionKey]int64 // survives Clear
	log       *zap.Logger
}

// New returns an empty store.
func New(log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{highWater: map[versionKey]int64{}, log: log}
	empty := models.NewDocumentContext()
	s.current.Store(&empty)
	return s
}

// update applies fn to the current context and publishes the result when fn reports a change.
func (s *Store) update(fn func(models.DocumentContext) (models.DocumentContext, bool)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, changed := fn(*s.current.Load())
	if changed {
		s.current.Store(&next)
	}
	return changed
}

// ApplyPlaceholders commits a pending placeholder for every entry in one atomic step
// and returns them with their freshly assigned versions.
func (s *Store) ApplyPlaceholders(grouped bool, batch []models.Placeholder) []models.Document {
	var placed []models.Document
	s.update(func(c models.DocumentContext) (models.DocumentContext, bool) {
		versions := make(map[string]int64, len(batch))
		for _, p := range batch {
			vk := versionKey{key: p.Key, grouped: grouped}
			s.highWater[vk]++
			versions[p.Key] = s.highWater[vk]
		}
		var next models.DocumentContext
		next, placed = withPlaceholders(c, grouped, batch, versions)
		return next, len(batch) > 0
	})
	return placed
}

// MarkLoading moves a pending document to loading if version is still current.
func (s *Store) MarkLoading(key string, grouped bool, version int64) bool {
	return s.update(func(c models.DocumentContext) (models.DocumentContext, bool) {
		return withLoading(c, key, grouped, version)
	})
}

// ApplyCompletion merges an extraction response. It reports false, and changes
// nothing, when the response is stale.
func (s *Store) ApplyCompletion(resp models.ExtractionResponse) bool {
	applied := s.update(func(c models.DocumentContext) (models.DocumentContext, bool) {
		return withCompletion(c, resp)
	})
	if applied {
		s.log.Debug("completion applied", zap.String("key", resp.Key), zap.Int64("version", resp.Version), zap.Bool("ok", resp.OK))
	}
	return applied
}

// ToggleSelection flips the selected flag of one document.
func (s *Store) ToggleSelection(key string, grouped bool) error {
	ok := s.update(func(c models.DocumentContext) (models.DocumentContext, bool) {
		return withToggle(c, key, grouped)
	})
	if !ok {
		return ErrDocumentNotFound
	}
	return nil
}

// SetAllSelected selects or deselects every document in one group.
func (s *Store) SetAllSelected(grouped, selected bool) {
	s.update(func(c models.DocumentContext) (models.DocumentContext, bool) {
		return withAllSelected(c, grouped, selected), true
	})
}

// Snapshot returns a point-in-time copy of the whole context.
func (s *Store) Snapshot() models.DocumentContext {
	return s.current.Load().Clone()
}

// Clear drops every document. Version counters are kept so results of tasks
// started before the clear can never match a document uploaded after it.
func (s *Store) Clear() {
	s.update(func(models.DocumentContext) (models.DocumentContext, bool) {
		return models.NewDocumentContext(), true
	})
	s.log.Debug("document context cleared")
}
