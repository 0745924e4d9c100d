package index

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store publishes index versions atomically. The active version swaps
// wholesale; superseded versions are retained until every reader that
// acquired them releases.
type Store struct {
	active atomic.Pointer[Version]

	mu       sync.Mutex
	retained map[uuid.UUID]*Version

	logger *zap.Logger
}

func NewStore(logger *zap.Logger) *Store {
	return &Store{
		retained: make(map[uuid.UUID]*Version),
		logger:   logger.Named("index-store"),
	}
}

// Publish makes version the active index. The previous version stays
// retained while in-flight readers still hold it.
func (s *Store) Publish(version *Version) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.active.Swap(version)
	s.retained[version.id] = version

	if old != nil && old.refs.Load() == 0 {
		delete(s.retained, old.id)
	}

	s.logger.Info("index version published",
		zap.String("version_id", version.id.String()),
		zap.String("schema_version", string(version.schemaVersion)),
		zap.Int("entries", version.Len()))
}

// Acquire returns the active version pinned for the caller. Returns
// nil when nothing has been published. Callers must Release.
func (s *Store) Acquire() *Version {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.active.Load()
	if v == nil {
		return nil
	}
	v.refs.Add(1)
	return v
}

// Release unpins a version acquired earlier. A superseded version with
// no remaining readers is dropped.
func (s *Store) Release(v *Version) {
	if v == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if v.refs.Add(-1) > 0 {
		return
	}
	if s.active.Load() != v {
		delete(s.retained, v.id)
	}
}

// Active returns the active version without pinning it. For
// observability only; retrieval goes through Acquire/Release.
func (s *Store) Active() *Version {
	return s.active.Load()
}

// RetainedCount reports how many versions the store currently holds.
func (s *Store) RetainedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.retained)
}
