package job

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is the in-memory job table. All reads and writes go through a single
// lock so a reader can never observe a torn update.
type Store struct {
	mu   sync.Mutex
	jobs map[string]*job
	now  func() time.Time
}

// NewStore builds an empty job table.
func NewStore() *Store {
	return &Store{jobs: make(map[string]*job), now: time.Now}
}

// Create registers a new job in PENDING with progress zero.
func (s *Store) Create(req GenerationRequest) Snapshot {
	j := &job{
		id:        uuid.NewString(),
		request:   req,
		status:    StatusPending,
		message:   "Job queued",
		createdAt: s.now(),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[j.id] = j
	return j.snapshot()
}

// Get returns a snapshot of the job, if it exists.
func (s *Store) Get(id string) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return Snapshot{}, false
	}
	return j.snapshot(), true
}

// List returns snapshots of the most recent jobs, newest first.
func (s *Store) List(limit int) []Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snaps := make([]Snapshot, 0, len(s.jobs))
	for _, j := range s.jobs {
		snaps = append(snaps, j.snapshot())
	}
	sort.Slice(snaps, func(a, b int) bool {
		return snaps[a].CreatedAt.After(snaps[b].CreatedAt)
	})
	if limit > 0 && len(snaps) > limit {
		snaps = snaps[:limit]
	}
	return snaps
}

// Sweep removes terminal jobs whose completion time is older than maxAge.
// PENDING and PROCESSING jobs are never swept. Returns the number removed.
func (s *Store) Sweep(maxAge time.Duration) int {
	cutoff := s.now().Add(-maxAge)
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, j := range s.jobs {
		if !j.status.Terminal() || j.completedAt == nil {
			continue
		}
		if j.completedAt.Before(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed
}

// markProcessing transitions the job to PROCESSING at the start of actual
// execution.
func (s *Store) markProcessing(id string, progress int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.status.Terminal() {
		return
	}
	j.status = StatusProcessing
	if progress > j.progress {
		j.progress = progress
	}
	j.message = message
}

// setProgress records an advisory progress milestone. Progress is monotonic
// for a job's non-terminal lifetime; lower values are ignored.
func (s *Store) setProgress(id string, progress int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.status.Terminal() {
		return
	}
	if progress > j.progress {
		j.progress = progress
	}
	j.message = message
}

// complete transitions the job to COMPLETED. The completion timestamp is set
// exactly once; a job already terminal is left untouched.
func (s *Store) complete(id string, variants []Variant, metadata map[string]any, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.status.Terminal() {
		return
	}
	now := s.now()
	j.status = StatusCompleted
	j.progress = 100
	j.message = message
	j.variants = variants
	j.metadata = metadata
	j.completedAt = &now
}

// fail transitions the job to FAILED, resetting progress and recording the
// cause. The completion timestamp is set exactly once.
func (s *Store) fail(id string, cause string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.status.Terminal() {
		return
	}
	now := s.now()
	j.status = StatusFailed
	j.progress = 0
	j.message = "Generation failed"
	j.err = cause
	j.completedAt = &now
}
