// Package job owns the generation job lifecycle: the in-memory job table,
// the state machine, and the orchestrator that schedules generation and
// post-processing work onto a bounded worker pool.
package job

import "time"

// Status is the lifecycle state of a job. PENDING and PROCESSING are the
// only non-terminal states.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ArtifactRef points at one derived artifact of a variant.
type ArtifactRef struct {
	// Size is the square pixel size for icon artifacts, zero otherwise.
	Size int `json:"size,omitempty"`
	// Label is the nominal label for non-square artifacts.
	Label    string `json:"label,omitempty"`
	Filename string `json:"filename"`
	Key      string `json:"key"`
}

// Variant is one logical generated image and its derived artifacts. Variants
// are numbered 1-based in backend output order and are immutable once
// recorded.
type Variant struct {
	Number      int           `json:"variant_number"`
	OriginalKey string        `json:"original_key"`
	Artifacts   []ArtifactRef `json:"artifacts"`
}

// Snapshot is a read-only copy of a job's state. The orchestrator exclusively
// owns and mutates the underlying job; callers only ever see snapshots.
type Snapshot struct {
	ID          string
	Request     GenerationRequest
	Status      Status
	Progress    int
	Message     string
	CreatedAt   time.Time
	CompletedAt *time.Time
	Variants    []Variant
	Error       string
	Metadata    map[string]any
}

// job is the mutable record guarded by the store lock.
type job struct {
	id          string
	request     GenerationRequest
	status      Status
	progress    int
	message     string
	createdAt   time.Time
	completedAt *time.Time
	variants    []Variant
	err         string
	metadata    map[string]any
}

func (j *job) snapshot() Snapshot {
	snap := Snapshot{
		ID:        j.id,
		Request:   j.request,
		Status:    j.status,
		Progress:  j.progress,
		Message:   j.message,
		CreatedAt: j.createdAt,
		Error:     j.err,
	}
	if j.completedAt != nil {
		t := *j.completedAt
		snap.CompletedAt = &t
	}
	if len(j.variants) > 0 {
		snap.Variants = make([]Variant, len(j.variants))
		for i, v := range j.variants {
			v.Artifacts = append([]ArtifactRef(nil), v.Artifacts...)
			snap.Variants[i] = v
		}
	}
	if len(j.metadata) > 0 {
		snap.Metadata = make(map[string]any, len(j.metadata))
		for k, v := range j.metadata {
			snap.Metadata[k] = v
		}
	}
	return snap
}
