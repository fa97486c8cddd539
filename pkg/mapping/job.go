package mapping

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the Job lifecycle state, spec §3.
type Status string

const (
	StatusPending Status = "Pending"
	StatusDone    Status = "Done"
)

// SentKey identifies one dispatched Task by (task id, path), per spec §3's
// Job.sent set.
type SentKey struct {
	TaskID string
	Path   string
}

// Job is the user-submitted glob expansion plus the aggregate mapping
// produced from it, per spec §3. It is exclusively owned by the
// orchestrator's reconciler once it enters the processing set; before that
// it flows through queues by value (a pointer here, since Go channels copy
// the pointer, not the Store it references — the Store's own mutex
// serializes concurrent access, per spec §9's "no back-pointers" note).
type Job struct {
	ID             string
	RemainingPaths []string
	Status         Status
	Mapping        *Store
	StartedAt      time.Time
	CompletedAt    time.Time

	mu        sync.Mutex
	sent      map[SentKey]struct{}
	processed []Task
}

// NewJob materializes a fresh Job from a glob expansion, per spec §4.6
// step 2: new UUID, empty mapping, status Pending.
func NewJob(paths []string) *Job {
	return &Job{
		ID:             uuid.NewString(),
		RemainingPaths: paths,
		Status:         StatusPending,
		Mapping:        New(),
		StartedAt:      time.Now(),
		sent:           make(map[SentKey]struct{}),
	}
}

// MarkSent records that a Task was handed to the pool.
func (j *Job) MarkSent(taskID, path string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.sent[SentKey{TaskID: taskID, Path: path}] = struct{}{}
}

// RecordCompletion appends t to processed and reports whether the job is
// now Done: |processed| == |sent| > 0, per spec §3/§4.6's state machine.
// It is a no-op (and returns false) if t is not a key the Job's sent set
// recognizes, or if the Job already transitioned to Done.
func (j *Job) RecordCompletion(t Task) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Status == StatusDone {
		return false
	}
	key := SentKey{TaskID: t.ID, Path: t.Path}
	if _, ok := j.sent[key]; !ok {
		return false
	}
	j.processed = append(j.processed, t)
	if len(j.sent) > 0 && len(j.processed) == len(j.sent) {
		j.Status = StatusDone
		j.CompletedAt = time.Now()
		return true
	}
	return false
}

// SentCount and ProcessedCount expose the reconciler's bookkeeping for
// tests and logging.
func (j *Job) SentCount() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.sent)
}

func (j *Job) ProcessedCount() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.processed)
}

func (j *Job) Processed() []Task {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Task, len(j.processed))
	copy(out, j.processed)
	return out
}

// jobSnapshot is the wire shape of mappings.json, per spec §6.
type jobSnapshot struct {
	ID          string           `json:"id"`
	Paths       []string         `json:"paths"`
	Status      Status           `json:"status"`
	Sent        [][2]string      `json:"sent"`
	Mapping     *Store           `json:"mapping"`
	Completed   time.Time        `json:"completed"`
}

// MarshalJSON renders the Job for <upload_dir>/<job_id>/mappings.json.
func (j *Job) MarshalJSON() ([]byte, error) {
	j.mu.Lock()
	sent := make([][2]string, 0, len(j.sent))
	for k := range j.sent {
		sent = append(sent, [2]string{k.TaskID, k.Path})
	}
	j.mu.Unlock()

	return json.Marshal(jobSnapshot{
		ID:        j.ID,
		Paths:     j.RemainingPaths,
		Status:    j.Status,
		Sent:      sent,
		Mapping:   j.Mapping,
		Completed: j.CompletedAt,
	})
}

// UnmarshalJSON loads a Job back from a persisted mappings.json (used by
// the ingress converter's Ship trigger).
func (j *Job) UnmarshalJSON(data []byte) error {
	var snap jobSnapshot
	snap.Mapping = New()
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	j.ID = snap.ID
	j.RemainingPaths = snap.Paths
	j.Status = snap.Status
	j.Mapping = snap.Mapping
	j.CompletedAt = snap.Completed
	j.sent = make(map[SentKey]struct{}, len(snap.Sent))
	for _, pair := range snap.Sent {
		j.sent[SentKey{TaskID: pair[0], Path: pair[1]}] = struct{}{}
	}
	return nil
}
