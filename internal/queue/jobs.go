package queue

import (
	"sync"
	"time"

	"github.com/bestfriendai/video-processing/internal/pipeline"
)

// Job status constants.
const (
	StatusQueued     = "QUEUED"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// Job kind constants: local runs the on-device pipeline on this host,
// remote hands the work to the server-side transform.
const (
	KindLocal  = "local"
	KindRemote = "remote"
)

// Job is one queued video transform request.
type Job struct {
	ID          string
	Name        string
	Kind        string
	SourcePath  string
	Options     pipeline.Options
	Status      string
	Error       string
	OutputPath  string
	Transcript  string
	Thumbnail   string
	CreatedAt   time.Time
	CompletedAt time.Time
}

// NewJob creates a queued job.
func NewJob(id, name, kind, sourcePath string, opts pipeline.Options) *Job {
	return &Job{
		ID:         id,
		Name:       name,
		Kind:       kind,
		SourcePath: sourcePath,
		Options:    opts,
		Status:     StatusQueued,
		CreatedAt:  time.Now(),
	}
}

// registry tracks jobs by ID for status queries while they move through the
// queue. Snapshots copy the job so readers never observe a worker's writes.
type registry struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func newRegistry() *registry {
	return &registry{jobs: make(map[string]*Job)}
}

func (r *registry) add(job *Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = job
}

// snapshot returns a copy of the job, or false if unknown.
func (r *registry) snapshot(id string) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// update applies a mutation under the registry lock.
func (r *registry) update(id string, fn func(*Job)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[id]; ok {
		fn(job)
	}
}
