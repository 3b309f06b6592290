package scheduler

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Job is a live pending timer for one post. It exists only in this process.
type Job struct {
	PostID string
	Target time.Time
	timer  clockwork.Timer

	once   sync.Once
	onDone func()
}

// finish runs onDone once, whether the timer was stopped or fired.
func (j *Job) finish() {
	if j.onDone != nil {
		j.once.Do(j.onDone)
	}
}

// stop stops the timer and reports whether it was stopped before firing.
func (j *Job) stop() bool {
	if j.timer.Stop() {
		j.finish()
		return true
	}
	return false
}

// Registry tracks at most one Job per post id.
type Registry struct {
	mu   sync.Mutex
	jobs map[string]*Job
}

func NewRegistry() *Registry {
	return &Registry{jobs: map[string]*Job{}}
}

// Register stores job under its post id, stopping any Job it replaces.
func (r *Registry) Register(job *Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.jobs[job.PostID]; ok && old != job {
		old.stop()
	}
	r.jobs[job.PostID] = job
}

// Cancel stops and removes the Job for postID. It reports whether a Job was
// present and whether its timer was stopped before firing.
func (r *Registry) Cancel(postID string) (found, stopped bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[postID]
	if !ok {
		return false, false
	}
	delete(r.jobs, postID)
	return true, job.stop()
}

// Release removes job once it has fired. A newer Job registered for the same
// post in the meantime is left in place.
func (r *Registry) Release(job *Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.jobs[job.PostID]; ok && cur == job {
		delete(r.jobs, job.PostID)
	}
}

func (r *Registry) Has(postID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.jobs[postID]
	return ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// StopAll stops every pending timer and empties the registry.
func (r *Registry) StopAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, job := range r.jobs {
		if job.stop() {
			n++
		}
		delete(r.jobs, id)
	}
	return n
}
