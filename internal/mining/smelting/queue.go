package smelting

import (
	"fmt"
	"sync"
)

// Kind is what a furnace job produces.
type Kind string

const (
	KindSmelt     Kind = "smelt"
	KindCharcoal  Kind = "charcoal"
	KindDriedKelp Kind = "dried_kelp"
	// KindKelpBlock is crafted at a table rather than smelted.
	KindKelpBlock Kind = "kelp_block"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Job is one furnace (or kelp block) request.
type Job struct {
	ID     int    `json:"id"`
	Kind   Kind   `json:"kind"`
	Input  string `json:"input"`
	Amount int    `json:"amount"`
	Status Status `json:"status"`
	Result int    `json:"result"`
	Reason string `json:"reason,omitempty"`
}

func (j Job) String() string {
	return fmt.Sprintf("#%d %s %dx%s", j.ID, j.Kind, j.Amount, j.Input)
}

// Queue holds jobs in arrival order and runs at most one at a time.
type Queue struct {
	mu     sync.Mutex
	jobs   []*Job
	nextID int
}

// Enqueue appends a job as pending and assigns its ID.
func (q *Queue) Enqueue(j *Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nextID++
	j.ID = q.nextID
	j.Status = StatusPending
	j.Result, j.Reason = 0, ""
	q.jobs = append(q.jobs, j)
}

// Start marks the oldest pending job running. It returns false while another job runs
// or when nothing is pending.
func (q *Queue) Start() (*Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, j := range q.jobs {
		if j.Status == StatusRunning {
			return nil, false
		}
	}
	for _, j := range q.jobs {
		if j.Status == StatusPending {
			j.Status = StatusRunning
			return j, true
		}
	}
	return nil, false
}

// Finish records the outcome of a running job.
func (q *Queue) Finish(j *Job, status Status, result int, reason string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	j.Status, j.Result, j.Reason = status, result, reason
}

// Pending counts jobs not yet started.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, j := range q.jobs {
		if j.Status == StatusPending {
			n++
		}
	}
	return n
}

// Snapshot copies every job seen so far, oldest first.
func (q *Queue) Snapshot() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Job, 0, len(q.jobs))
	for _, j := range q.jobs {
		out = append(out, *j)
	}
	return out
}
