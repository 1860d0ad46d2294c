package sched

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/chessmirror/chessmirror/internal/cache"
	"github.com/chessmirror/chessmirror/internal/game"
)

// Status is a job's lifecycle state.
type Status int32

const (
	StatusQueued Status = iota
	StatusRunning
	StatusSucceeded
	StatusPartiallySucceeded
	StatusFailed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusRunning:
		return "running"
	case StatusSucceeded:
		return "succeeded"
	case StatusPartiallySucceeded:
		return "partially_succeeded"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions can occur.
func (s Status) Terminal() bool { return s >= StatusSucceeded }

// Request describes a submission: a single game, an explicit batch, or all
// of the owner's stored games.
type Request struct {
	User     string
	Platform string
	GameIDs  []string
	All      bool
	Kind     string
}

// Identity derives the dedup identity for the request.
func (r Request) Identity() game.JobIdentity {
	return game.JobIdentity{
		User:     r.User,
		Platform: r.Platform,
		Target:   fingerprintTarget(r),
		Kind:     r.Kind,
	}
}

// fingerprintTarget hashes the target set so the same batch coalesces
// regardless of id order.
func fingerprintTarget(r Request) string {
	if r.All {
		return cache.Fingerprint(cache.OwnerKey(r.User, r.Platform), "all")
	}
	ids := make([]string, len(r.GameIDs))
	copy(ids, r.GameIDs)
	sort.Strings(ids)
	return cache.Fingerprint(cache.OwnerKey(r.User, r.Platform), ids...)
}

// GameFailure names one game that could not be analyzed and why.
type GameFailure struct {
	GameID string `json:"game_id"`
	Reason string `json:"reason"`
}

// Result is a job's terminal outcome: the games that produced artifacts and
// an explicit list of the ones that failed.
type Result struct {
	Status   Status        `json:"status"`
	Analyzed []string      `json:"analyzed"`
	Failures []GameFailure `json:"failures"`
}

// ErrorSummary renders the failure list for progress reporting. Empty when
// everything succeeded.
func (r Result) ErrorSummary() string {
	if len(r.Failures) == 0 {
		return ""
	}
	parts := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		parts = append(parts, f.GameID+": "+f.Reason)
	}
	return strings.Join(parts, "; ")
}

// Job is one live analysis job. The scheduler owns its lifecycle; workers
// update status and result.
type Job struct {
	id       string
	identity game.JobIdentity
	req      Request

	status    atomic.Int32
	cancelled atomic.Bool
	done      chan struct{}

	mu     sync.Mutex
	result Result
}

func newJob(req Request) *Job {
	return &Job{
		id:       uuid.NewString(),
		identity: req.Identity(),
		req:      req,
		done:     make(chan struct{}),
	}
}

func (j *Job) setStatus(s Status) { j.status.Store(int32(s)) }

// Handle is what submitters hold. Submitting an identical identity while a
// job is live returns a handle to the same job.
type Handle struct {
	job       *Job
	Coalesced bool
}

// ID returns the job's unique id (shared by coalesced handles).
func (h *Handle) ID() string { return h.job.id }

// Identity returns the dedup identity.
func (h *Handle) Identity() game.JobIdentity { return h.job.identity }

// Status returns the current lifecycle state.
func (h *Handle) Status() Status { return Status(h.job.status.Load()) }

// Done is closed when the job reaches a terminal status.
func (h *Handle) Done() <-chan struct{} { return h.job.done }

// Result returns the terminal outcome; valid after Done is closed.
func (h *Handle) Result() Result {
	h.job.mu.Lock()
	defer h.job.mu.Unlock()
	return h.job.result
}
