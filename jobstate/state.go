// Package jobstate holds the state shared between the job coordinator and the
// inference worker: the activity flag, the three-stage progress vector, and a
// single-slot mailbox in each direction.
//
// Every mutation of the flag and the progress vector happens under one mutex that is
// never held across a blocking operation. Mailbox sends made under the mutex are
// non-blocking. The worker's NextJob is the only blocking wait.
package jobstate

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrInferencing is returned by Accept while a job is in flight.
	ErrInferencing = errors.New("jobstate: a job is in flight")
	// ErrBlocked is returned by Accept while a result awaits collection.
	ErrBlocked = errors.New("jobstate: previous result not collected")
	// ErrNoJob is returned by NextJob when the wait times out.
	ErrNoJob = errors.New("jobstate: no job available")
	// ErrMailboxFull is returned when a single-slot mailbox is unexpectedly occupied.
	ErrMailboxFull = errors.New("jobstate: mailbox occupied")
)

// State is safe for concurrent use by one worker and any number of request handlers.
type State struct {
	mu       sync.Mutex
	active   bool
	progress ProgressVector
	ceilings ProgressVector

	requests chan *Job
	results  chan *Result
}

// New returns an idle state with empty mailboxes.
func New() *State {
	return &State{
		requests: make(chan *Job, 1),
		results:  make(chan *Result, 1),
	}
}

// Active reports whether a job is in flight.
func (s *State) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Progress returns a snapshot of the progress vector.
func (s *State) Progress() ProgressVector {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// ResultPending reports whether an undelivered result occupies the result mailbox.
func (s *State) ResultPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results) > 0
}

// Accept admits a job when no job is in flight and no result is pending. The
// progress reset, flag set, and request handoff happen in one critical section.
func (s *State) Accept(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		return ErrInferencing
	}
	if len(s.results) > 0 {
		return ErrBlocked
	}

	select {
	case s.requests <- job:
	default:
		return ErrMailboxFull
	}

	s.progress = ProgressVector{}
	s.ceilings = job.Ceilings()
	s.active = true
	return nil
}

// NextJob waits up to timeout for a job. It returns ErrNoJob on timeout and the
// context error on cancellation.
func (s *State) NextJob(ctx context.Context, timeout time.Duration) (*Job, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case job := <-s.requests:
		return job, nil
	case <-timer.C:
		return nil, ErrNoJob
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// MarkActive sets the activity flag. The worker calls it on dequeue.
func (s *State) MarkActive() {
	s.mu.Lock()
	s.active = true
	s.mu.Unlock()
}

// Advance records that completed steps of stage are done. Progress never moves
// backwards and never exceeds the stage's step count for the current job.
func (s *State) Advance(stage, completed int) {
	if stage < 0 || stage >= StageCount {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if completed > s.ceilings[stage] {
		completed = s.ceilings[stage]
	}
	if completed > s.progress[stage] {
		s.progress[stage] = completed
	}
}

// Complete deposits the result and clears the activity flag together, so no new
// job can be admitted between the two.
func (s *State) Complete(result *Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active = false
	select {
	case s.results <- result:
		return nil
	default:
		return ErrMailboxFull
	}
}

// Fail clears the activity flag without depositing a result.
func (s *State) Fail() {
	s.mu.Lock()
	s.active = false
	s.mu.Unlock()
}

// TakeResult pops the pending result without blocking.
func (s *State) TakeResult() (*Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case r := <-s.results:
		return r, true
	default:
		return nil, false
	}
}

// Drain discards an undelivered result and reports whether one was present.
func (s *State) Drain() bool {
	_, ok := s.TakeResult()
	return ok
}
