// Package flow owns the five-step navigation state of the formatting flow
// and the minimal payload carried between steps. It holds no business logic
// beyond state threading.
package flow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"smartdoc/internal/poll"
	"smartdoc/internal/upload"

	"github.com/rs/zerolog/log"
)

type State string

const (
	StateDashboard  State = "dashboard"
	StateUpload     State = "upload"
	StateGoal       State = "goal"
	StateProcessing State = "processing"
	StateResults    State = "results"
)

var (
	ErrNoActiveJob   = errors.New("no active job")
	ErrBadTransition = errors.New("transition not allowed")
)

// Processor is the slice of the Document API client the shell needs to kick
// off a formatting run.
type Processor interface {
	Process(ctx context.Context, jobID, userGoal string) error
}

// Snapshot is a copy of the shell's externally visible state.
type Snapshot struct {
	State State         `json:"state"`
	Items []upload.Item `json:"items"`
	Goal  string        `json:"goal"`
	JobID string        `json:"job_id"`
	Job   poll.Snapshot `json:"job"`
}

// Shell is the navigation state machine. Exactly one state is active at a
// time; the carried payload changes only through transitions.
type Shell struct {
	mu        sync.Mutex
	state     State
	items     []upload.Item
	goal      string
	jobID     string
	processor Processor
	poller    *poll.Poller
	// onResults fires when the flow lands on the results page, after the
	// poller's grace delay. Optional.
	onResults func(Snapshot)
}

// New creates a shell on the dashboard. The shell owns its poller; the
// fetcher, interval and grace delay are handed straight through to it.
func New(processor Processor, fetcher poll.StatusFetcher, interval, grace time.Duration) *Shell {
	s := &Shell{
		state:     StateDashboard,
		processor: processor,
	}
	s.poller = poll.New(fetcher, interval, grace, poll.Events{
		OnCompleted: s.completeJob,
	})
	return s
}

// OnResults registers a callback for the processing→results transition.
// Must be called before the flow starts.
func (s *Shell) OnResults(fn func(Snapshot)) {
	s.mu.Lock()
	s.onResults = fn
	s.mu.Unlock()
}

// State returns the active state.
func (s *Shell) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns a copy of the full shell view, including the job view.
func (s *Shell) Snapshot() Snapshot {
	job := s.poller.Snapshot()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(job)
}

func (s *Shell) snapshotLocked(job poll.Snapshot) Snapshot {
	items := make([]upload.Item, len(s.items))
	copy(items, s.items)
	return Snapshot{
		State: s.state,
		Items: items,
		Goal:  s.goal,
		JobID: s.jobID,
		Job:   job,
	}
}

// StartUpload moves to the upload step and discards any previous flow
// payload. Allowed from the dashboard and from results (the "format another
// document" reset).
func (s *Shell) StartUpload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateDashboard && s.state != StateResults {
		return fmt.Errorf("%w: %s -> upload", ErrBadTransition, s.state)
	}
	s.poller.Stop()
	s.state = StateUpload
	s.items = nil
	s.goal = ""
	s.jobID = ""
	return nil
}

// FileUploaded records a completed upload and advances to goal selection.
// The first item carrying a server job id becomes the flow's job.
func (s *Shell) FileUploaded(item upload.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateUpload {
		return fmt.Errorf("%w: %s -> goal", ErrBadTransition, s.state)
	}
	s.items = append(s.items, item)
	if s.jobID == "" && item.JobID != "" {
		s.jobID = item.JobID
	}
	s.state = StateGoal
	log.Info().Str("file", item.Name).Str("job_id", item.JobID).Msg("upload recorded, goal selection next")
	return nil
}

// BeginProcessing sends the chosen goal to the backend, starts the status
// poller and moves to the processing step. A failed process request is
// logged but does not block the transition; the poller will surface a job
// that never starts as a stuck or errored status.
func (s *Shell) BeginProcessing(ctx context.Context, goal string) error {
	s.mu.Lock()
	if s.state != StateGoal {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s -> processing", ErrBadTransition, s.state)
	}
	if s.jobID == "" {
		s.mu.Unlock()
		return ErrNoActiveJob
	}
	s.goal = goal
	jobID := s.jobID
	s.state = StateProcessing
	s.mu.Unlock()

	if err := s.processor.Process(ctx, jobID, goal); err != nil {
		log.Warn().Str("job_id", jobID).Err(err).Msg("process request failed")
	}
	s.poller.Start(jobID)
	return nil
}

// completeJob is the poller's completion callback. A completion for a job
// that is no longer the active one is ignored.
func (s *Shell) completeJob(jobID string) {
	job := s.poller.Snapshot()
	s.mu.Lock()
	if s.state != StateProcessing || s.jobID != jobID {
		s.mu.Unlock()
		return
	}
	s.state = StateResults
	snapshot := s.snapshotLocked(job)
	onResults := s.onResults
	s.mu.Unlock()

	log.Info().Str("job_id", jobID).Msg("processing finished, showing results")
	if onResults != nil {
		onResults(snapshot)
	}
}

// JobSnapshot returns the current job view for the processing display.
func (s *Shell) JobSnapshot() poll.Snapshot {
	return s.poller.Snapshot()
}

// ResetToDashboard abandons the current flow from any state, stopping the
// poller so a late response cannot touch a discarded job.
func (s *Shell) ResetToDashboard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.poller.Stop()
	s.state = StateDashboard
	s.items = nil
	s.goal = ""
	s.jobID = ""
}

// Close stops background activity. Used on shutdown.
func (s *Shell) Close() {
	s.poller.Stop()
}
