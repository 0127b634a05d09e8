// Package poll translates asynchronous backend job progress into a stable
// local view suitable for a progress display. The caller never manages
// timers; Start and Stop are the whole surface.
package poll

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// StatusFetcher is the slice of the Document API client the poller needs.
type StatusFetcher interface {
	Status(ctx context.Context, jobID string) (string, error)
}

// Events are the poller's outbound callbacks. Both are optional. OnUpdate
// fires after every applied tick with a snapshot copy; OnCompleted fires
// exactly once per completed job, after the grace delay, with polling
// already stopped.
type Events struct {
	OnUpdate    func(Snapshot)
	OnCompleted func(jobID string)
}

// Poller polls one job at a time. Starting a new job or calling Stop
// invalidates the previous generation: responses and timers belonging to a
// stale generation are discarded, never applied.
type Poller struct {
	fetcher  StatusFetcher
	interval time.Duration
	grace    time.Duration
	events   Events

	mu       sync.Mutex
	gen      uint64
	cancel   context.CancelFunc
	snapshot Snapshot
}

// New creates a poller. Interval is the tick period, grace the delay between
// observing "completed" and invoking OnCompleted.
func New(fetcher StatusFetcher, interval, grace time.Duration, events Events) *Poller {
	return &Poller{
		fetcher:  fetcher,
		interval: interval,
		grace:    grace,
		events:   events,
	}
}

// Start begins polling the given job. Any previous polling generation is
// cancelled first, so a lingering response for an old job can never touch
// the new state.
func (p *Poller) Start(jobID string) {
	ctx, cancel := context.WithCancel(context.Background())

	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.gen++
	myGen := p.gen
	p.cancel = cancel
	p.snapshot = newSnapshot(jobID)
	p.mu.Unlock()

	log.Info().Str("job_id", jobID).Msg("status polling started")
	go p.loop(ctx, myGen, jobID)
}

// Stop cancels polling and any pending completion callback. Safe to call
// repeatedly and when nothing is running.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.gen++
}

// Snapshot returns a copy of the current job view.
func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.snapshot
	out.Steps = make([]Step, len(p.snapshot.Steps))
	copy(out.Steps, p.snapshot.Steps)
	return out
}

func (p *Poller) loop(ctx context.Context, myGen uint64, jobID string) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status, err := p.fetcher.Status(ctx, jobID)
			if !p.applyTick(myGen, jobID, status, err) {
				return
			}
		}
	}
}

// applyTick applies one poll result under the generation guard. It returns
// false when the loop should stop: stale generation or terminal status.
func (p *Poller) applyTick(myGen uint64, jobID string, status string, fetchErr error) bool {
	p.mu.Lock()
	if myGen != p.gen {
		// stale response: a newer Start or a Stop superseded this generation
		p.mu.Unlock()
		return false
	}
	if p.snapshot.Terminal() {
		p.mu.Unlock()
		return false
	}

	if fetchErr != nil {
		// transient tick failure: narrate it, keep polling
		p.snapshot.Reasoning = "Status check failed, retrying: " + fetchErr.Error()
		snapshot := p.copySnapshotLocked()
		p.mu.Unlock()
		log.Warn().Str("job_id", jobID).Err(fetchErr).Msg("status poll failed, continuing")
		p.notifyUpdate(snapshot)
		return true
	}

	p.snapshot = applyStatus(p.snapshot, status)
	snapshot := p.copySnapshotLocked()
	completed := p.snapshot.Completed
	failed := p.snapshot.Failed
	p.mu.Unlock()

	p.notifyUpdate(snapshot)

	switch {
	case completed:
		log.Info().Str("job_id", jobID).Msg("job completed, scheduling results transition")
		time.AfterFunc(p.grace, func() {
			p.mu.Lock()
			stale := myGen != p.gen
			p.mu.Unlock()
			if stale {
				return
			}
			if p.events.OnCompleted != nil {
				p.events.OnCompleted(jobID)
			}
		})
		return false
	case failed:
		log.Warn().Str("job_id", jobID).Msg("job reported error, polling stopped")
		return false
	}
	return true
}

func (p *Poller) copySnapshotLocked() Snapshot {
	out := p.snapshot
	out.Steps = make([]Step, len(p.snapshot.Steps))
	copy(out.Steps, p.snapshot.Steps)
	return out
}

func (p *Poller) notifyUpdate(s Snapshot) {
	if p.events.OnUpdate != nil {
		p.events.OnUpdate(s)
	}
}
