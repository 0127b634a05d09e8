package flow

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"smartdoc/internal/upload"
)

type fakeProcessor struct {
	mu     sync.Mutex
	calls  []string
	goals  []string
	result error
}

func (f *fakeProcessor) Process(_ context.Context, jobID, goal string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, jobID)
	f.goals = append(f.goals, goal)
	return f.result
}

type sequenceFetcher struct {
	mu       sync.Mutex
	sequence []string
	index    int
}

func (f *sequenceFetcher) Status(context.Context, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index >= len(f.sequence) {
		return f.sequence[len(f.sequence)-1], nil
	}
	status := f.sequence[f.index]
	f.index++
	return status, nil
}

func completedItem(jobID string) upload.Item {
	return upload.Item{
		ID:       "item-1",
		Name:     "report.docx",
		Size:     2 << 20,
		Progress: 100,
		Status:   upload.StatusCompleted,
		JobID:    jobID,
	}
}

func TestHappyPathTransitions(t *testing.T) {
	processor := &fakeProcessor{}
	fetcher := &sequenceFetcher{sequence: []string{"analyzing", "processing", "completed"}}
	shell := New(processor, fetcher, 5*time.Millisecond, 10*time.Millisecond)
	defer shell.Close()

	var results int32
	shell.OnResults(func(s Snapshot) {
		if s.State != StateResults || s.JobID != "abc123" {
			t.Errorf("unexpected results snapshot: %+v", s)
		}
		atomic.AddInt32(&results, 1)
	})

	if shell.State() != StateDashboard {
		t.Fatalf("expected dashboard start, got %s", shell.State())
	}
	if err := shell.StartUpload(); err != nil {
		t.Fatalf("start upload: %v", err)
	}
	if err := shell.FileUploaded(completedItem("abc123")); err != nil {
		t.Fatalf("file uploaded: %v", err)
	}
	if shell.State() != StateGoal {
		t.Fatalf("expected goal state, got %s", shell.State())
	}
	if err := shell.BeginProcessing(context.Background(), "make it consistent"); err != nil {
		t.Fatalf("begin processing: %v", err)
	}
	if shell.State() != StateProcessing {
		t.Fatalf("expected processing state, got %s", shell.State())
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && shell.State() != StateResults {
		time.Sleep(2 * time.Millisecond)
	}
	if shell.State() != StateResults {
		t.Fatalf("expected results state, got %s", shell.State())
	}
	if atomic.LoadInt32(&results) != 1 {
		t.Fatalf("expected one results callback, got %d", results)
	}

	processor.mu.Lock()
	defer processor.mu.Unlock()
	if len(processor.calls) != 1 || processor.calls[0] != "abc123" || processor.goals[0] != "make it consistent" {
		t.Fatalf("unexpected process calls: %v %v", processor.calls, processor.goals)
	}
}

func TestIllegalTransitionsRejected(t *testing.T) {
	shell := New(&fakeProcessor{}, &sequenceFetcher{sequence: []string{"analyzing"}}, time.Hour, time.Millisecond)
	defer shell.Close()

	if err := shell.FileUploaded(completedItem("j")); !errors.Is(err, ErrBadTransition) {
		t.Fatalf("expected ErrBadTransition from dashboard, got %v", err)
	}
	if err := shell.BeginProcessing(context.Background(), "goal"); !errors.Is(err, ErrBadTransition) {
		t.Fatalf("expected ErrBadTransition from dashboard, got %v", err)
	}
	if err := shell.StartUpload(); err != nil {
		t.Fatalf("start upload: %v", err)
	}
	// upload -> upload is not a legal re-entry
	if err := shell.StartUpload(); !errors.Is(err, ErrBadTransition) {
		t.Fatalf("expected ErrBadTransition for upload -> upload, got %v", err)
	}
}

func TestBeginProcessingRequiresJobID(t *testing.T) {
	shell := New(&fakeProcessor{}, &sequenceFetcher{sequence: []string{"analyzing"}}, time.Hour, time.Millisecond)
	defer shell.Close()

	if err := shell.StartUpload(); err != nil {
		t.Fatalf("start upload: %v", err)
	}
	item := completedItem("")
	if err := shell.FileUploaded(item); err != nil {
		t.Fatalf("file uploaded: %v", err)
	}
	if err := shell.BeginProcessing(context.Background(), "goal"); !errors.Is(err, ErrNoActiveJob) {
		t.Fatalf("expected ErrNoActiveJob, got %v", err)
	}
}

func TestProcessFailureDoesNotBlockTransition(t *testing.T) {
	processor := &fakeProcessor{result: errors.New("backend unavailable")}
	shell := New(processor, &sequenceFetcher{sequence: []string{"analyzing"}}, time.Hour, time.Millisecond)
	defer shell.Close()

	_ = shell.StartUpload()
	_ = shell.FileUploaded(completedItem("abc123"))
	if err := shell.BeginProcessing(context.Background(), "goal"); err != nil {
		t.Fatalf("expected transition despite process failure, got %v", err)
	}
	if shell.State() != StateProcessing {
		t.Fatalf("expected processing state, got %s", shell.State())
	}
}

func TestResetDiscardsJob(t *testing.T) {
	shell := New(&fakeProcessor{}, &sequenceFetcher{sequence: []string{"analyzing"}}, time.Hour, time.Millisecond)
	defer shell.Close()

	_ = shell.StartUpload()
	_ = shell.FileUploaded(completedItem("abc123"))
	_ = shell.BeginProcessing(context.Background(), "goal")

	shell.ResetToDashboard()
	snap := shell.Snapshot()
	if snap.State != StateDashboard || snap.JobID != "" || len(snap.Items) != 0 || snap.Goal != "" {
		t.Fatalf("expected clean dashboard state, got %+v", snap)
	}
}

func TestStaleCompletionIgnored(t *testing.T) {
	shell := New(&fakeProcessor{}, &sequenceFetcher{sequence: []string{"analyzing"}}, time.Hour, time.Millisecond)
	defer shell.Close()

	_ = shell.StartUpload()
	_ = shell.FileUploaded(completedItem("abc123"))
	_ = shell.BeginProcessing(context.Background(), "goal")

	// completion for a job that is not the active one must not move the flow
	shell.completeJob("other-job")
	if shell.State() != StateProcessing {
		t.Fatalf("expected processing state preserved, got %s", shell.State())
	}
}
