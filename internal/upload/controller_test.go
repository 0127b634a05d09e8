package upload

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"smartdoc/internal/docapi"
)

// fakeUploader lets tests script per-file outcomes and capture the progress
// callback for manual event injection.
type fakeUploader struct {
	mu       sync.Mutex
	requests int32
	fail     map[string]error
	jobIDs   map[string]string
	events   map[string][][2]int64 // progress events to replay per filename
}

func (f *fakeUploader) Upload(_ context.Context, filename string, size int64, source io.Reader, progress docapi.ProgressFunc) (docapi.UploadResult, error) {
	atomic.AddInt32(&f.requests, 1)
	_, _ = io.Copy(io.Discard, source)

	f.mu.Lock()
	events := f.events[filename]
	failure := f.fail[filename]
	jobID := f.jobIDs[filename]
	f.mu.Unlock()

	if events == nil {
		events = [][2]int64{{size / 2, size}, {size, size}}
	}
	for _, e := range events {
		if progress != nil {
			progress(e[0], e[1])
		}
	}
	if failure != nil {
		return docapi.UploadResult{}, failure
	}
	return docapi.UploadResult{JobID: jobID}, nil
}

func memFile(name string, size int64) File {
	return File{
		Name: name,
		Size: size,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(strings.Repeat("x", int(size)))), nil
		},
	}
}

func newTestController(up Uploader, onCompleted func(Item)) *Controller {
	return NewController(up, Options{
		AllowedExtensions: []string{".docx", ".pdf", ".txt"},
		MaxBytes:          10 << 20,
		AllowMultiple:     true,
		OnCompleted:       onCompleted,
	})
}

func TestSubmitLeavesEveryItemTerminal(t *testing.T) {
	up := &fakeUploader{
		fail:   map[string]error{"b.pdf": errors.New("connection reset")},
		jobIDs: map[string]string{"a.docx": "job-a"},
	}
	c := newTestController(up, nil)

	accepted, rejected, err := c.Submit(context.Background(), []File{
		memFile("a.docx", 100),
		memFile("b.pdf", 100),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(accepted) != 2 || len(rejected) != 0 {
		t.Fatalf("expected 2 accepted, 0 rejected, got %d/%d", len(accepted), len(rejected))
	}
	if !c.Wait(context.Background()) {
		t.Fatalf("workers did not finish")
	}

	for _, item := range c.Items() {
		if !item.Terminal() {
			t.Fatalf("item %s stuck in %s", item.Name, item.Status)
		}
	}
	a, _ := c.Get(accepted[0].ID)
	if a.Status != StatusCompleted || a.JobID != "job-a" || a.Progress != 100 {
		t.Fatalf("unexpected a.docx state: %+v", a)
	}
	// failure isolation: b failed, a still completed
	b, _ := c.Get(accepted[1].ID)
	if b.Status != StatusError || b.Error == "" {
		t.Fatalf("unexpected b.pdf state: %+v", b)
	}
}

func TestProgressNeverRegresses(t *testing.T) {
	// out-of-order delivery: 80% arrives before a stale 30%
	up := &fakeUploader{
		events: map[string][][2]int64{
			"a.txt": {{80, 100}, {30, 100}, {90, 100}},
		},
		fail: map[string]error{"a.txt": errors.New("transport gave up")},
	}
	c := newTestController(up, nil)

	accepted, _, err := c.Submit(context.Background(), []File{memFile("a.txt", 100)})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	c.Wait(context.Background())

	// the stale 30% event must not undo the 80% already shown
	item, _ := c.Get(accepted[0].ID)
	if item.Progress != 90 {
		t.Fatalf("expected clamped progress 90, got %d", item.Progress)
	}
	if item.Status != StatusError {
		t.Fatalf("expected error status after failed transport, got %s", item.Status)
	}
}

func TestRejectionIssuesZeroRequests(t *testing.T) {
	up := &fakeUploader{}
	c := newTestController(up, nil)

	accepted, rejected, err := c.Submit(context.Background(), []File{
		memFile("huge.docx", 11<<20), // over the 10 MiB limit
		memFile("malware.exe", 100),  // extension not allowed
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	c.Wait(context.Background())

	if len(accepted) != 0 {
		t.Fatalf("expected no accepted items, got %d", len(accepted))
	}
	if len(rejected) != 2 {
		t.Fatalf("expected 2 rejections, got %d", len(rejected))
	}
	if atomic.LoadInt32(&up.requests) != 0 {
		t.Fatalf("expected zero upload requests, got %d", up.requests)
	}
	for _, r := range rejected {
		if r.Name == "" || r.Reason == "" {
			t.Fatalf("rejection missing name or reason: %+v", r)
		}
	}
}

func TestCompletionCallbackCarriesJobID(t *testing.T) {
	up := &fakeUploader{jobIDs: map[string]string{"a.docx": "job-42"}}

	var mu sync.Mutex
	var completions []Item
	c := newTestController(up, func(item Item) {
		mu.Lock()
		completions = append(completions, item)
		mu.Unlock()
	})

	if _, _, err := c.Submit(context.Background(), []File{memFile("a.docx", 10)}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	c.Wait(context.Background())

	mu.Lock()
	defer mu.Unlock()
	if len(completions) != 1 {
		t.Fatalf("expected exactly one completion callback, got %d", len(completions))
	}
	if completions[0].JobID != "job-42" || completions[0].Status != StatusCompleted {
		t.Fatalf("unexpected completion payload: %+v", completions[0])
	}
}

func TestSingleFilePolicy(t *testing.T) {
	c := NewController(&fakeUploader{}, Options{
		AllowedExtensions: []string{".txt"},
		MaxBytes:          1 << 20,
		AllowMultiple:     false,
	})
	_, _, err := c.Submit(context.Background(), []File{memFile("a.txt", 1), memFile("b.txt", 1)})
	if !errors.Is(err, ErrSingleFile) {
		t.Fatalf("expected ErrSingleFile, got %v", err)
	}
}

func TestSubmitEmptyBatch(t *testing.T) {
	c := newTestController(&fakeUploader{}, nil)
	if _, _, err := c.Submit(context.Background(), nil); !errors.Is(err, ErrNoFiles) {
		t.Fatalf("expected ErrNoFiles, got %v", err)
	}
}

func TestRemoveReportsMissingItem(t *testing.T) {
	up := &fakeUploader{}
	c := newTestController(up, nil)
	accepted, _, err := c.Submit(context.Background(), []File{memFile("a.txt", 10)})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	c.Wait(context.Background())

	if err := c.Remove(accepted[0].ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok := c.Get(accepted[0].ID); ok {
		t.Fatalf("expected item removed")
	}
	if err := c.Remove(accepted[0].ID); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
	if len(c.Items()) != 0 {
		t.Fatalf("expected empty item list")
	}
}
