// Package upload turns a batch of locally selected files into uploaded
// artifacts on the Document API, with per-file progress visibility and
// partial-failure isolation.
package upload

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"smartdoc/internal/docapi"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Uploader is the slice of the Document API client the controller needs.
type Uploader interface {
	Upload(ctx context.Context, filename string, size int64, source io.Reader, progress docapi.ProgressFunc) (docapi.UploadResult, error)
}

// Controller owns the visible set of upload items. All mutation goes through
// its methods; per-file upload work runs in dedicated goroutines.
type Controller struct {
	mu          sync.RWMutex
	items       map[string]*Item
	order       []string
	uploader    Uploader
	allowed     map[string]struct{}
	maxBytes    int64
	multiple    bool
	onCompleted func(Item)
	workersWG   sync.WaitGroup
}

// NewController creates a controller using the provided uploader.
func NewController(uploader Uploader, opts Options) *Controller {
	allowed := make(map[string]struct{}, len(opts.AllowedExtensions))
	for _, ext := range opts.AllowedExtensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = struct{}{}
	}
	return &Controller{
		items:       make(map[string]*Item),
		uploader:    uploader,
		allowed:     allowed,
		maxBytes:    opts.MaxBytes,
		multiple:    opts.AllowMultiple,
		onCompleted: opts.OnCompleted,
	}
}

// Submit validates the batch and starts one independent upload per accepted
// file. Violations of the accept-list or size limit become Rejections and
// never reach the network. The returned items are snapshots taken at
// creation time; observe progress via Items or Get.
func (c *Controller) Submit(ctx context.Context, files []File) ([]Item, []Rejection, error) {
	if len(files) == 0 {
		return nil, nil, ErrNoFiles
	}
	if !c.multiple && len(files) > 1 {
		return nil, nil, ErrSingleFile
	}

	accepted := make([]Item, 0, len(files))
	var rejected []Rejection
	for _, f := range files {
		if reason := c.validate(f); reason != "" {
			rejected = append(rejected, Rejection{Name: f.Name, Reason: reason})
			log.Warn().Str("file", f.Name).Str("reason", reason).Msg("file rejected before upload")
			continue
		}

		item := &Item{
			ID:     uuid.NewString(),
			Name:   f.Name,
			Size:   f.Size,
			Status: StatusUploading,
		}
		c.mu.Lock()
		c.items[item.ID] = item
		c.order = append(c.order, item.ID)
		c.mu.Unlock()
		accepted = append(accepted, *item)

		c.workersWG.Add(1)
		go func(f File, itemID string) {
			defer c.workersWG.Done()
			c.uploadOne(ctx, f, itemID)
		}(f, item.ID)
	}
	return accepted, rejected, nil
}

func (c *Controller) validate(f File) string {
	ext := strings.ToLower(filepath.Ext(f.Name))
	if _, ok := c.allowed[ext]; !ok {
		return fmt.Sprintf("file type not allowed: %q", ext)
	}
	if c.maxBytes > 0 && f.Size > c.maxBytes {
		return fmt.Sprintf("file too large: %d bytes (max %d)", f.Size, c.maxBytes)
	}
	return ""
}

// uploadOne drives a single file to a terminal status. Failures stay local
// to this item; sibling uploads are unaffected.
func (c *Controller) uploadOne(ctx context.Context, f File, itemID string) {
	source, err := f.Open()
	if err != nil {
		c.setError(itemID, fmt.Sprintf("open file: %v", err))
		return
	}
	defer func() { _ = source.Close() }()

	result, err := c.uploader.Upload(ctx, f.Name, f.Size, source, func(sent, total int64) {
		c.applyProgress(itemID, sent, total)
	})
	if err != nil {
		log.Warn().Str("file", f.Name).Str("item_id", itemID).Err(err).Msg("upload failed")
		c.setError(itemID, err.Error())
		return
	}
	c.setCompleted(itemID, result.JobID)
}

// applyProgress records transport progress for an item. The stored value is
// clamped to max(previous, new) so late or re-ordered events never regress
// the displayed percentage. Terminal items are left untouched.
func (c *Controller) applyProgress(itemID string, sent, total int64) {
	if total <= 0 {
		return
	}
	percent := int((sent*100 + total/2) / total)
	if percent > 100 {
		percent = 100
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.items[itemID]
	if !ok || item.Status != StatusUploading {
		return
	}
	if percent > item.Progress {
		item.Progress = percent
	}
}

func (c *Controller) setCompleted(itemID, jobID string) {
	c.mu.Lock()
	item, ok := c.items[itemID]
	if !ok || item.Status != StatusUploading {
		c.mu.Unlock()
		return
	}
	item.Status = StatusCompleted
	item.Progress = 100
	item.JobID = jobID
	snapshot := *item
	c.mu.Unlock()

	log.Info().Str("item_id", itemID).Str("file", snapshot.Name).Str("job_id", jobID).Msg("upload completed")
	if c.onCompleted != nil {
		c.onCompleted(snapshot)
	}
}

func (c *Controller) setError(itemID, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.items[itemID]
	if !ok || item.Status != StatusUploading {
		return
	}
	item.Status = StatusError
	item.Error = msg
}

// MaxBytes returns the configured per-file size limit, 0 for unlimited.
func (c *Controller) MaxBytes() int64 {
	return c.maxBytes
}

// Items returns snapshots of all visible items in submission order.
func (c *Controller) Items() []Item {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Item, 0, len(c.order))
	for _, id := range c.order {
		if item, ok := c.items[id]; ok {
			out = append(out, *item)
		}
	}
	return out
}

// Get returns a snapshot of one item.
func (c *Controller) Get(itemID string) (Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.items[itemID]
	if !ok {
		return Item{}, false
	}
	return *item, true
}

// Remove drops an item from the visible set. Removing never cancels or
// deletes server-side state.
func (c *Controller) Remove(itemID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[itemID]; !ok {
		return fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}
	delete(c.items, itemID)
	for i, id := range c.order {
		if id == itemID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

// Reset discards all items. Used when the flow returns to the upload step.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*Item)
	c.order = nil
}

// Wait blocks until all in-flight uploads finish or the context is done.
// Returns true if all workers finished.
func (c *Controller) Wait(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		c.workersWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
