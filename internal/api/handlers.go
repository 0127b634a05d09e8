package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"smartdoc/internal/artifact"
	"smartdoc/internal/docapi"
	"smartdoc/internal/flow"
	"smartdoc/internal/history"
	"smartdoc/internal/preview"
	"smartdoc/internal/upload"
)

const resultFetchTimeout = 60 * time.Second

type uploadResponse struct {
	Items      []upload.Item      `json:"items"`
	Rejections []upload.Rejection `json:"rejections"`
}

type processRequest struct {
	UserGoal string `json:"user_goal"`
}

// ResultData is the materialized results view for the active flow.
type ResultData struct {
	JobID       string           `json:"job_id"`
	FileName    string           `json:"file_name"`
	Goal        string           `json:"goal"`
	Summary     artifact.Summary `json:"summary"`
	CompletedAt time.Time        `json:"completed_at"`

	pair artifact.Pair
}

// API wires the flow shell, upload controller and Document API collaborators
// to HTTP.
type API struct {
	shell      *flow.Shell
	controller *upload.Controller
	cache      *artifact.Cache
	store      *history.Store

	mu               sync.Mutex
	result           *ResultData
	recordedFailures map[string]bool
}

// NewAPI creates the handler set and hooks the shell's results transition.
func NewAPI(shell *flow.Shell, controller *upload.Controller, cache *artifact.Cache, store *history.Store) *API {
	a := &API{
		shell:            shell,
		controller:       controller,
		cache:            cache,
		store:            store,
		recordedFailures: make(map[string]bool),
	}
	shell.OnResults(a.handleResults)
	return a
}

// RegisterRoutes registers API routes on the provided gin engine.
func (a *API) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.POST("/documents", a.UploadDocuments)
		api.GET("/documents", a.ListDocuments)
		api.DELETE("/documents/:id", a.RemoveDocument)
		api.POST("/process", a.BeginProcessing)
		api.GET("/status", a.FlowStatus)
		api.GET("/result", a.Result)
		api.GET("/download/:variant", a.Download)
		api.GET("/preview", a.Preview)
		api.POST("/reset", a.Reset)
	}
}

// UploadDocuments accepts multipart files under field "file" and starts one
// independent upload per accepted file. Rejected files are reported in the
// same response and never leave the process.
func (a *API) UploadDocuments(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		log.Warn().Err(err).Msg("invalid multipart form")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return
	}
	headers := form.File["file"]
	files := make([]upload.File, 0, len(headers))
	for _, fh := range headers {
		buffered, err := upload.FromMultipart(fh, a.controller.MaxBytes())
		if err != nil {
			log.Warn().Str("file", fh.Filename).Err(err).Msg("reading uploaded file failed")
			c.JSON(http.StatusBadRequest, gin.H{"error": "reading uploaded file failed"})
			return
		}
		files = append(files, buffered)
	}

	// uploads outlive this request: detach them from the request context
	items, rejections, err := a.controller.Submit(context.Background(), files)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, upload.ErrNoFiles) || errors.Is(err, upload.ErrSingleFile) {
			status = http.StatusUnprocessableEntity
		}
		log.Warn().Err(err).Msg("upload batch rejected")
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	log.Info().Int("accepted", len(items)).Int("rejected", len(rejections)).Msg("upload batch submitted")
	c.JSON(http.StatusAccepted, uploadResponse{Items: items, Rejections: rejections})
}

// ListDocuments returns the visible upload items.
func (a *API) ListDocuments(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"items": a.controller.Items()})
}

// RemoveDocument drops an item from the visible set.
func (a *API) RemoveDocument(c *gin.Context) {
	if err := a.controller.Remove(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// BeginProcessing forwards the chosen goal and moves the flow to processing.
func (a *API) BeginProcessing(c *gin.Context) {
	var req processRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if err := a.shell.BeginProcessing(c.Request.Context(), req.UserGoal); err != nil {
		status := http.StatusConflict
		if errors.Is(err, flow.ErrNoActiveJob) {
			status = http.StatusUnprocessableEntity
		}
		log.Warn().Err(err).Msg("begin processing rejected")
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"state": a.shell.State()})
}

// FlowStatus returns the full shell snapshot including the job view. A job
// that reported a terminal error is recorded to history here, once.
func (a *API) FlowStatus(c *gin.Context) {
	snapshot := a.shell.Snapshot()
	if snapshot.Job.Failed {
		a.recordFailureOnce(c.Request.Context(), snapshot)
	}
	c.JSON(http.StatusOK, snapshot)
}

// Result returns the materialized results view, 404 before completion.
func (a *API) Result(c *gin.Context) {
	a.mu.Lock()
	result := a.result
	a.mu.Unlock()
	if result == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no results yet"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// Download serves a cached artifact variant. The formatted variant gets the
// fixed attachment name.
func (a *API) Download(c *gin.Context) {
	variant := c.Param("variant")
	if variant != docapi.VariantOriginal && variant != docapi.VariantFormatted {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown variant"})
		return
	}

	a.mu.Lock()
	result := a.result
	a.mu.Unlock()
	if result == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no results yet"})
		return
	}

	data := result.pair.Formatted
	name := artifact.DownloadName
	if variant == docapi.VariantOriginal {
		data = result.pair.Original
		name = result.FileName
	}
	if len(data) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "artifact not available"})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, "application/octet-stream", data)
}

// Preview renders the formatted artifact as sanitized HTML.
func (a *API) Preview(c *gin.Context) {
	a.mu.Lock()
	result := a.result
	a.mu.Unlock()
	if result == nil || len(result.pair.Formatted) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no formatted document to preview"})
		return
	}
	fragment, err := preview.HTML(result.FileName, result.pair.Formatted)
	if err != nil {
		if errors.Is(err, preview.ErrUnsupported) {
			c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": err.Error()})
			return
		}
		log.Warn().Str("job_id", result.JobID).Err(err).Msg("preview conversion failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "preview conversion failed"})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(fragment))
}

// Reset abandons the current flow and returns to the dashboard.
func (a *API) Reset(c *gin.Context) {
	a.ResetFlow()
	c.JSON(http.StatusOK, gin.H{"state": a.shell.State()})
}

// ResetFlow discards the active flow, upload items and materialized results.
// Shared with the page-serving layer.
func (a *API) ResetFlow() {
	a.shell.ResetToDashboard()
	a.controller.Reset()
	a.mu.Lock()
	a.result = nil
	a.mu.Unlock()
}

// CurrentResult returns a copy of the materialized results view, if any.
func (a *API) CurrentResult() (ResultData, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.result == nil {
		return ResultData{}, false
	}
	return *a.result, true
}

// handleResults runs when the shell lands on results: fetch both artifact
// variants, compute the change summary, and record the outcome.
func (a *API) handleResults(snapshot flow.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), resultFetchTimeout)
	defer cancel()

	fileName := ""
	createdAt := time.Now()
	if len(snapshot.Items) > 0 {
		fileName = snapshot.Items[0].Name
	}

	result := &ResultData{
		JobID:       snapshot.JobID,
		FileName:    fileName,
		Goal:        snapshot.Goal,
		CompletedAt: time.Now(),
	}

	pair, err := a.cache.FetchBoth(ctx, snapshot.JobID)
	if err != nil {
		log.Warn().Str("job_id", snapshot.JobID).Err(err).Msg("artifact fetch failed, results limited to status")
	} else {
		result.pair = pair
		result.Summary = a.cache.Summarize(snapshot.JobID, fileName, pair)
	}

	a.mu.Lock()
	a.result = result
	a.mu.Unlock()

	if a.store != nil {
		record := history.Record{
			JobID:      snapshot.JobID,
			FileName:   fileName,
			Goal:       snapshot.Goal,
			Status:     "completed",
			CreatedAt:  createdAt,
			FinishedAt: time.Now(),
		}
		if err := a.store.Save(ctx, record); err != nil {
			log.Warn().Str("job_id", snapshot.JobID).Err(err).Msg("persist history failed")
		}
	}
}

func (a *API) recordFailureOnce(ctx context.Context, snapshot flow.Snapshot) {
	a.mu.Lock()
	if a.recordedFailures[snapshot.JobID] {
		a.mu.Unlock()
		return
	}
	a.recordedFailures[snapshot.JobID] = true
	a.mu.Unlock()

	if a.store == nil {
		return
	}
	fileName := ""
	if len(snapshot.Items) > 0 {
		fileName = snapshot.Items[0].Name
	}
	record := history.Record{
		JobID:      snapshot.JobID,
		FileName:   fileName,
		Goal:       snapshot.Goal,
		Status:     "error",
		CreatedAt:  time.Now(),
		FinishedAt: time.Now(),
	}
	if err := a.store.Save(ctx, record); err != nil {
		log.Warn().Str("job_id", snapshot.JobID).Err(err).Msg("persist failure record failed")
	}
}
