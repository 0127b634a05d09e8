// Package ui serves the five-step formatting flow as server-rendered pages:
// dashboard, upload, goal, processing, results. No client-side framework;
// the processing page refreshes itself until the flow moves on.
package ui

import (
	"context"
	"html/template"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"smartdoc/internal/api"
	"smartdoc/internal/config"
	"smartdoc/internal/flow"
	"smartdoc/internal/history"
	"smartdoc/internal/upload"
)

var uiTemplates = template.Must(template.New("layout").Parse(pageTemplates))

// UI renders the flow pages on top of the same collaborators the JSON API
// uses.
type UI struct {
	shell      *flow.Shell
	controller *upload.Controller
	store      *history.Store
	results    *api.API
	cfg        config.Config

	mu             sync.Mutex
	lastRejections []upload.Rejection
}

// NewUI creates the page handlers.
func NewUI(shell *flow.Shell, controller *upload.Controller, store *history.Store, results *api.API, cfg config.Config) *UI {
	return &UI{
		shell:      shell,
		controller: controller,
		store:      store,
		results:    results,
		cfg:        cfg,
	}
}

// RegisterRoutes registers page routes on the provided gin engine.
func (u *UI) RegisterRoutes(router *gin.Engine) {
	router.SetHTMLTemplate(uiTemplates)
	router.GET("/", u.Dashboard)
	router.POST("/ui/flow", u.StartFlow)
	router.GET("/ui/upload", u.UploadPage)
	router.POST("/ui/upload", u.SubmitUpload)
	router.GET("/ui/goal", u.GoalPage)
	router.POST("/ui/goal", u.SubmitGoal)
	router.GET("/ui/processing", u.ProcessingPage)
	router.GET("/ui/results", u.ResultsPage)
	router.POST("/ui/reset", u.ResetFlow)
}

// Dashboard shows history statistics and the entry point into the flow.
func (u *UI) Dashboard(c *gin.Context) {
	data := gin.H{"State": u.shell.State()}
	if u.store != nil {
		stats, err := u.store.Stats(c.Request.Context())
		if err != nil {
			log.Warn().Err(err).Msg("dashboard stats query failed")
		} else {
			data["Stats"] = stats
		}
		recent, err := u.store.Recent(c.Request.Context(), 5)
		if err != nil {
			log.Warn().Err(err).Msg("recent jobs query failed")
		} else {
			data["Recent"] = recent
		}
	}
	c.HTML(http.StatusOK, "dashboard", data)
}

// StartFlow begins a new flow and moves to the upload step. Items and
// rejections from a previous flow are discarded on the way in.
func (u *UI) StartFlow(c *gin.Context) {
	if u.shell.State() == flow.StateProcessing {
		c.Redirect(http.StatusFound, "/ui/processing")
		return
	}
	if err := u.shell.StartUpload(); err != nil {
		// mid-flow entry: abandon the current flow and start clean
		u.results.ResetFlow()
		_ = u.shell.StartUpload()
	}
	u.controller.Reset()
	u.mu.Lock()
	u.lastRejections = nil
	u.mu.Unlock()
	c.Redirect(http.StatusFound, "/ui/upload")
}

// UploadPage renders the file picker and the current item states. Once the
// shell has advanced to goal selection, it redirects there.
func (u *UI) UploadPage(c *gin.Context) {
	switch u.shell.State() {
	case flow.StateGoal:
		c.Redirect(http.StatusFound, "/ui/goal")
		return
	case flow.StateDashboard:
		c.Redirect(http.StatusFound, "/")
		return
	}
	u.mu.Lock()
	rejections := append([]upload.Rejection(nil), u.lastRejections...)
	u.mu.Unlock()

	items := u.controller.Items()
	uploading := false
	for _, item := range items {
		if !item.Terminal() {
			uploading = true
			break
		}
	}
	c.HTML(http.StatusOK, "upload", gin.H{
		"Items":      items,
		"Rejections": rejections,
		"Uploading":  uploading,
		"Accept":     strings.Join(u.cfg.AllowedExtensions, ","),
		"Multiple":   u.cfg.AllowMultiple,
		"MaxBytes":   u.cfg.MaxUploadBytes,
	})
}

// SubmitUpload accepts the picked files and hands them to the controller.
func (u *UI) SubmitUpload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.HTML(http.StatusBadRequest, "upload", gin.H{"Error": "invalid upload form"})
		return
	}
	headers := form.File["file"]
	files := make([]upload.File, 0, len(headers))
	for _, fh := range headers {
		buffered, err := upload.FromMultipart(fh, u.cfg.MaxUploadBytes)
		if err != nil {
			c.HTML(http.StatusBadRequest, "upload", gin.H{"Error": "reading uploaded file failed"})
			return
		}
		files = append(files, buffered)
	}

	// uploads continue after this response; the page polls their progress
	_, rejections, err := u.controller.Submit(context.Background(), files)
	if err != nil {
		c.HTML(http.StatusBadRequest, "upload", gin.H{
			"Error":  err.Error(),
			"Accept": strings.Join(u.cfg.AllowedExtensions, ","),
		})
		return
	}
	u.mu.Lock()
	u.lastRejections = rejections
	u.mu.Unlock()
	c.Redirect(http.StatusFound, "/ui/upload")
}

// GoalPage renders the formatting-goal form.
func (u *UI) GoalPage(c *gin.Context) {
	if u.shell.State() != flow.StateGoal {
		c.Redirect(http.StatusFound, "/ui/upload")
		return
	}
	snapshot := u.shell.Snapshot()
	fileName := ""
	if len(snapshot.Items) > 0 {
		fileName = snapshot.Items[0].Name
	}
	c.HTML(http.StatusOK, "goal", gin.H{
		"FileName": fileName,
		"Suggestions": []string{
			"Make the document look professional and consistent",
			"Fix heading hierarchy and numbering",
			"Standardize fonts and spacing throughout",
		},
	})
}

// SubmitGoal starts processing with the chosen goal.
func (u *UI) SubmitGoal(c *gin.Context) {
	goal := strings.TrimSpace(c.PostForm("goal"))
	if goal == "" {
		c.Redirect(http.StatusFound, "/ui/goal")
		return
	}
	if err := u.shell.BeginProcessing(c.Request.Context(), goal); err != nil {
		log.Warn().Err(err).Msg("goal submission rejected")
		c.Redirect(http.StatusFound, "/ui/goal")
		return
	}
	c.Redirect(http.StatusFound, "/ui/processing")
}

// ProcessingPage shows the step list and progress; it refreshes itself until
// the flow reaches results or the job fails.
func (u *UI) ProcessingPage(c *gin.Context) {
	if u.shell.State() == flow.StateResults {
		c.Redirect(http.StatusFound, "/ui/results")
		return
	}
	if u.shell.State() != flow.StateProcessing {
		c.Redirect(http.StatusFound, "/")
		return
	}
	snapshot := u.shell.Snapshot()
	c.HTML(http.StatusOK, "processing", gin.H{
		"Job":     snapshot.Job,
		"Goal":    snapshot.Goal,
		"Refresh": !snapshot.Job.Terminal(),
	})
}

// ResultsPage shows the change summary, preview and download links.
func (u *UI) ResultsPage(c *gin.Context) {
	if u.shell.State() != flow.StateResults {
		c.Redirect(http.StatusFound, "/")
		return
	}
	data := gin.H{}
	if result, ok := u.results.CurrentResult(); ok {
		data["Result"] = result
	}
	c.HTML(http.StatusOK, "results", data)
}

// ResetFlow abandons everything and returns to the dashboard.
func (u *UI) ResetFlow(c *gin.Context) {
	u.results.ResetFlow()
	c.Redirect(http.StatusFound, "/")
}
