package ui

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"smartdoc/internal/api"
	"smartdoc/internal/artifact"
	"smartdoc/internal/config"
	"smartdoc/internal/docapi"
	"smartdoc/internal/flow"
	"smartdoc/internal/history"
	"smartdoc/internal/upload"
)

// fakeBackend stands in for the Document API across all four collaborator
// interfaces: every upload yields job-1 and the job completes immediately.
type fakeBackend struct{}

func (fakeBackend) Upload(_ context.Context, _ string, size int64, source io.Reader, progress docapi.ProgressFunc) (docapi.UploadResult, error) {
	_, _ = io.Copy(io.Discard, source)
	if progress != nil {
		progress(size, size)
	}
	return docapi.UploadResult{JobID: "job-1"}, nil
}

func (fakeBackend) Process(context.Context, string, string) error { return nil }

func (fakeBackend) Status(context.Context, string) (string, error) { return "completed", nil }

func (fakeBackend) Download(context.Context, string, string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("artifact bytes")), nil
}

func setupUI(t *testing.T) (*gin.Engine, *flow.Shell, *upload.Controller) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	backend := fakeBackend{}
	shell := flow.New(backend, backend, 2*time.Millisecond, 2*time.Millisecond)
	t.Cleanup(shell.Close)

	controller := upload.NewController(backend, upload.Options{
		AllowedExtensions: []string{".docx"},
		MaxBytes:          10 << 20,
		OnCompleted: func(item upload.Item) {
			_ = shell.FileUploaded(item)
		},
	})

	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	cache := artifact.NewCache(t.TempDir(), backend)
	apiHandler := api.NewAPI(shell, controller, cache, store)

	router := gin.New()
	uiHandler := NewUI(shell, controller, store, apiHandler, config.Default())
	uiHandler.RegisterRoutes(router)
	return router, shell, controller
}

func memFile(name, content string) upload.File {
	return upload.File{
		Name: name,
		Size: int64(len(content)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}
}

func waitForState(t *testing.T, shell *flow.Shell, want flow.State) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if shell.State() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("state %s not reached, still %s", want, shell.State())
}

func postFlow(t *testing.T, router *gin.Engine) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/ui/flow", nil))
	return w
}

func TestStartFlowFromResultsClearsPreviousItems(t *testing.T) {
	router, shell, controller := setupUI(t)

	// drive one flow all the way to results
	if err := shell.StartUpload(); err != nil {
		t.Fatalf("start upload: %v", err)
	}
	if _, _, err := controller.Submit(context.Background(), []upload.File{memFile("old.docx", "data")}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	controller.Wait(context.Background())
	waitForState(t, shell, flow.StateGoal)
	if err := shell.BeginProcessing(context.Background(), "clean it up"); err != nil {
		t.Fatalf("begin processing: %v", err)
	}
	waitForState(t, shell, flow.StateResults)

	// "format another document": the new upload step starts empty
	if w := postFlow(t, router); w.Code != http.StatusFound {
		t.Fatalf("flow status %d", w.Code)
	}
	if shell.State() != flow.StateUpload {
		t.Fatalf("expected upload state, got %s", shell.State())
	}
	if items := controller.Items(); len(items) != 0 {
		t.Fatalf("items from the previous flow survived: %+v", items)
	}
}

func TestStartFlowMidFlowStartsClean(t *testing.T) {
	router, shell, controller := setupUI(t)

	if err := shell.StartUpload(); err != nil {
		t.Fatalf("start upload: %v", err)
	}
	if _, _, err := controller.Submit(context.Background(), []upload.File{memFile("old.docx", "data")}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	controller.Wait(context.Background())
	waitForState(t, shell, flow.StateGoal)

	// abandoning goal selection for a fresh flow drops the old upload
	if w := postFlow(t, router); w.Code != http.StatusFound {
		t.Fatalf("flow status %d", w.Code)
	}
	if shell.State() != flow.StateUpload {
		t.Fatalf("expected upload state, got %s", shell.State())
	}
	if items := controller.Items(); len(items) != 0 {
		t.Fatalf("items from the abandoned flow survived: %+v", items)
	}
}
