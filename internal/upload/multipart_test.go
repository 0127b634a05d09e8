package upload

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

// fileHeader parses a real multipart request and returns its single file
// header plus the parsed form, so tests can tear the form down the way the
// HTTP layer does when a request ends.
func fileHeader(t *testing.T, name string, content []byte) (*multipart.FileHeader, *multipart.Form) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if err := req.ParseMultipartForm(32 << 20); err != nil {
		t.Fatalf("parse form: %v", err)
	}
	headers := req.MultipartForm.File["file"]
	if len(headers) != 1 {
		t.Fatalf("expected one file header, got %d", len(headers))
	}
	return headers[0], req.MultipartForm
}

func TestFromMultipartOutlivesRequest(t *testing.T) {
	content := []byte(strings.Repeat("d", 256))
	fh, form := fileHeader(t, "report.docx", content)

	f, err := FromMultipart(fh, 10<<20)
	if err != nil {
		t.Fatalf("from multipart: %v", err)
	}
	if f.Name != "report.docx" || f.Size != int64(len(content)) {
		t.Fatalf("unexpected file: %+v", f)
	}

	// the form is gone once the request ends; the buffered copy must survive
	_ = form.RemoveAll()

	src, err := f.Open()
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = src.Close() }()
	got, err := io.ReadAll(src)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("buffered content differs from original")
	}
}

func TestFromMultipartSkipsOversizedBody(t *testing.T) {
	content := []byte(strings.Repeat("d", 200))
	fh, _ := fileHeader(t, "huge.docx", content)

	const maxBytes = 64
	f, err := FromMultipart(fh, maxBytes)
	if err != nil {
		t.Fatalf("from multipart: %v", err)
	}
	if f.Size != int64(len(content)) {
		t.Fatalf("expected declared size %d, got %d", len(content), f.Size)
	}
	if _, err := f.Open(); err == nil {
		t.Fatalf("expected Open to fail for an unbuffered oversized file")
	}

	// the controller rejects by size, so the file never reaches the network
	up := &fakeUploader{}
	c := NewController(up, Options{
		AllowedExtensions: []string{".docx"},
		MaxBytes:          maxBytes,
		AllowMultiple:     true,
	})
	accepted, rejected, err := c.Submit(context.Background(), []File{f})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	c.Wait(context.Background())
	if len(accepted) != 0 || len(rejected) != 1 {
		t.Fatalf("expected pure rejection, got accepted=%v rejected=%v", accepted, rejected)
	}
	if got := atomic.LoadInt32(&up.requests); got != 0 {
		t.Fatalf("expected zero upload requests, got %d", got)
	}
}
