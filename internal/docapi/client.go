// Package docapi is the HTTP client for the external Document API, the
// backend that performs the actual document formatting. The service never
// parses or transforms documents itself; everything goes through this client.
package docapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const defaultHTTPTimeout = 30 * time.Second

// Variant names accepted by the download endpoint.
const (
	VariantOriginal  = "original"
	VariantFormatted = "formatted"
)

var (
	ErrEmptyJobID     = errors.New("empty job id")
	ErrUnknownVariant = errors.New("unknown download variant")
)

// ProgressFunc receives transport progress while a file body is being sent.
// total is the declared file size; sent never exceeds it.
type ProgressFunc func(sent, total int64)

// UploadResult is the parsed response of a successful upload.
type UploadResult struct {
	JobID string `json:"job_id"`
}

// Client talks to the Document API rooted at baseURL
// (e.g. http://host:9000/api/documents).
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client with the given base URL and request timeout.
// A zero timeout falls back to a 30s default.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// progressReader wraps the upload source and reports cumulative bytes read.
// The multipart writer pulls from it, so "read" here tracks bytes handed to
// the transport.
type progressReader struct {
	r        io.Reader
	total    int64
	sent     int64
	progress ProgressFunc
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.sent += int64(n)
		if p.progress != nil {
			p.progress(p.sent, p.total)
		}
	}
	return n, err
}

// Upload sends one file as multipart form field "file" to POST /upload.
// The progress callback, if non-nil, fires as the body is consumed by the
// transport. A non-2xx response or transport failure is returned as an error.
func (c *Client) Upload(ctx context.Context, filename string, size int64, source io.Reader, progress ProgressFunc) (UploadResult, error) {
	pipeReader, pipeWriter := io.Pipe()
	multipartWriter := multipart.NewWriter(pipeWriter)

	go func() {
		partWriter, err := multipartWriter.CreateFormFile("file", filename)
		if err != nil {
			_ = pipeWriter.CloseWithError(fmt.Errorf("create form file: %w", err))
			return
		}
		tracked := &progressReader{r: source, total: size, progress: progress}
		if _, err := io.Copy(partWriter, tracked); err != nil {
			_ = pipeWriter.CloseWithError(fmt.Errorf("copy file body: %w", err))
			return
		}
		if err := multipartWriter.Close(); err != nil {
			_ = pipeWriter.CloseWithError(fmt.Errorf("close multipart: %w", err))
			return
		}
		_ = pipeWriter.Close()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", pipeReader)
	if err != nil {
		return UploadResult{}, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", multipartWriter.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return UploadResult{}, fmt.Errorf("upload request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return UploadResult{}, fmt.Errorf("upload failed: http %d", resp.StatusCode)
	}

	var result UploadResult
	// job_id is optional; an empty or non-JSON body still counts as success
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return UploadResult{}, fmt.Errorf("read upload response: %w", err)
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &result); err != nil {
			log.Warn().Str("file", filename).Err(err).Msg("upload response not parseable, treating as success without job id")
		}
	}
	return result, nil
}

// Process asks the backend to start formatting the job with the user's goal.
// POST /process/{jobID} with {"user_goal": ...}. The response body is not
// consumed beyond the status code.
func (c *Client) Process(ctx context.Context, jobID, userGoal string) error {
	if jobID == "" {
		return ErrEmptyJobID
	}
	payload, err := json.Marshal(map[string]string{"user_goal": userGoal})
	if err != nil {
		return fmt.Errorf("marshal process payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/process/"+jobID, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build process request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("process request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("process failed: http %d", resp.StatusCode)
	}
	return nil
}

// Status fetches the raw job status string from GET /{jobID}/status.
// The value is returned verbatim; callers must tolerate strings they do not
// recognize.
func (c *Client) Status(ctx context.Context, jobID string) (string, error) {
	if jobID == "" {
		return "", ErrEmptyJobID
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+jobID+"/status", nil)
	if err != nil {
		return "", fmt.Errorf("build status request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("status request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("status failed: http %d", resp.StatusCode)
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode status response: %w", err)
	}
	return body.Status, nil
}

// Download streams the document binary for the given variant from
// GET /{jobID}/download/{variant}. The caller owns the returned body.
func (c *Client) Download(ctx context.Context, jobID, variant string) (io.ReadCloser, error) {
	if jobID == "" {
		return nil, ErrEmptyJobID
	}
	if variant != VariantOriginal && variant != VariantFormatted {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariant, variant)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+jobID+"/download/"+variant, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("download failed: http %d", resp.StatusCode)
	}
	return resp.Body, nil
}
