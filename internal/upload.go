package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// Terminal upload job statuses as reported by the processing API
const (
	JobStatusUploaded  = "uploaded"
	JobStatusProcessed = "processed"
	JobStatusFailed    = "failed"
)

// UploadClient talks to the CSV processing API (the /api/* surface).
// It shares the analytics service's host by default but can point at a
// separate deployment.
type UploadClient struct {
	baseURL string
	http    *http.Client
}

// NewUploadClient creates a client for the processing API at baseURL
func NewUploadClient(baseURL string) *UploadClient {
	return &UploadClient{
		baseURL: trimTrailingSlash(baseURL),
		http:    &http.Client{Timeout: DefaultHTTPTimeout},
	}
}

// SetHTTPClient overrides the underlying HTTP client
func (c *UploadClient) SetHTTPClient(hc *http.Client) {
	if hc != nil {
		c.http = hc
	}
}

// Upload sends a CSV file and returns the created processing job
func (c *UploadClient) Upload(ctx context.Context, filePath string) (*UploadJob, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", filePath, err)
	}
	defer func() { _ = f.Close() }()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return nil, fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filePath, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	return c.doJob(req, "upload")
}

// ProcessOptions mirror the preprocessing switches of the service
type ProcessOptions struct {
	RemoveDuplicates bool    `json:"remove_duplicates"`
	FillNulls        bool    `json:"fill_nulls"`
	NullValue        float64 `json:"null_value"`
	Normalize        bool    `json:"normalize"`
}

// DefaultProcessOptions match the service-side defaults
func DefaultProcessOptions() ProcessOptions {
	return ProcessOptions{RemoveDuplicates: true, FillNulls: true}
}

// Process kicks off preprocessing for an uploaded file
func (c *UploadClient) Process(ctx context.Context, jobID string, opts ProcessOptions) (*UploadJob, error) {
	encoded, err := json.Marshal(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to encode process options: %w", err)
	}
	path := c.baseURL + "/api/process/" + url.PathEscape(jobID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, path, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to build process request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.doJob(req, "process")
}

// Job fetches the current state of a processing job
func (c *UploadClient) Job(ctx context.Context, jobID string) (*UploadJob, error) {
	path := c.baseURL + "/api/jobs/" + url.PathEscape(jobID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build job request: %w", err)
	}
	return c.doJob(req, "job")
}

// WaitForJob polls until the job reaches a terminal status or the
// context expires.
func (c *UploadClient) WaitForJob(ctx context.Context, jobID string, interval time.Duration) (*UploadJob, error) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		job, err := c.Job(ctx, jobID)
		if err != nil {
			return nil, err
		}
		switch job.Status {
		case JobStatusProcessed, JobStatusFailed:
			return job, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *UploadClient) doJob(req *http.Request, op string) (*UploadJob, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Op: op, StatusCode: resp.StatusCode}
		var msg struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(data, &msg); err == nil {
			apiErr.Message = msg.Error
		}
		return nil, apiErr
	}

	var job UploadJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return &job, nil
}
