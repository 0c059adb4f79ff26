// Package client provides the HTTP client used by the CLI commands to
// talk to a running review service.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/archlens/archlens/internal/apperr"
	"github.com/archlens/archlens/internal/config"
	"github.com/archlens/archlens/internal/progress"
	"github.com/archlens/archlens/internal/report"
	"github.com/archlens/archlens/internal/router"
	"github.com/archlens/archlens/internal/store"
)

const (
	// DefaultTimeout bounds ordinary JSON requests.
	DefaultTimeout = 10 * time.Second

	// UploadTimeout bounds archive uploads, which can carry large bodies.
	UploadTimeout = 5 * time.Minute
)

// Client is a shared HTTP client for the review service API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	// streamClient carries no timeout; progress streams are open-ended.
	streamClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the HTTP client timeout for JSON requests.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// New creates a Client for the given base URL. The API key is sent on
// every /api request.
func New(baseURL, apiKey string, opts ...Option) *Client {
	client := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		httpClient:   &http.Client{Timeout: DefaultTimeout},
		streamClient: &http.Client{},
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// FromConfig creates a Client whose base URL is derived from the server
// configuration.
func FromConfig(cfg *config.Config, apiKey string, opts ...Option) *Client {
	return New(ResolveBaseURL(cfg.Server), apiKey, opts...)
}

// ResolveBaseURL builds the service base URL from server configuration.
func ResolveBaseURL(cfg config.ServerConfig) string {
	return fmt.Sprintf("http://%s:%d", NormalizeBind(cfg.HTTPBind), cfg.HTTPPort)
}

// NormalizeBind maps wildcard binds to loopback for local clients.
func NormalizeBind(bind string) string {
	if bind == "" || bind == "0.0.0.0" {
		return "127.0.0.1"
	}
	if strings.Contains(bind, ":") && !strings.HasPrefix(bind, "[") {
		return "[" + bind + "]"
	}
	return bind
}

// AnalyzeAccepted is the response to an accepted analysis request.
type AnalyzeAccepted struct {
	ProjectID     string `json:"project_id"`
	CorrelationID string `json:"correlation_id"`
	MessageID     string `json:"message_id"`
	Status        string `json:"status"`
}

// ReadyStatus is the /readyz response.
type ReadyStatus struct {
	Status     string            `json:"status"`
	Version    string            `json:"version,omitempty"`
	Components map[string]string `json:"components,omitempty"`
}

// Upload submits a zip archive and returns the created project.
func (c *Client) Upload(ctx context.Context, archivePath, name string) (*store.Project, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive; %w", err)
	}
	defer file.Close()

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("archive", filepath.Base(archivePath))
	if err != nil {
		return nil, fmt.Errorf("failed to build upload form; %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("failed to read archive; %w", err)
	}
	if name != "" {
		if err := mw.WriteField("name", name); err != nil {
			return nil, fmt.Errorf("failed to build upload form; %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to build upload form; %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/projects", body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request; %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.authorize(req)

	uploadClient := &http.Client{Timeout: UploadTimeout}
	resp, err := uploadClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to service; %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, decodeError(resp)
	}

	var project store.Project
	if err := json.NewDecoder(resp.Body).Decode(&project); err != nil {
		return nil, fmt.Errorf("failed to parse response; %w", err)
	}
	return &project, nil
}

// Analyze requests analysis of an uploaded project.
func (c *Client) Analyze(ctx context.Context, projectID string, approve bool) (*AnalyzeAccepted, error) {
	in := struct {
		Approve bool `json:"approve"`
	}{Approve: approve}

	var out AnalyzeAccepted
	err := c.doJSON(ctx, http.MethodPost, "/api/projects/"+projectID+"/analyze", in, &out, http.StatusAccepted)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Project fetches a single project by id.
func (c *Client) Project(ctx context.Context, projectID string) (*store.Project, error) {
	var project store.Project
	err := c.doJSON(ctx, http.MethodGet, "/api/projects/"+projectID, nil, &project, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// Projects lists all projects, newest first.
func (c *Client) Projects(ctx context.Context) ([]store.Project, error) {
	var out struct {
		Projects []store.Project `json:"projects"`
	}
	err := c.doJSON(ctx, http.MethodGet, "/api/projects", nil, &out, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return out.Projects, nil
}

// Report fetches the completed report for a project.
func (c *Client) Report(ctx context.Context, projectID string) (*report.Report, error) {
	var rep report.Report
	err := c.doJSON(ctx, http.MethodGet, "/api/projects/"+projectID+"/report", nil, &rep, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &rep, nil
}

// Preflight fetches the cost estimate for an uploaded project.
func (c *Client) Preflight(ctx context.Context, projectID string) (*router.Preflight, error) {
	var estimate router.Preflight
	err := c.doJSON(ctx, http.MethodGet, "/api/projects/"+projectID+"/preflight", nil, &estimate, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &estimate, nil
}

// Reset returns a terminal or queued project to files_ready.
func (c *Client) Reset(ctx context.Context, projectID string) (*store.Project, error) {
	var project store.Project
	err := c.doJSON(ctx, http.MethodPost, "/api/projects/"+projectID+"/reset", nil, &project, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// Delete removes a project and all of its stored data.
func (c *Client) Delete(ctx context.Context, projectID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/projects/"+projectID, nil, nil, http.StatusNoContent)
}

// Ready fetches the readiness status of the service.
func (c *Client) Ready(ctx context.Context) (*ReadyStatus, error) {
	var status ReadyStatus
	err := c.doJSON(ctx, http.MethodGet, "/readyz", nil, &status, http.StatusOK, http.StatusServiceUnavailable)
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// WatchProgress follows the project's progress stream, invoking fn for
// every update. It returns when the stream reports a terminal phase,
// fn returns false, or the context is cancelled.
func (c *Client) WatchProgress(ctx context.Context, projectID string, fn func(progress.Update) bool) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/projects/"+projectID+"/progress", nil)
	if err != nil {
		return fmt.Errorf("failed to create request; %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	c.authorize(req)

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to service; %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		var update progress.Update
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &update); err != nil {
			return fmt.Errorf("failed to parse progress event; %w", err)
		}
		if !fn(update) {
			return nil
		}
		if update.Phase == progress.PhaseCompleted || update.Phase == progress.PhaseFailed {
			return nil
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("progress stream interrupted; %w", err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any, want ...int) error {
	var body io.Reader
	if in != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(in); err != nil {
			return fmt.Errorf("failed to encode request; %w", err)
		}
		body = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request; %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to service; %w", err)
	}
	defer resp.Body.Close()

	if !statusWanted(resp.StatusCode, want) {
		return decodeError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response; %w", err)
	}
	return nil
}

func statusWanted(status int, want []int) bool {
	for _, w := range want {
		if status == w {
			return true
		}
	}
	return false
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// decodeError turns an API error body back into the service's coded
// error, so callers can match on apperr codes.
func decodeError(resp *http.Response) error {
	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err == nil && er.Error != "" {
		if er.Code != "" {
			return apperr.New(apperr.Code(er.Code), er.Error)
		}
		return fmt.Errorf("request failed; %s", er.Error)
	}
	return fmt.Errorf("request failed; status %d", resp.StatusCode)
}
