// Package backend is the HTTP client for the remote codebase indexing
// service: codebase registration, tree diff checks, and artifact
// uploads.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fyrsmithlabs/codesync/internal/config"
	"github.com/fyrsmithlabs/codesync/internal/merkle"
)

const defaultTimeout = 60 * time.Second

// Codebase is the remote identity created for one workspace root.
type Codebase struct {
	ID   string `json:"id"`
	User int64  `json:"user"`
	Team int64  `json:"team"`
}

// SyncRequest submits the current tree projection for a diff check.
type SyncRequest struct {
	Tree   []merkle.TreeNode `json:"tree"`
	Branch string            `json:"branch"`
}

// SyncResponse reports which content hashes the backend is missing.
type SyncResponse struct {
	DivergingFiles []string `json:"diverging_files"`
	Synced         bool     `json:"synced"`
}

// Artifact is one file's upload payload. Path is obfuscated; the
// backend never sees plaintext paths.
type Artifact struct {
	ID        string `json:"id"`
	Extension string `json:"extension"`
	Path      string `json:"path"`
	Content   string `json:"content"`
}

// Client talks to the backend for one configured host + project.
type Client struct {
	host       string
	projectID  string
	apiKey     config.Secret
	httpClient *http.Client
}

// NewClient creates a backend client.
func NewClient(cfg config.BackendConfig) *Client {
	return &Client{
		host:      cfg.Host,
		projectID: cfg.ProjectID,
		apiKey:    cfg.APIKey,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// CreateCodebase registers a new codebase identity for a workspace.
func (c *Client) CreateCodebase(ctx context.Context) (*Codebase, error) {
	var cb Codebase
	err := c.do(ctx, http.MethodPost, c.url("codebases"), struct{}{}, &cb, http.StatusOK, http.StatusCreated)
	if err != nil {
		return nil, err
	}
	return &cb, nil
}

// CheckSync submits the tree projection and returns the backend's view
// of which files diverge.
func (c *Client) CheckSync(ctx context.Context, codebaseID string, req *SyncRequest) (*SyncResponse, error) {
	var resp SyncResponse
	err := c.do(ctx, http.MethodPatch, c.url("codebases/"+codebaseID+"/sync"), req, &resp, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// UploadArtifact uploads one file's content. Anything but 202 is a hard
// failure for this call.
func (c *Client) UploadArtifact(ctx context.Context, codebaseID string, artifact *Artifact) error {
	return c.do(ctx, http.MethodPost, c.url("codebases/"+codebaseID+"/upload_artifact"), artifact, nil, http.StatusAccepted)
}

func (c *Client) url(suffix string) string {
	return fmt.Sprintf("%s/api/projects/%s/%s", c.host, c.projectID, suffix)
}

// do sends one JSON request, requires one of wantStatus, and decodes
// the response into out (if non-nil).
func (c *Client) do(ctx context.Context, method, url string, body any, out any, wantStatus ...int) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey.Value())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	ok := false
	for _, want := range wantStatus {
		if resp.StatusCode == want {
			ok = true
			break
		}
	}
	if !ok {
		// Drain a little of the body for the error message.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: unexpected status %d: %s", method, url, resp.StatusCode, snippet)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
