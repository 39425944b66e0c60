// Package upstream is the typed HTTP client for the backup server's REST
// API. The console never computes restore semantics itself; previews,
// dispatch and progress are all server operations mediated here.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/driftbyte/snapharbor/internal/models"
)

// API is the subset of the backup server contract the restore console
// depends on. Handlers and the workflow engine accept this interface so
// tests can inject fakes.
type API interface {
	ListAgents(ctx context.Context) ([]models.Agent, error)
	ListSnapshots(ctx context.Context, agentID, repositoryID *uuid.UUID) ([]models.Snapshot, error)
	ListSnapshotFiles(ctx context.Context, snapshotID string) (*models.FileListing, error)
	PreviewRestore(ctx context.Context, req models.PreviewRestoreRequest) (*models.RestorePreview, error)
	CreateRestore(ctx context.Context, req models.CreateRestoreRequest) (*models.RestoreJob, error)
	CreateCloudRestore(ctx context.Context, req models.CreateCloudRestoreRequest) (*models.RestoreJob, error)
	GetCloudRestoreProgress(ctx context.Context, restoreID uuid.UUID) (*models.CloudRestoreProgress, error)
	ListRestores(ctx context.Context, agentID *uuid.UUID) ([]models.RestoreJob, error)
	ListLegalHolds(ctx context.Context) ([]models.LegalHold, error)
	CreateLegalHold(ctx context.Context, snapshotID, reason string) (*models.LegalHold, error)
	DeleteLegalHold(ctx context.Context, snapshotID string) error
}

// APIError is a non-2xx response from the backup server, carrying the
// server's error message verbatim.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backup server returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backup server returned %d", e.StatusCode)
}

// IsPermissionDenied reports whether err is an upstream 401/403. Permission
// failures are surfaced as blocking messages, never swallowed.
func IsPermissionDenied(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
	}
	return false
}

// Client talks to the backup server over HTTP with bearer-token auth.
type Client struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
}

// NewClient creates a new backup server client. timeout bounds every
// request, including progress polls.
func NewClient(baseURL, apiToken string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiToken:   apiToken,
		httpClient: &http.Client{Timeout: timeout},
	}
}

var _ API = (*Client)(nil)

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Message: decodeErrorMessage(resp.Body)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response from %s: %w", path, err)
	}
	return nil
}

func decodeErrorMessage(body io.Reader) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return ""
	}
	if payload.Error != "" {
		return payload.Error
	}
	return payload.Message
}

// ListAgents returns all agents in the organization.
func (c *Client) ListAgents(ctx context.Context) ([]models.Agent, error) {
	var resp struct {
		Agents []models.Agent `json:"agents"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/agents", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Agents, nil
}

// ListSnapshots returns snapshots, optionally filtered by agent and/or
// repository.
func (c *Client) ListSnapshots(ctx context.Context, agentID, repositoryID *uuid.UUID) ([]models.Snapshot, error) {
	query := url.Values{}
	if agentID != nil {
		query.Set("agent_id", agentID.String())
	}
	if repositoryID != nil {
		query.Set("repository_id", repositoryID.String())
	}

	var resp struct {
		Snapshots []models.Snapshot `json:"snapshots"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/snapshots", query, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Snapshots, nil
}

// ListSnapshotFiles returns the flat file listing of a snapshot. When the
// server cannot enumerate files the listing is empty and Message explains
// why; that is a valid response, not an error.
func (c *Client) ListSnapshotFiles(ctx context.Context, snapshotID string) (*models.FileListing, error) {
	var listing models.FileListing
	path := "/api/v1/snapshots/" + url.PathEscape(snapshotID) + "/files"
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &listing); err != nil {
		return nil, err
	}
	return &listing, nil
}

// PreviewRestore asks the server for a dry-run of the given restore
// configuration. Previews have no server-side side effects; repeating an
// identical request is safe.
func (c *Client) PreviewRestore(ctx context.Context, req models.PreviewRestoreRequest) (*models.RestorePreview, error) {
	var preview models.RestorePreview
	if err := c.do(ctx, http.MethodPost, "/api/v1/restores/preview", nil, req, &preview); err != nil {
		return nil, err
	}
	return &preview, nil
}

// CreateRestore submits an agent-target restore job.
func (c *Client) CreateRestore(ctx context.Context, req models.CreateRestoreRequest) (*models.RestoreJob, error) {
	var job models.RestoreJob
	if err := c.do(ctx, http.MethodPost, "/api/v1/restores", nil, req, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// CreateCloudRestore submits a cloud-target restore job.
func (c *Client) CreateCloudRestore(ctx context.Context, req models.CreateCloudRestoreRequest) (*models.RestoreJob, error) {
	var job models.RestoreJob
	if err := c.do(ctx, http.MethodPost, "/api/v1/restores/cloud", nil, req, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// GetCloudRestoreProgress returns the current upload progress of a cloud
// restore job.
func (c *Client) GetCloudRestoreProgress(ctx context.Context, restoreID uuid.UUID) (*models.CloudRestoreProgress, error) {
	var progress models.CloudRestoreProgress
	path := "/api/v1/restores/cloud/" + restoreID.String() + "/progress"
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &progress); err != nil {
		return nil, err
	}
	return &progress, nil
}

// ListRestores returns restore jobs, optionally filtered by agent.
func (c *Client) ListRestores(ctx context.Context, agentID *uuid.UUID) ([]models.RestoreJob, error) {
	query := url.Values{}
	if agentID != nil {
		query.Set("agent_id", agentID.String())
	}

	var resp struct {
		Restores []models.RestoreJob `json:"restores"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/restores", query, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Restores, nil
}

// ListLegalHolds returns all active legal holds in the organization.
func (c *Client) ListLegalHolds(ctx context.Context) ([]models.LegalHold, error) {
	var resp struct {
		LegalHolds []models.LegalHold `json:"legal_holds"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/legal-holds", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.LegalHolds, nil
}

// CreateLegalHold places a hold on a snapshot.
func (c *Client) CreateLegalHold(ctx context.Context, snapshotID, reason string) (*models.LegalHold, error) {
	var hold models.LegalHold
	path := "/api/v1/snapshots/" + url.PathEscape(snapshotID) + "/legal-hold"
	req := models.CreateLegalHoldRequest{Reason: reason}
	if err := c.do(ctx, http.MethodPost, path, nil, req, &hold); err != nil {
		return nil, err
	}
	return &hold, nil
}

// DeleteLegalHold removes the hold from a snapshot.
func (c *Client) DeleteLegalHold(ctx context.Context, snapshotID string) error {
	path := "/api/v1/snapshots/" + url.PathEscape(snapshotID) + "/legal-hold"
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}
