package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/driftbyte/snapharbor/internal/auth"
	"github.com/driftbyte/snapharbor/internal/logging"
	"github.com/driftbyte/snapharbor/internal/models"
	"github.com/driftbyte/snapharbor/internal/restore"
	"github.com/driftbyte/snapharbor/internal/upstream"
)

// fakeUpstream implements upstream.API for handler tests.
type fakeUpstream struct {
	agents    []models.Agent
	snapshots []models.Snapshot
	listing   *models.FileListing
	preview   *models.RestorePreview
	agentJob  *models.RestoreJob
	cloudJob  *models.RestoreJob
	restores  []models.RestoreJob
	holds     []models.LegalHold

	previewErr error
	createErr  error
}

func (f *fakeUpstream) ListAgents(ctx context.Context) ([]models.Agent, error) {
	return f.agents, nil
}

func (f *fakeUpstream) ListSnapshots(ctx context.Context, agentID, repositoryID *uuid.UUID) ([]models.Snapshot, error) {
	return f.snapshots, nil
}

func (f *fakeUpstream) ListSnapshotFiles(ctx context.Context, snapshotID string) (*models.FileListing, error) {
	if f.listing != nil {
		return f.listing, nil
	}
	return &models.FileListing{}, nil
}

func (f *fakeUpstream) PreviewRestore(ctx context.Context, req models.PreviewRestoreRequest) (*models.RestorePreview, error) {
	if f.previewErr != nil {
		return nil, f.previewErr
	}
	return f.preview, nil
}

func (f *fakeUpstream) CreateRestore(ctx context.Context, req models.CreateRestoreRequest) (*models.RestoreJob, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.agentJob, nil
}

func (f *fakeUpstream) CreateCloudRestore(ctx context.Context, req models.CreateCloudRestoreRequest) (*models.RestoreJob, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.cloudJob, nil
}

func (f *fakeUpstream) GetCloudRestoreProgress(ctx context.Context, restoreID uuid.UUID) (*models.CloudRestoreProgress, error) {
	return &models.CloudRestoreProgress{RestoreID: restoreID, Status: models.RestoreStatusUploading}, nil
}

func (f *fakeUpstream) ListRestores(ctx context.Context, agentID *uuid.UUID) ([]models.RestoreJob, error) {
	return f.restores, nil
}

func (f *fakeUpstream) ListLegalHolds(ctx context.Context) ([]models.LegalHold, error) {
	return f.holds, nil
}

func (f *fakeUpstream) CreateLegalHold(ctx context.Context, snapshotID, reason string) (*models.LegalHold, error) {
	hold := models.NewLegalHold(snapshotID, reason, uuid.Nil)
	f.holds = append(f.holds, *hold)
	return hold, nil
}

func (f *fakeUpstream) DeleteLegalHold(ctx context.Context, snapshotID string) error {
	kept := f.holds[:0]
	for _, h := range f.holds {
		if h.SnapshotID != snapshotID {
			kept = append(kept, h)
		}
	}
	f.holds = kept
	return nil
}

var _ upstream.API = &fakeUpstream{}

// withClaims injects authenticated claims the way the auth middleware would.
func withClaims(claims *auth.Claims) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user", claims)
		c.Set("user_id", claims.UserID)
		c.Set("username", claims.Username)
		c.Set("role", claims.Role)
		c.Next()
	}
}

func testClaims(role models.OrgRole) *auth.Claims {
	return &auth.Claims{
		UserID:   uuid.New(),
		Username: "tester",
		Role:     role,
	}
}

func testSnapshotFixture() models.Snapshot {
	return models.Snapshot{
		ID:           "abc123def456",
		ShortID:      "abc123de",
		AgentID:      uuid.New(),
		RepositoryID: uuid.New(),
		Hostname:     "web-01",
		Paths:        []string{"/var/www"},
	}
}

func testListing() *models.FileListing {
	return &models.FileListing{
		Files: []models.SnapshotFile{
			{Name: "www", Path: "/var/www", Type: "dir"},
			{Name: "index.html", Path: "/var/www/index.html", Type: "file", Size: 1024},
			{Name: "app.log", Path: "/var/log/app.log", Type: "file", Size: 2048},
		},
	}
}

func noopActivity() *logging.ActivityLogger {
	return logging.NewActivityLogger(nil)
}

func performJSON(t *testing.T, router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response body %q: %v", w.Body.String(), err)
	}
	return body
}

func newRestoreRouter(claims *auth.Claims, api upstream.API, manager *restore.Manager, dispatcher *restore.Dispatcher, preflight TargetPreflight) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(withClaims(claims))

	h := NewRestoreHandler(api, manager, dispatcher, noopActivity(), preflight)
	sessions := router.Group("/api/v1/restore/sessions")
	{
		sessions.POST("", h.OpenSession)
		sessions.GET(":id", h.GetSession)
		sessions.GET(":id/files", h.ListFiles)
		sessions.DELETE(":id", h.CloseSession)
		sessions.PUT(":id/destination", h.SetDestination)
		sessions.PUT(":id/type", h.SetRestoreType)
		sessions.PUT(":id/cross-agent", h.SetCrossAgent)
		sessions.PUT(":id/mappings", h.SetMappings)
		sessions.PUT(":id/cloud-target", h.SetCloudTarget)
		sessions.POST(":id/selection/toggle", h.ToggleSelection)
		sessions.POST(":id/selection/all", h.SelectAll)
		sessions.POST(":id/selection/clear", h.ClearSelection)
		sessions.POST(":id/preview", h.Preview)
		sessions.POST(":id/back", h.Back)
		sessions.POST(":id/start", h.Start)
	}
	router.GET("/api/v1/restores/:id/progress", h.GetCloudProgress)
	return router
}
