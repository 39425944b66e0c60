package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/driftbyte/snapharbor/internal/models"
	"github.com/driftbyte/snapharbor/internal/restore"
	"github.com/driftbyte/snapharbor/internal/upstream"
)

type failingPreflight struct {
	err error
}

func (p *failingPreflight) Check(ctx context.Context, target *models.CloudTarget) error {
	return p.err
}

func setupWorkflow(t *testing.T, fake *fakeUpstream, preflight TargetPreflight) (*gin.Engine, string) {
	t.Helper()
	manager := restore.NewManager()
	dispatcher := restore.NewDispatcher(fake, nil, nil, time.Second)
	router := newRestoreRouter(testClaims(models.RoleMember), fake, manager, dispatcher, preflight)

	w := performJSON(t, router, http.MethodPost, "/api/v1/restore/sessions",
		`{"snapshot_id":"abc123def456"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201 opening session, got %d: %s", w.Code, w.Body.String())
	}

	body := decodeBody(t, w)
	session, ok := body["session"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected session object in response, got %v", body)
	}
	id, ok := session["id"].(string)
	if !ok || id == "" {
		t.Fatalf("expected session id in response, got %v", session)
	}
	return router, id
}

func workflowFake() *fakeUpstream {
	snapshot := testSnapshotFixture()
	return &fakeUpstream{
		agents: []models.Agent{
			{ID: snapshot.AgentID, Hostname: "web-01"},
			{ID: uuid.New(), Hostname: "web-02"},
		},
		snapshots: []models.Snapshot{snapshot},
		listing:   testListing(),
		preview: &models.RestorePreview{
			TotalFiles:      2,
			TotalDirs:       1,
			TotalSize:       3072,
			DiskSpaceNeeded: 3072,
		},
		agentJob: &models.RestoreJob{ID: uuid.New(), SnapshotID: snapshot.ID, Status: models.RestoreStatusPending},
		cloudJob: &models.RestoreJob{ID: uuid.New(), SnapshotID: snapshot.ID, Status: models.RestoreStatusPending},
	}
}

func TestOpenSessionReturnsListingAndConfigurePhase(t *testing.T) {
	fake := workflowFake()
	manager := restore.NewManager()
	dispatcher := restore.NewDispatcher(fake, nil, nil, time.Second)
	router := newRestoreRouter(testClaims(models.RoleMember), fake, manager, dispatcher, nil)

	w := performJSON(t, router, http.MethodPost, "/api/v1/restore/sessions",
		`{"snapshot_id":"abc123de"}`) // short id resolves too
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	body := decodeBody(t, w)
	session := body["session"].(map[string]interface{})
	if session["phase"] != "configure" {
		t.Errorf("expected configure phase, got %v", session["phase"])
	}
	if session["restore_type"] != "agent" {
		t.Errorf("expected agent restore type, got %v", session["restore_type"])
	}
	if session["cross_agent_offered"] != true {
		t.Error("expected cross-agent to be offered with two agents")
	}
	files, ok := body["files"].([]interface{})
	if !ok || len(files) != 3 {
		t.Errorf("expected 3 listed files, got %v", body["files"])
	}
}

func TestOpenSessionUnknownSnapshot(t *testing.T) {
	fake := workflowFake()
	manager := restore.NewManager()
	dispatcher := restore.NewDispatcher(fake, nil, nil, time.Second)
	router := newRestoreRouter(testClaims(models.RoleMember), fake, manager, dispatcher, nil)

	w := performJSON(t, router, http.MethodPost, "/api/v1/restore/sessions",
		`{"snapshot_id":"nope"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}
}

func TestOpenSessionPassesThroughListingMessage(t *testing.T) {
	fake := workflowFake()
	fake.listing = &models.FileListing{Message: "File listing is not supported for this repository type"}
	manager := restore.NewManager()
	dispatcher := restore.NewDispatcher(fake, nil, nil, time.Second)
	router := newRestoreRouter(testClaims(models.RoleMember), fake, manager, dispatcher, nil)

	w := performJSON(t, router, http.MethodPost, "/api/v1/restore/sessions",
		`{"snapshot_id":"abc123def456"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["message"] != "File listing is not supported for this repository type" {
		t.Errorf("expected listing message passed through verbatim, got %v", body["message"])
	}
}

func TestSessionBelongsToItsUser(t *testing.T) {
	fake := workflowFake()
	router, sessionID := setupWorkflow(t, fake, nil)

	w := performJSON(t, router, http.MethodGet, "/api/v1/restore/sessions/"+uuid.New().String(), "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 for unknown session, got %d", w.Code)
	}

	w = performJSON(t, router, http.MethodGet, "/api/v1/restore/sessions/"+sessionID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200 for own session, got %d", w.Code)
	}
}

func TestSessionFilesAnnotateImpliedSelection(t *testing.T) {
	fake := workflowFake()
	router, sessionID := setupWorkflow(t, fake, nil)
	base := "/api/v1/restore/sessions/" + sessionID

	w := performJSON(t, router, http.MethodPost, base+"/selection/toggle",
		`{"path":"/var/www"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200 toggling directory, got %d: %s", w.Code, w.Body.String())
	}
	session := decodeBody(t, w)["session"].(map[string]interface{})
	paths, ok := session["include_paths"].([]interface{})
	if !ok || len(paths) != 1 || paths[0] != "/var/www" {
		t.Errorf("expected include_paths to carry the explicit set, got %v", session["include_paths"])
	}

	w = performJSON(t, router, http.MethodGet, base+"/files", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200 listing files, got %d: %s", w.Code, w.Body.String())
	}
	files, ok := decodeBody(t, w)["files"].([]interface{})
	if !ok || len(files) != 3 {
		t.Fatalf("expected 3 annotated files, got %v", files)
	}
	byPath := make(map[string]map[string]interface{}, len(files))
	for _, f := range files {
		entry := f.(map[string]interface{})
		byPath[entry["path"].(string)] = entry
	}

	dir := byPath["/var/www"]
	if dir["selected"] != true || dir["implied"] != false {
		t.Errorf("expected the toggled directory checked and editable, got %v", dir)
	}
	// The child of a selected directory renders checked and disabled.
	child := byPath["/var/www/index.html"]
	if child["selected"] != false || child["implied"] != true {
		t.Errorf("expected the child implied through its ancestor, got %v", child)
	}
	other := byPath["/var/log/app.log"]
	if other["selected"] != false || other["implied"] != false {
		t.Errorf("expected the unrelated file unchecked, got %v", other)
	}
}

func TestPreviewTransitionAndBack(t *testing.T) {
	fake := workflowFake()
	router, sessionID := setupWorkflow(t, fake, nil)
	base := "/api/v1/restore/sessions/" + sessionID

	w := performJSON(t, router, http.MethodPost, base+"/selection/toggle",
		`{"path":"/var/www/index.html"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200 toggling selection, got %d: %s", w.Code, w.Body.String())
	}

	w = performJSON(t, router, http.MethodPost, base+"/preview", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200 on preview, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	session := body["session"].(map[string]interface{})
	if session["phase"] != "preview" {
		t.Errorf("expected preview phase after dry run, got %v", session["phase"])
	}
	if body["preview"] == nil {
		t.Error("expected preview payload in response")
	}

	// Configuration edits are rejected while previewing.
	w = performJSON(t, router, http.MethodPut, base+"/destination",
		`{"mode":"custom","custom_path":"/tmp/out"}`)
	if w.Code != http.StatusConflict {
		t.Errorf("expected status 409 editing during preview, got %d", w.Code)
	}

	w = performJSON(t, router, http.MethodPost, base+"/back", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200 going back, got %d", w.Code)
	}
	session = decodeBody(t, w)["session"].(map[string]interface{})
	if session["phase"] != "configure" {
		t.Errorf("expected configure phase after back, got %v", session["phase"])
	}
	if session["preview"] != nil {
		t.Error("expected preview discarded after back")
	}
}

func TestPreviewFailureKeepsConfigurePhase(t *testing.T) {
	fake := workflowFake()
	fake.previewErr = &upstream.APIError{StatusCode: http.StatusBadRequest, Message: "snapshot is being pruned"}
	router, sessionID := setupWorkflow(t, fake, nil)
	base := "/api/v1/restore/sessions/" + sessionID

	w := performJSON(t, router, http.MethodPost, base+"/preview", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected upstream status passed through, got %d", w.Code)
	}
	if body := decodeBody(t, w); body["error"] != "snapshot is being pruned" {
		t.Errorf("expected upstream message passed through, got %v", body["error"])
	}

	w = performJSON(t, router, http.MethodGet, base, "")
	session := decodeBody(t, w)["session"].(map[string]interface{})
	if session["phase"] != "configure" {
		t.Errorf("expected session to stay in configure after failed preview, got %v", session["phase"])
	}
	if session["last_error"] == nil || session["last_error"] == "" {
		t.Error("expected last_error recorded on the session")
	}
}

func TestPreviewUnavailableForCloudTarget(t *testing.T) {
	fake := workflowFake()
	router, sessionID := setupWorkflow(t, fake, nil)
	base := "/api/v1/restore/sessions/" + sessionID

	w := performJSON(t, router, http.MethodPut, base+"/type", `{"restore_type":"cloud"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200 switching to cloud, got %d: %s", w.Code, w.Body.String())
	}

	w = performJSON(t, router, http.MethodPost, base+"/preview", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 previewing a cloud restore, got %d", w.Code)
	}
}

func TestStartAgentRestore(t *testing.T) {
	fake := workflowFake()
	router, sessionID := setupWorkflow(t, fake, nil)
	base := "/api/v1/restore/sessions/" + sessionID

	w := performJSON(t, router, http.MethodPost, base+"/start", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected status 202 on start, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	session := body["session"].(map[string]interface{})
	if session["phase"] != "restoring" {
		t.Errorf("expected restoring phase after dispatch, got %v", session["phase"])
	}
	job, ok := body["job"].(map[string]interface{})
	if !ok || job["id"] != fake.agentJob.ID.String() {
		t.Errorf("expected dispatched job in response, got %v", body["job"])
	}
}

func TestStartRejectsEmptyCustomPath(t *testing.T) {
	fake := workflowFake()
	router, sessionID := setupWorkflow(t, fake, nil)
	base := "/api/v1/restore/sessions/" + sessionID

	w := performJSON(t, router, http.MethodPut, base+"/destination",
		`{"mode":"custom","custom_path":"   "}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200 setting destination, got %d", w.Code)
	}

	w = performJSON(t, router, http.MethodPost, base+"/start", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for blank custom path, got %d", w.Code)
	}
	if body := decodeBody(t, w); body["field"] != "target_path" {
		t.Errorf("expected target_path validation field, got %v", body["field"])
	}
}

func TestStartFailureKeepsPhase(t *testing.T) {
	fake := workflowFake()
	fake.createErr = errors.New("connection refused")
	router, sessionID := setupWorkflow(t, fake, nil)
	base := "/api/v1/restore/sessions/" + sessionID

	w := performJSON(t, router, http.MethodPost, base+"/start", "")
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected status 502 for transport failure, got %d", w.Code)
	}

	w = performJSON(t, router, http.MethodGet, base, "")
	session := decodeBody(t, w)["session"].(map[string]interface{})
	if session["phase"] != "configure" {
		t.Errorf("expected session to stay in configure after failed start, got %v", session["phase"])
	}
}

func TestStartCloudRestoreRunsPreflight(t *testing.T) {
	fake := workflowFake()
	preflight := &failingPreflight{err: fmt.Errorf("bucket %q is not reachable", "backups")}
	router, sessionID := setupWorkflow(t, fake, preflight)
	base := "/api/v1/restore/sessions/" + sessionID

	w := performJSON(t, router, http.MethodPut, base+"/type", `{"restore_type":"cloud"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200 switching to cloud, got %d", w.Code)
	}
	w = performJSON(t, router, http.MethodPut, base+"/cloud-target",
		`{"cloud_target":{"type":"s3","s3":{"bucket":"backups","access_key_id":"AKIA","secret_access_key":"secret"}},"verify_upload":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200 setting cloud target, got %d: %s", w.Code, w.Body.String())
	}

	w = performJSON(t, router, http.MethodPost, base+"/start", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 on preflight failure, got %d", w.Code)
	}

	// The session never left configure, so fixing the target and retrying works.
	preflight.err = nil
	w = performJSON(t, router, http.MethodPost, base+"/start", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected status 202 after preflight passes, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCrossAgentDisableClearsMappings(t *testing.T) {
	fake := workflowFake()
	router, sessionID := setupWorkflow(t, fake, nil)
	base := "/api/v1/restore/sessions/" + sessionID
	targetAgent := fake.agents[1].ID

	w := performJSON(t, router, http.MethodPut, base+"/cross-agent",
		fmt.Sprintf(`{"enabled":true,"target_agent_id":"%s"}`, targetAgent))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200 enabling cross-agent, got %d: %s", w.Code, w.Body.String())
	}
	w = performJSON(t, router, http.MethodPut, base+"/mappings",
		`{"path_mappings":[{"source_path":"/var/www","target_path":"/srv/www"}]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200 setting mappings, got %d", w.Code)
	}
	session := decodeBody(t, w)["session"].(map[string]interface{})
	if session["is_cross_agent"] != true {
		t.Error("expected session to report cross-agent")
	}

	w = performJSON(t, router, http.MethodPut, base+"/cross-agent", `{"enabled":false}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200 disabling cross-agent, got %d", w.Code)
	}
	session = decodeBody(t, w)["session"].(map[string]interface{})
	if session["is_cross_agent"] != false {
		t.Error("expected cross-agent off after disable")
	}
	if session["path_mappings"] != nil {
		t.Errorf("expected mappings cleared on disable, got %v", session["path_mappings"])
	}
	if session["target_agent_id"] != fake.snapshots[0].AgentID.String() {
		t.Errorf("expected target agent reset to source agent, got %v", session["target_agent_id"])
	}
}

func TestCloseSessionThenGone(t *testing.T) {
	fake := workflowFake()
	router, sessionID := setupWorkflow(t, fake, nil)
	base := "/api/v1/restore/sessions/" + sessionID

	w := performJSON(t, router, http.MethodDelete, base, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200 closing session, got %d", w.Code)
	}
	w = performJSON(t, router, http.MethodGet, base, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 after close, got %d", w.Code)
	}
}

func TestGetCloudProgressFallsBackToUpstream(t *testing.T) {
	fake := workflowFake()
	router, _ := setupWorkflow(t, fake, nil)

	restoreID := uuid.New()
	w := performJSON(t, router, http.MethodGet, "/api/v1/restores/"+restoreID.String()+"/progress", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["restore_id"] != restoreID.String() {
		t.Errorf("expected progress for requested restore, got %v", body["restore_id"])
	}
	if body["status"] != string(models.RestoreStatusUploading) {
		t.Errorf("expected uploading status from upstream, got %v", body["status"])
	}
}
