package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/driftbyte/snapharbor/internal/api/middleware"
	"github.com/driftbyte/snapharbor/internal/auth"
	"github.com/driftbyte/snapharbor/internal/logging"
	"github.com/driftbyte/snapharbor/internal/models"
	"github.com/driftbyte/snapharbor/internal/restore"
	"github.com/driftbyte/snapharbor/internal/upstream"
)

// TargetPreflight verifies that a cloud target is reachable before a restore
// is dispatched to it.
type TargetPreflight interface {
	Check(ctx context.Context, target *models.CloudTarget) error
}

// RestoreHandler drives the restore workflow sessions: the server-side state
// of the console's restore modal.
type RestoreHandler struct {
	api        upstream.API
	manager    *restore.Manager
	dispatcher *restore.Dispatcher
	activity   *logging.ActivityLogger
	preflight  TargetPreflight // nil disables preflight
}

// NewRestoreHandler creates a new restore handler
func NewRestoreHandler(api upstream.API, manager *restore.Manager, dispatcher *restore.Dispatcher, activity *logging.ActivityLogger, preflight TargetPreflight) *RestoreHandler {
	return &RestoreHandler{
		api:        api,
		manager:    manager,
		dispatcher: dispatcher,
		activity:   activity,
		preflight:  preflight,
	}
}

// OpenSession opens a workflow session for a snapshot. The file listing is
// fetched up front so the selection model is ready; a listing message
// (partial or unavailable listing) is passed through to the client.
func (h *RestoreHandler) OpenSession(c *gin.Context) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var req struct {
		SnapshotID string `json:"snapshot_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snapshot, err := h.findSnapshot(c.Request.Context(), req.SnapshotID)
	if err != nil {
		upstreamError(c, err, "Failed to load snapshot")
		return
	}
	if snapshot == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Snapshot not found"})
		return
	}

	agents, err := h.api.ListAgents(c.Request.Context())
	if err != nil {
		upstreamError(c, err, "Failed to list agents")
		return
	}

	listing, err := h.api.ListSnapshotFiles(c.Request.Context(), snapshot.ID)
	if err != nil {
		upstreamError(c, err, "Failed to list snapshot files")
		return
	}

	session := h.manager.Open(claims.UserID, *snapshot, len(agents))
	entries := make([]restore.FileEntry, 0, len(listing.Files))
	for _, file := range listing.Files {
		entries = append(entries, restore.FileEntry{
			Path: file.Path,
			Type: file.Type,
			Size: file.Size,
		})
	}
	session.SetFileListing(entries)

	resp := gin.H{
		"session": session.State(),
		"files":   listing.Files,
	}
	if listing.Message != "" {
		resp["message"] = listing.Message
	}
	c.JSON(http.StatusCreated, resp)
}

// GetSession returns the session's current state.
func (h *RestoreHandler) GetSession(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session.State()})
}

// CloseSession closes the session. A dispatched job keeps running upstream
// and stays visible in the jobs list.
func (h *RestoreHandler) CloseSession(c *gin.Context) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid session ID"})
		return
	}

	if err := h.manager.Close(claims.UserID, sessionID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Session closed"})
}

// ListFiles returns the session's file listing annotated with selection
// state, so the client can render implied rows as checked and disabled.
func (h *RestoreHandler) ListFiles(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": session.Files()})
}

// SetDestination updates the destination mode and custom path.
func (h *RestoreHandler) SetDestination(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var req struct {
		Mode       string `json:"mode" binding:"required"`
		CustomPath string `json:"custom_path"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.respond(c, session, session.SetDestination(restore.DestinationMode(req.Mode), req.CustomPath))
}

// SetRestoreType switches between agent and cloud restore.
func (h *RestoreHandler) SetRestoreType(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var req struct {
		RestoreType string `json:"restore_type" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.respond(c, session, session.SetRestoreType(restore.RestoreType(req.RestoreType)))
}

// SetCrossAgent enables or disables cross-agent restore. Disabling resets
// the target agent and clears path mappings.
func (h *RestoreHandler) SetCrossAgent(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var req struct {
		Enabled       bool       `json:"enabled"`
		TargetAgentID *uuid.UUID `json:"target_agent_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	target := uuid.Nil
	if req.TargetAgentID != nil {
		target = *req.TargetAgentID
	}
	h.respond(c, session, session.SetCrossAgent(req.Enabled, target))
}

// SetMappings replaces the editable path mapping rows.
func (h *RestoreHandler) SetMappings(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var req struct {
		Mappings []restore.MappingRow `json:"path_mappings"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.respond(c, session, session.SetMappings(req.Mappings))
}

// SetCloudTarget replaces the cloud target draft.
func (h *RestoreHandler) SetCloudTarget(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var req struct {
		CloudTarget  models.CloudTarget `json:"cloud_target" binding:"required"`
		VerifyUpload bool               `json:"verify_upload"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.respond(c, session, session.SetCloudTarget(req.CloudTarget, req.VerifyUpload))
}

// ToggleSelection toggles explicit selection of one path.
func (h *RestoreHandler) ToggleSelection(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var req struct {
		Path string `json:"path" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.respond(c, session, session.TogglePath(req.Path))
}

// SelectAll explicitly selects every listed path.
func (h *RestoreHandler) SelectAll(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	h.respond(c, session, session.SelectAllPaths())
}

// ClearSelection empties the selection, returning to restore-everything.
func (h *RestoreHandler) ClearSelection(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	h.respond(c, session, session.ClearSelection())
}

// Preview performs the dry run and moves the session to the preview phase.
func (h *RestoreHandler) Preview(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	preview, err := session.RequestPreview(c.Request.Context(), h.api)
	if err != nil {
		h.workflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session": session.State(),
		"preview": preview,
	})
}

// Back returns from preview to configure, discarding the preview.
func (h *RestoreHandler) Back(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	h.respond(c, session, session.Back())
}

// Start dispatches the restore. Cloud targets are preflighted first when a
// checker is configured; a failed preflight blocks submission without
// touching the session phase.
func (h *RestoreHandler) Start(c *gin.Context) {
	claims, _ := middleware.CurrentClaims(c)
	session, ok := h.session(c)
	if !ok {
		return
	}

	if err := h.runPreflight(c.Request.Context(), session); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := session.Start(c.Request.Context(), h.dispatcher)
	if err != nil {
		h.logStartOutcome(session, claims, false, err.Error())
		h.workflowError(c, err)
		return
	}

	h.logStartOutcome(session, claims, true, "")
	c.JSON(http.StatusAccepted, gin.H{
		"session": session.State(),
		"job":     job,
	})
}

// ListRestores proxies the upstream job list, optionally filtered by agent.
func (h *RestoreHandler) ListRestores(c *gin.Context) {
	var agentID *uuid.UUID
	if raw := c.Query("agent_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid agent_id"})
			return
		}
		agentID = &id
	}

	restores, err := h.api.ListRestores(c.Request.Context(), agentID)
	if err != nil {
		upstreamError(c, err, "Failed to list restores")
		return
	}
	c.JSON(http.StatusOK, gin.H{"restores": restores})
}

// GetCloudProgress returns the latest polled progress for a cloud restore.
func (h *RestoreHandler) GetCloudProgress(c *gin.Context) {
	restoreID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid restore ID"})
		return
	}

	if progress, ok := h.dispatcher.LatestProgress(restoreID); ok {
		c.JSON(http.StatusOK, progress)
		return
	}

	// Nothing cached yet; ask upstream directly.
	progress, err := h.api.GetCloudRestoreProgress(c.Request.Context(), restoreID)
	if err != nil {
		upstreamError(c, err, "Failed to get restore progress")
		return
	}
	c.JSON(http.StatusOK, progress)
}

func (h *RestoreHandler) runPreflight(ctx context.Context, session *restore.Session) error {
	if h.preflight == nil {
		return nil
	}
	target := session.CloudTargetDraft()
	if target == nil || !session.IsCloud() {
		return nil
	}
	return h.preflight.Check(ctx, target)
}

func (h *RestoreHandler) logStartOutcome(session *restore.Session, claims *auth.Claims, success bool, errorMsg string) {
	var userID *uuid.UUID
	if claims != nil {
		id := claims.UserID
		userID = &id
	}

	state := session.State()
	if state.RestoreType == restore.RestoreTypeCloud {
		targetType := ""
		if target := session.CloudTargetDraft(); target != nil {
			targetType = string(target.Type)
		}
		_ = h.activity.LogCloudRestoreCreate(session.Snapshot.ID, userID, targetType, success, errorMsg)
		return
	}
	_ = h.activity.LogRestoreCreate(session.Snapshot.ID, userID, state.CrossAgent, success, errorMsg)
}

// session resolves the session from the path and the caller's claims.
func (h *RestoreHandler) session(c *gin.Context) (*restore.Session, bool) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return nil, false
	}

	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid session ID"})
		return nil, false
	}

	session, err := h.manager.Get(claims.UserID, sessionID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return nil, false
	}
	return session, true
}

// respond writes the mutated session state or the workflow error.
func (h *RestoreHandler) respond(c *gin.Context, session *restore.Session, err error) {
	if err != nil {
		h.workflowError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session.State()})
}

// workflowError maps workflow errors onto HTTP statuses.
func (h *RestoreHandler) workflowError(c *gin.Context, err error) {
	var validation *restore.ValidationError
	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Message, "field": validation.Field})
	case errors.Is(err, restore.ErrPreviewUnavailable):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, restore.ErrPreviewInFlight),
		errors.Is(err, restore.ErrStartInFlight),
		errors.Is(err, restore.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, restore.ErrSessionClosed):
		c.JSON(http.StatusGone, gin.H{"error": err.Error()})
	default:
		upstreamError(c, err, "Restore request failed")
	}
}

// findSnapshot locates one snapshot by id in the upstream listing.
func (h *RestoreHandler) findSnapshot(ctx context.Context, snapshotID string) (*models.Snapshot, error) {
	snapshots, err := h.api.ListSnapshots(ctx, nil, nil)
	if err != nil {
		return nil, err
	}
	for i := range snapshots {
		if snapshots[i].ID == snapshotID || snapshots[i].ShortID == snapshotID {
			return &snapshots[i], nil
		}
	}
	return nil, nil
}
