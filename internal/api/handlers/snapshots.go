package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/driftbyte/snapharbor/internal/api/middleware"
	"github.com/driftbyte/snapharbor/internal/holds"
	"github.com/driftbyte/snapharbor/internal/models"
	"github.com/driftbyte/snapharbor/internal/restore"
	"github.com/driftbyte/snapharbor/internal/upstream"
)

// snapshotView is a snapshot annotated with console-side state: whether a
// legal hold protects it and whether it is picked for comparison.
type snapshotView struct {
	models.Snapshot
	LegalHold         *models.LegalHold `json:"legal_hold,omitempty"`
	SelectedToCompare bool              `json:"selected_to_compare"`
}

// SnapshotHandler serves snapshot browsing: listing, file trees and the
// pairwise compare picker.
type SnapshotHandler struct {
	api     upstream.API
	gate    *holds.Gate
	compare *restore.CompareRegistry
}

// NewSnapshotHandler creates a new snapshot handler
func NewSnapshotHandler(api upstream.API, gate *holds.Gate, compare *restore.CompareRegistry) *SnapshotHandler {
	return &SnapshotHandler{api: api, gate: gate, compare: compare}
}

// ListAgents proxies the agent list.
func (h *SnapshotHandler) ListAgents(c *gin.Context) {
	agents, err := h.api.ListAgents(c.Request.Context())
	if err != nil {
		upstreamError(c, err, "Failed to list agents")
		return
	}
	c.JSON(http.StatusOK, gin.H{"agents": agents})
}

// ListSnapshots lists snapshots, optionally filtered by agent or repository,
// annotated with hold and compare state.
func (h *SnapshotHandler) ListSnapshots(c *gin.Context) {
	var agentID, repositoryID *uuid.UUID
	if raw := c.Query("agent_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid agent_id"})
			return
		}
		agentID = &id
	}
	if raw := c.Query("repository_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid repository_id"})
			return
		}
		repositoryID = &id
	}

	snapshots, err := h.api.ListSnapshots(c.Request.Context(), agentID, repositoryID)
	if err != nil {
		upstreamError(c, err, "Failed to list snapshots")
		return
	}

	claims, _ := middleware.CurrentClaims(c)
	var compared map[string]bool
	if claims != nil {
		compared = make(map[string]bool)
		for _, id := range h.compare.For(claims.UserID).IDs() {
			compared[id] = true
		}
	}

	views := make([]snapshotView, 0, len(snapshots))
	for _, snapshot := range snapshots {
		view := snapshotView{Snapshot: snapshot}
		if hold, ok := h.gate.HoldFor(snapshot.ID); ok {
			held := hold
			view.LegalHold = &held
		}
		view.SelectedToCompare = compared[snapshot.ID]
		views = append(views, view)
	}

	c.JSON(http.StatusOK, gin.H{"snapshots": views})
}

// ListSnapshotFiles proxies the file listing for one snapshot. An upstream
// "message" (partial listing, warnings) is passed through untouched.
func (h *SnapshotHandler) ListSnapshotFiles(c *gin.Context) {
	snapshotID := c.Param("id")
	if snapshotID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Snapshot ID is required"})
		return
	}

	listing, err := h.api.ListSnapshotFiles(c.Request.Context(), snapshotID)
	if err != nil {
		upstreamError(c, err, "Failed to list snapshot files")
		return
	}

	c.JSON(http.StatusOK, listing)
}

// ToggleCompare adds or removes a snapshot from the caller's compare pair.
func (h *SnapshotHandler) ToggleCompare(c *gin.Context) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	snapshotID := c.Param("id")
	selection := h.compare.For(claims.UserID)
	selected, err := selection.Toggle(snapshotID)
	if errors.Is(err, restore.ErrCompareFull) {
		c.JSON(http.StatusConflict, gin.H{"error": "Only two snapshots can be compared at a time"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update compare selection"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"selected":  selected,
		"snapshots": selection.IDs(),
	})
}

// GetCompare returns the caller's current compare selection.
func (h *SnapshotHandler) GetCompare(c *gin.Context) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	selection := h.compare.For(claims.UserID)
	a, b, ready := selection.Pair()
	resp := gin.H{
		"snapshots": selection.IDs(),
		"ready":     ready,
	}
	if ready {
		resp["pair"] = []string{a, b}
	}
	c.JSON(http.StatusOK, resp)
}

// ClearCompare empties the caller's compare selection.
func (h *SnapshotHandler) ClearCompare(c *gin.Context) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	h.compare.For(claims.UserID).Clear()
	c.JSON(http.StatusOK, gin.H{"snapshots": []string{}})
}

// upstreamError translates an upstream API failure into a console response,
// preserving the server's status code and message where available.
func upstreamError(c *gin.Context, err error, fallback string) {
	var apiErr *upstream.APIError
	if errors.As(err, &apiErr) {
		c.JSON(apiErr.StatusCode, gin.H{"error": apiErr.Message})
		return
	}
	c.JSON(http.StatusBadGateway, gin.H{"error": fallback})
}
