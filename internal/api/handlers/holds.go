package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/driftbyte/snapharbor/internal/api/middleware"
	"github.com/driftbyte/snapharbor/internal/holds"
	"github.com/driftbyte/snapharbor/internal/logging"
	"github.com/driftbyte/snapharbor/internal/models"
)

// HoldHandler manages legal holds on snapshots. Routes that mutate holds sit
// behind the hold-manager middleware; this handler still re-checks the role
// so the gate is safe even if a route is wired without it.
type HoldHandler struct {
	gate     *holds.Gate
	activity *logging.ActivityLogger
}

// NewHoldHandler creates a new hold handler
func NewHoldHandler(gate *holds.Gate, activity *logging.ActivityLogger) *HoldHandler {
	return &HoldHandler{gate: gate, activity: activity}
}

// ListHolds returns all known legal holds.
func (h *HoldHandler) ListHolds(c *gin.Context) {
	if err := h.gate.Refresh(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to refresh legal holds"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"legal_holds": h.gate.Holds()})
}

// PlaceHold places a legal hold on a snapshot. Requires a reason; holds
// block snapshot deletion upstream but never block restores.
func (h *HoldHandler) PlaceHold(c *gin.Context) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	snapshotID := c.Param("id")
	var req models.CreateLegalHoldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A reason is required"})
		return
	}

	hold, err := h.gate.Place(c.Request.Context(), claims.Role, snapshotID, req.Reason)
	if err != nil {
		_ = h.activity.LogHoldPlace(snapshotID, &claims.UserID, req.Reason, false, err.Error())
		h.holdError(c, err)
		return
	}

	_ = h.activity.LogHoldPlace(snapshotID, &claims.UserID, req.Reason, true, "")
	c.JSON(http.StatusCreated, gin.H{"legal_hold": hold})
}

// RemoveHold lifts the legal hold on a snapshot.
func (h *HoldHandler) RemoveHold(c *gin.Context) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	snapshotID := c.Param("id")
	if err := h.gate.Remove(c.Request.Context(), claims.Role, snapshotID); err != nil {
		_ = h.activity.LogHoldRemove(snapshotID, &claims.UserID, false, err.Error())
		h.holdError(c, err)
		return
	}

	_ = h.activity.LogHoldRemove(snapshotID, &claims.UserID, true, "")
	c.JSON(http.StatusOK, gin.H{"message": "Legal hold removed"})
}

func (h *HoldHandler) holdError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, holds.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, holds.ErrReasonRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, holds.ErrActionInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": "Legal hold request failed"})
	}
}
