package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/driftbyte/snapharbor/internal/logging"
)

// ActivityHandler serves the console's audit trail: restore submissions,
// legal hold changes and logins.
type ActivityHandler struct {
	activity *logging.ActivityLogger
}

// NewActivityHandler creates a new activity handler
func NewActivityHandler(activity *logging.ActivityLogger) *ActivityHandler {
	return &ActivityHandler{activity: activity}
}

// ListActivities returns recent audit entries, newest first, optionally
// filtered by snapshot or activity type.
func (h *ActivityHandler) ListActivities(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Limit must be between 1 and 500"})
			return
		}
		limit = parsed
	}

	snapshotID := c.Query("snapshot_id")
	activityType := c.Query("type")

	var (
		activities []*logging.Activity
		err        error
	)
	if snapshotID == "" && activityType == "" {
		activities, err = h.activity.GetRecentActivities(limit)
	} else {
		activities, err = h.activity.GetActivities(snapshotID, activityType, time.Time{}, limit)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load activity log"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"activities": activities})
}
