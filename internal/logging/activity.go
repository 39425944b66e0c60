package logging

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ActivityLogger records console actions for the audit trail. Restore
// submissions and legal hold changes are the events auditors care about,
// so those always hit the database; logins are recorded too.
type ActivityLogger struct {
	db *sql.DB
	mu sync.Mutex
}

// Activity represents a logged console action.
type Activity struct {
	Timestamp    time.Time              `json:"timestamp"`
	SnapshotID   string                 `json:"snapshot_id,omitempty"`
	UserID       *uuid.UUID             `json:"user_id,omitempty"`
	ActivityType string                 `json:"activity_type"`
	Description  string                 `json:"description"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	Success      bool                   `json:"success"`
	ErrorMessage string                 `json:"error_message,omitempty"`
}

// Activity type constants
const (
	ActivityRestoreCreate      = "restore.create"
	ActivityCloudRestoreCreate = "restore.cloud.create"
	ActivityRestorePreview     = "restore.preview"
	ActivityHoldPlace          = "hold.place"
	ActivityHoldRemove         = "hold.remove"
	ActivityLogin              = "auth.login"
	ActivityError              = "error"
)

// NewActivityLogger creates an activity logger backed by the given database.
func NewActivityLogger(db *sql.DB) *ActivityLogger {
	return &ActivityLogger{db: db}
}

// LogActivity writes an activity row.
func (al *ActivityLogger) LogActivity(activity *Activity) error {
	al.mu.Lock()
	defer al.mu.Unlock()

	if activity.Timestamp.IsZero() {
		activity.Timestamp = time.Now()
	}

	if al.db == nil {
		return nil // Database not configured
	}

	metadataJSON, err := json.Marshal(activity.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	var userID interface{}
	if activity.UserID != nil {
		userID = activity.UserID.String()
	}

	query := `
		INSERT INTO activity_log (
			timestamp, snapshot_id, user_id, activity_type,
			description, metadata, success, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = al.db.Exec(
		query,
		activity.Timestamp,
		activity.SnapshotID,
		userID,
		activity.ActivityType,
		activity.Description,
		string(metadataJSON),
		activity.Success,
		activity.ErrorMessage,
	)

	if err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}

	return nil
}

// LogRestoreCreate logs a restore submission against an agent.
func (al *ActivityLogger) LogRestoreCreate(snapshotID string, userID *uuid.UUID, crossAgent bool, success bool, errorMsg string) error {
	metadata := map[string]interface{}{
		"cross_agent": crossAgent,
	}
	if errorMsg != "" {
		metadata["error"] = errorMsg
	}

	return al.LogActivity(&Activity{
		SnapshotID:   snapshotID,
		UserID:       userID,
		ActivityType: ActivityRestoreCreate,
		Description:  "Restore submitted",
		Metadata:     metadata,
		Success:      success,
		ErrorMessage: errorMsg,
	})
}

// LogCloudRestoreCreate logs a restore dispatched to a cloud target.
func (al *ActivityLogger) LogCloudRestoreCreate(snapshotID string, userID *uuid.UUID, targetType string, success bool, errorMsg string) error {
	metadata := map[string]interface{}{
		"target_type": targetType,
	}
	if errorMsg != "" {
		metadata["error"] = errorMsg
	}

	return al.LogActivity(&Activity{
		SnapshotID:   snapshotID,
		UserID:       userID,
		ActivityType: ActivityCloudRestoreCreate,
		Description:  fmt.Sprintf("Cloud restore submitted to %s", targetType),
		Metadata:     metadata,
		Success:      success,
		ErrorMessage: errorMsg,
	})
}

// LogHoldPlace logs a legal hold placement.
func (al *ActivityLogger) LogHoldPlace(snapshotID string, userID *uuid.UUID, reason string, success bool, errorMsg string) error {
	return al.LogActivity(&Activity{
		SnapshotID:   snapshotID,
		UserID:       userID,
		ActivityType: ActivityHoldPlace,
		Description:  "Legal hold placed",
		Metadata:     map[string]interface{}{"reason": reason},
		Success:      success,
		ErrorMessage: errorMsg,
	})
}

// LogHoldRemove logs a legal hold removal.
func (al *ActivityLogger) LogHoldRemove(snapshotID string, userID *uuid.UUID, success bool, errorMsg string) error {
	return al.LogActivity(&Activity{
		SnapshotID:   snapshotID,
		UserID:       userID,
		ActivityType: ActivityHoldRemove,
		Description:  "Legal hold removed",
		Success:      success,
		ErrorMessage: errorMsg,
	})
}

// LogLogin logs a console login attempt.
func (al *ActivityLogger) LogLogin(userID *uuid.UUID, username string, success bool, errorMsg string) error {
	return al.LogActivity(&Activity{
		UserID:       userID,
		ActivityType: ActivityLogin,
		Description:  fmt.Sprintf("Login attempt for %s", username),
		Metadata:     map[string]interface{}{"username": username},
		Success:      success,
		ErrorMessage: errorMsg,
	})
}

// GetActivities retrieves activities from the database
func (al *ActivityLogger) GetActivities(snapshotID string, activityType string, since time.Time, limit int) ([]*Activity, error) {
	if al.db == nil {
		return nil, fmt.Errorf("database not available")
	}

	query := `
		SELECT timestamp, snapshot_id, user_id, activity_type, description, metadata, success, error_message
		FROM activity_log
		WHERE 1=1
	`
	args := make([]interface{}, 0)

	if snapshotID != "" {
		query += " AND snapshot_id = ?"
		args = append(args, snapshotID)
	}

	if activityType != "" {
		query += " AND activity_type = ?"
		args = append(args, activityType)
	}

	if !since.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, since)
	}

	query += " ORDER BY timestamp DESC"

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := al.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities: %w", err)
	}
	defer rows.Close()

	activities := make([]*Activity, 0)

	for rows.Next() {
		activity := &Activity{}
		var userID sql.NullString
		var metadataJSON sql.NullString

		err := rows.Scan(
			&activity.Timestamp,
			&activity.SnapshotID,
			&userID,
			&activity.ActivityType,
			&activity.Description,
			&metadataJSON,
			&activity.Success,
			&activity.ErrorMessage,
		)

		if err != nil {
			log.Printf("[ActivityLogger] Error scanning row: %v", err)
			continue
		}

		if userID.Valid {
			if uid, err := uuid.Parse(userID.String); err == nil {
				activity.UserID = &uid
			}
		}

		if metadataJSON.Valid && metadataJSON.String != "" {
			if err := json.Unmarshal([]byte(metadataJSON.String), &activity.Metadata); err != nil {
				log.Printf("[ActivityLogger] Error unmarshaling metadata: %v", err)
			}
		}

		activities = append(activities, activity)
	}

	return activities, rows.Err()
}

// GetRecentActivities retrieves the most recent activities
func (al *ActivityLogger) GetRecentActivities(limit int) ([]*Activity, error) {
	return al.GetActivities("", "", time.Time{}, limit)
}

// CleanupOldActivities removes activities older than a specified duration
func (al *ActivityLogger) CleanupOldActivities(olderThan time.Duration) error {
	if al.db == nil {
		return fmt.Errorf("database not available")
	}

	cutoff := time.Now().Add(-olderThan)

	result, err := al.db.Exec(`
		DELETE FROM activity_log
		WHERE timestamp < ?
	`, cutoff)

	if err != nil {
		return fmt.Errorf("failed to cleanup old activities: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	log.Printf("[ActivityLogger] Cleaned up %d activities older than %v", rowsAffected, olderThan)

	return nil
}
