package logging

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/driftbyte/snapharbor/internal/database"
)

func TestActivityLoggerLogActivity(t *testing.T) {
	root := t.TempDir()
	dbPath := filepath.Join(root, "data", "test.db")

	db, err := database.NewDB(dbPath)
	if err != nil {
		t.Fatalf("failed to create db: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		t.Fatalf("failed to migrate db: %v", err)
	}

	logger := NewActivityLogger(db.DB)

	userID := uuid.New()
	if err := logger.LogRestoreCreate("abc123", &userID, true, true, ""); err != nil {
		t.Fatalf("failed to log restore activity: %v", err)
	}
	if err := logger.LogHoldPlace("abc123", &userID, "litigation", true, ""); err != nil {
		t.Fatalf("failed to log hold activity: %v", err)
	}

	activities, err := logger.GetActivities("abc123", "", time.Time{}, 10)
	if err != nil {
		t.Fatalf("failed to query activities: %v", err)
	}
	if len(activities) != 2 {
		t.Fatalf("expected 2 activities, got %d", len(activities))
	}
	if activities[0].UserID == nil || *activities[0].UserID != userID {
		t.Fatalf("expected user id to round-trip, got %+v", activities[0].UserID)
	}

	holds, err := logger.GetActivities("abc123", ActivityHoldPlace, time.Time{}, 10)
	if err != nil {
		t.Fatalf("failed to filter activities: %v", err)
	}
	if len(holds) != 1 || holds[0].Metadata["reason"] != "litigation" {
		t.Fatalf("unexpected hold activities: %+v", holds)
	}

	if err := logger.CleanupOldActivities(24 * time.Hour); err != nil {
		t.Fatalf("failed to cleanup activities: %v", err)
	}
}
