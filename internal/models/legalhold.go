package models

import (
	"time"

	"github.com/google/uuid"
)

// LegalHold represents a legal hold placed on a snapshot to prevent deletion.
// A snapshot has at most one active hold; deleting the hold removes the
// protection. Holds never block restores, only deletion.
type LegalHold struct {
	ID         uuid.UUID `json:"id"`
	SnapshotID string    `json:"snapshot_id"`
	Reason     string    `json:"reason"`
	PlacedBy   uuid.UUID `json:"placed_by"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewLegalHold creates a new LegalHold.
func NewLegalHold(snapshotID, reason string, placedBy uuid.UUID) *LegalHold {
	return &LegalHold{
		ID:         uuid.New(),
		SnapshotID: snapshotID,
		Reason:     reason,
		PlacedBy:   placedBy,
		CreatedAt:  time.Now(),
	}
}

// CreateLegalHoldRequest is the request body for placing a legal hold.
type CreateLegalHoldRequest struct {
	Reason string `json:"reason" binding:"required"`
}
