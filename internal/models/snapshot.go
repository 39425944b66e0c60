package models

import (
	"time"

	"github.com/google/uuid"
)

// Snapshot represents a point-in-time backup capture of one or more paths on
// an agent, stored in a repository. Snapshots are immutable; restores, holds
// and comments reference them but never own them.
type Snapshot struct {
	ID           string    `json:"id"`
	ShortID      string    `json:"short_id"`
	AgentID      uuid.UUID `json:"agent_id"`
	RepositoryID uuid.UUID `json:"repository_id"`
	Hostname     string    `json:"hostname,omitempty"`
	Time         time.Time `json:"time"`
	Paths        []string  `json:"paths"`
	SizeBytes    *int64    `json:"size_bytes,omitempty"`
}

// Agent is the subset of agent state the restore console needs: identity and
// display fields for choosing a cross-agent restore target.
type Agent struct {
	ID       uuid.UUID `json:"id"`
	Hostname string    `json:"hostname"`
	OrgID    uuid.UUID `json:"org_id,omitempty"`
	LastSeen time.Time `json:"last_seen,omitempty"`
}

// SnapshotFile is one entry of a snapshot's flat file listing.
type SnapshotFile struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Type    string `json:"type"` // "file" or "dir"
	Size    int64  `json:"size"`
	ModTime string `json:"mod_time,omitempty"`
}

// FileListing is the result of listing files in a snapshot. When the backing
// repository cannot enumerate files, Files is empty and Message carries a
// human-readable explanation that must be shown verbatim.
type FileListing struct {
	Files   []SnapshotFile `json:"files"`
	Message string         `json:"message,omitempty"`
}
