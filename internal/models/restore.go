package models

import (
	"time"

	"github.com/google/uuid"
)

// RestoreStatus represents the current status of a restore job.
type RestoreStatus string

const (
	// RestoreStatusPending indicates the job has been accepted but not started.
	RestoreStatusPending RestoreStatus = "pending"
	// RestoreStatusRunning indicates the job is restoring files.
	RestoreStatusRunning RestoreStatus = "running"
	// RestoreStatusUploading indicates a cloud job is uploading restored data.
	RestoreStatusUploading RestoreStatus = "uploading"
	// RestoreStatusVerifying indicates a cloud job is verifying uploaded data.
	RestoreStatusVerifying RestoreStatus = "verifying"
	// RestoreStatusCompleted indicates the job finished successfully.
	RestoreStatusCompleted RestoreStatus = "completed"
	// RestoreStatusFailed indicates the job failed.
	RestoreStatusFailed RestoreStatus = "failed"
	// RestoreStatusCanceled indicates the job was canceled.
	RestoreStatusCanceled RestoreStatus = "canceled"
)

// Terminal reports whether the status is final. Terminal jobs are never
// polled again.
func (s RestoreStatus) Terminal() bool {
	switch s {
	case RestoreStatusCompleted, RestoreStatusFailed, RestoreStatusCanceled:
		return true
	}
	return false
}

// PathMapping remaps a backed-up source path to a different destination path
// during restore.
type PathMapping struct {
	SourcePath string `json:"source_path"`
	TargetPath string `json:"target_path"`
}

// RestoreProgress is the server-reported progress of a running restore.
type RestoreProgress struct {
	FilesRestored int64  `json:"files_restored"`
	TotalFiles    int64  `json:"total_files"`
	BytesRestored int64  `json:"bytes_restored"`
	TotalBytes    int64  `json:"total_bytes"`
	CurrentFile   string `json:"current_file,omitempty"`
}

// RestoreJob represents a restore dispatched to the backup server. Jobs are
// created by the console and mutated only by the server as they execute.
type RestoreJob struct {
	ID            uuid.UUID        `json:"id"`
	SnapshotID    string           `json:"snapshot_id"`
	AgentID       uuid.UUID        `json:"agent_id"`
	SourceAgentID *uuid.UUID       `json:"source_agent_id,omitempty"`
	RepositoryID  uuid.UUID        `json:"repository_id"`
	TargetPath    string           `json:"target_path,omitempty"`
	IncludePaths  []string         `json:"include_paths,omitempty"`
	PathMappings  []PathMapping    `json:"path_mappings,omitempty"`
	CloudTarget   *CloudTarget     `json:"cloud_target,omitempty"`
	Status        RestoreStatus    `json:"status"`
	Progress      *RestoreProgress `json:"progress,omitempty"`
	ErrorMessage  string           `json:"error_message,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	StartedAt     *time.Time       `json:"started_at,omitempty"`
	CompletedAt   *time.Time       `json:"completed_at,omitempty"`
}

// IsCrossAgent reports whether the job restores onto a different agent than
// the one that captured the snapshot.
func (r *RestoreJob) IsCrossAgent() bool {
	return r.SourceAgentID != nil && *r.SourceAgentID != r.AgentID
}

// CloudRestoreProgress is one poll of a cloud restore's upload progress.
// VerifiedChecksum is nil when the job did not request verification; that is
// distinct from a failed verification (non-nil false).
type CloudRestoreProgress struct {
	RestoreID       uuid.UUID     `json:"restore_id"`
	Status          RestoreStatus `json:"status"`
	PercentComplete float64       `json:"percent_complete"`
	UploadedFiles   int64         `json:"uploaded_files"`
	TotalFiles      int64         `json:"total_files"`
	UploadedBytes   int64         `json:"uploaded_bytes"`
	TotalBytes      int64         `json:"total_bytes"`
	CurrentFile     string        `json:"current_file,omitempty"`
	VerifiedChecksum *bool        `json:"verified_checksum,omitempty"`
	ErrorMessage    string        `json:"error_message,omitempty"`
}

// PreviewEntry is one per-file line of a restore preview. The server bounds
// the list; the console renders it as-is.
type PreviewEntry struct {
	Path        string `json:"path"`
	Type        string `json:"type"` // "file" or "dir"
	Size        int64  `json:"size"`
	HasConflict bool   `json:"has_conflict"`
}

// RestorePreview is the ephemeral result of a dry-run restore. It is never
// persisted; a preview lives only as long as the workflow session that
// requested it.
type RestorePreview struct {
	TotalFiles      int64          `json:"total_files"`
	TotalDirs       int64          `json:"total_dirs"`
	TotalSize       int64          `json:"total_size"`
	SelectedSize    int64          `json:"selected_size,omitempty"`
	DiskSpaceNeeded int64          `json:"disk_space_needed"`
	ConflictCount   int            `json:"conflict_count"`
	SelectedPaths   []string       `json:"selected_paths,omitempty"`
	Files           []PreviewEntry `json:"files,omitempty"`
}

// PreviewRestoreRequest is the dry-run request sent to the backup server.
// IncludePaths and PathMappings are omitted entirely when empty: an empty
// include list means "restore everything", never "restore nothing".
type PreviewRestoreRequest struct {
	SnapshotID    string        `json:"snapshot_id" binding:"required"`
	AgentID       uuid.UUID     `json:"agent_id" binding:"required"`
	SourceAgentID *uuid.UUID    `json:"source_agent_id,omitempty"`
	RepositoryID  uuid.UUID     `json:"repository_id" binding:"required"`
	TargetPath    string        `json:"target_path" binding:"required"`
	IncludePaths  []string      `json:"include_paths,omitempty"`
	PathMappings  []PathMapping `json:"path_mappings,omitempty"`
}

// CreateRestoreRequest is the commit request for an agent-target restore. It
// carries the same shape the preview was computed for.
type CreateRestoreRequest struct {
	SnapshotID    string        `json:"snapshot_id" binding:"required"`
	AgentID       uuid.UUID     `json:"agent_id" binding:"required"`
	SourceAgentID *uuid.UUID    `json:"source_agent_id,omitempty"`
	RepositoryID  uuid.UUID     `json:"repository_id" binding:"required"`
	TargetPath    string        `json:"target_path" binding:"required"`
	IncludePaths  []string      `json:"include_paths,omitempty"`
	PathMappings  []PathMapping `json:"path_mappings,omitempty"`
}

// CreateCloudRestoreRequest is the commit request for a cloud-target restore.
// Cloud restores have no target path and no path mappings; the restored tree
// is uploaded under the target's prefix.
type CreateCloudRestoreRequest struct {
	SnapshotID   string      `json:"snapshot_id" binding:"required"`
	AgentID      uuid.UUID   `json:"agent_id" binding:"required"`
	RepositoryID uuid.UUID   `json:"repository_id" binding:"required"`
	IncludePaths []string    `json:"include_paths,omitempty"`
	CloudTarget  CloudTarget `json:"cloud_target" binding:"required"`
	VerifyUpload bool        `json:"verify_upload"`
}
