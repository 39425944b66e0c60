package restore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/driftbyte/snapharbor/internal/models"
)

// Phase is the modal-local step of the restore workflow. Transitions are
// one-directional and enforced: preview is only reachable for agent-target
// restores, and nothing skips configure.
type Phase string

const (
	// PhaseConfigure collects destination, mappings, selection and target.
	PhaseConfigure Phase = "configure"
	// PhasePreview shows the server's dry-run result before commit.
	PhasePreview Phase = "preview"
	// PhaseRestoring means the job was dispatched; completed/failed are
	// display states within it.
	PhaseRestoring Phase = "restoring"
)

// RestoreType selects where the restored tree goes.
type RestoreType string

const (
	// RestoreTypeAgent restores into an agent's filesystem.
	RestoreTypeAgent RestoreType = "agent"
	// RestoreTypeCloud uploads the restored tree to a cloud target.
	RestoreTypeCloud RestoreType = "cloud"
)

// DestinationMode selects between the snapshot's original location and a
// user-supplied path.
type DestinationMode string

const (
	// DestinationOriginal restores to the original location ("/").
	DestinationOriginal DestinationMode = "original"
	// DestinationCustom restores under a user-supplied absolute path.
	DestinationCustom DestinationMode = "custom"
)

// MappingRow is one editable path-mapping row. Rows with either side empty
// are kept while editing but filtered out on submit.
type MappingRow struct {
	SourcePath string `json:"source_path"`
	TargetPath string `json:"target_path"`
}

var (
	// ErrInvalidTransition is returned when a phase transition is not in the
	// allowed-transitions table.
	ErrInvalidTransition = errors.New("invalid workflow phase transition")
	// ErrPreviewUnavailable is returned when preview is requested for a
	// cloud-target restore; the server computes no dry-run for upload jobs.
	ErrPreviewUnavailable = errors.New("preview is not available for cloud restores")
	// ErrPreviewInFlight is returned when a preview is requested while a
	// prior one has not resolved.
	ErrPreviewInFlight = errors.New("a preview request is already in flight")
	// ErrStartInFlight is returned when a submission is requested while a
	// prior one has not resolved. Without it two racing start requests
	// would both pass the phase check and dispatch two jobs.
	ErrStartInFlight = errors.New("a restore submission is already in flight")
	// ErrSessionClosed is returned for operations on a closed session.
	ErrSessionClosed = errors.New("restore session is closed")
)

// ValidationError is a client-local configuration error. It blocks
// submission without any upstream round-trip.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// PreviewClient is the dry-run dependency of a session.
type PreviewClient interface {
	PreviewRestore(ctx context.Context, req models.PreviewRestoreRequest) (*models.RestorePreview, error)
}

// Submitter dispatches finalized restores.
type Submitter interface {
	SubmitAgent(ctx context.Context, req models.CreateRestoreRequest) (*models.RestoreJob, error)
	SubmitCloud(ctx context.Context, req models.CreateCloudRestoreRequest) (*models.RestoreJob, error)
}

// Session is one open restore-configuration workflow, the server-side
// counterpart of a restore modal. All state a modal would hold lives here:
// the phase, the form fields, the selection model and the last preview.
// Server-owned entities (snapshots, jobs, holds) are never mutated locally.
type Session struct {
	mu sync.Mutex

	ID       uuid.UUID
	UserID   uuid.UUID
	Snapshot models.Snapshot

	// agentCount gates the cross-agent toggle: it is only offered when the
	// org has more than one agent.
	agentCount int

	phase       Phase
	destMode    DestinationMode
	customPath  string
	restoreType RestoreType

	crossAgentEnabled bool
	targetAgentID     uuid.UUID

	mappings  []MappingRow
	selection *Selection

	cloudTarget  *models.CloudTarget
	verifyUpload bool

	preview        *models.RestorePreview
	previewPending bool
	startPending   bool

	lastError string
	job       *models.RestoreJob
	closed    bool

	createdAt time.Time
	updatedAt time.Time
}

// NewSession opens a workflow session for the given snapshot in the
// configure phase. The target agent starts as the snapshot's own agent.
func NewSession(userID uuid.UUID, snapshot models.Snapshot, agentCount int) *Session {
	now := time.Now()
	return &Session{
		ID:            uuid.New(),
		UserID:        userID,
		Snapshot:      snapshot,
		agentCount:    agentCount,
		phase:         PhaseConfigure,
		destMode:      DestinationOriginal,
		restoreType:   RestoreTypeAgent,
		targetAgentID: snapshot.AgentID,
		selection:     NewSelection(nil),
		createdAt:     now,
		updatedAt:     now,
	}
}

// SetFileListing replaces the selection model's listing. Any prior explicit
// selection is discarded with it.
func (s *Session) SetFileListing(entries []FileEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = NewSelection(entries)
	s.touch()
}

// Phase returns the current workflow phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// LastError returns the most recent request failure, if any.
func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// Job returns the dispatched restore job, if the session reached restoring.
func (s *Session) Job() *models.RestoreJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.job
}

// Preview returns the stored dry-run result, if any.
func (s *Session) Preview() *models.RestorePreview {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preview
}

// IsCloud reports whether the session targets a cloud destination.
func (s *Session) IsCloud() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restoreType == RestoreTypeCloud
}

// CloudTargetDraft returns the current cloud target draft, or nil.
func (s *Session) CloudTargetDraft() *models.CloudTarget {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cloudTarget
}

// CrossAgentOffered reports whether the cross-agent toggle is available.
// agentCount is fixed at session creation, so no lock is needed.
func (s *Session) CrossAgentOffered() bool {
	return s.agentCount > 1
}

// IsCrossAgent reports whether the restore targets a different agent than
// the snapshot's source. The toggle being enabled is not enough; the chosen
// target must actually differ.
func (s *Session) IsCrossAgent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isCrossAgentLocked()
}

func (s *Session) isCrossAgentLocked() bool {
	return s.crossAgentEnabled && s.targetAgentID != s.Snapshot.AgentID
}

// SetDestination updates the destination mode and, for custom mode, the
// destination path.
func (s *Session) SetDestination(mode DestinationMode, customPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireConfigureLocked(); err != nil {
		return err
	}
	switch mode {
	case DestinationOriginal, DestinationCustom:
	default:
		return &ValidationError{Field: "destination_mode", Message: "must be original or custom"}
	}
	s.destMode = mode
	s.customPath = customPath
	s.touch()
	return nil
}

// SetRestoreType updates the restore target type. Switching away from cloud
// keeps the cloud draft so the user can switch back without retyping.
func (s *Session) SetRestoreType(t RestoreType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireConfigureLocked(); err != nil {
		return err
	}
	switch t {
	case RestoreTypeAgent, RestoreTypeCloud:
	default:
		return &ValidationError{Field: "restore_type", Message: "must be agent or cloud"}
	}
	s.restoreType = t
	s.touch()
	return nil
}

// SetCrossAgent enables or disables cross-agent restore. Disabling resets
// the target agent to the snapshot's source agent and clears all path
// mappings.
func (s *Session) SetCrossAgent(enabled bool, targetAgentID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireConfigureLocked(); err != nil {
		return err
	}
	if enabled && !s.CrossAgentOffered() {
		return &ValidationError{Field: "cross_agent", Message: "only one agent exists"}
	}

	if !enabled {
		s.crossAgentEnabled = false
		s.targetAgentID = s.Snapshot.AgentID
		s.mappings = nil
		s.touch()
		return nil
	}

	if targetAgentID == uuid.Nil {
		return &ValidationError{Field: "target_agent_id", Message: "target agent is required"}
	}
	s.crossAgentEnabled = true
	s.targetAgentID = targetAgentID
	s.touch()
	return nil
}

// SetMappings replaces the editable mapping rows.
func (s *Session) SetMappings(rows []MappingRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireConfigureLocked(); err != nil {
		return err
	}
	s.mappings = append([]MappingRow(nil), rows...)
	s.touch()
	return nil
}

// SetCloudTarget replaces the cloud target draft.
func (s *Session) SetCloudTarget(target models.CloudTarget, verifyUpload bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireConfigureLocked(); err != nil {
		return err
	}
	s.cloudTarget = &target
	s.verifyUpload = verifyUpload
	s.touch()
	return nil
}

// TogglePath toggles explicit selection of a path.
func (s *Session) TogglePath(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireConfigureLocked(); err != nil {
		return err
	}
	s.selection.Toggle(path)
	s.touch()
	return nil
}

// SelectAllPaths selects every listed path explicitly.
func (s *Session) SelectAllPaths() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireConfigureLocked(); err != nil {
		return err
	}
	s.selection.SelectAll()
	s.touch()
	return nil
}

// ClearSelection empties the selection, returning to restore-everything.
func (s *Session) ClearSelection() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireConfigureLocked(); err != nil {
		return err
	}
	s.selection.ClearAll()
	s.touch()
	return nil
}

// Selection returns the selection model for read access.
func (s *Session) Selection() *Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection
}

func (s *Session) requireConfigureLocked() error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.startPending {
		return ErrStartInFlight
	}
	if s.phase != PhaseConfigure {
		return ErrInvalidTransition
	}
	return nil
}

// targetPathLocked maps the destination mode to the wire target path:
// original location is "/".
func (s *Session) targetPathLocked() string {
	if s.destMode == DestinationOriginal {
		return "/"
	}
	return strings.TrimSpace(s.customPath)
}

// filteredMappingsLocked drops rows with either side empty, preserving
// order. Returns nil when nothing remains so the field is omitted on the
// wire.
func (s *Session) filteredMappingsLocked() []models.PathMapping {
	var out []models.PathMapping
	for _, row := range s.mappings {
		src := strings.TrimSpace(row.SourcePath)
		dst := strings.TrimSpace(row.TargetPath)
		if src == "" || dst == "" {
			continue
		}
		out = append(out, models.PathMapping{SourcePath: src, TargetPath: dst})
	}
	return out
}

func (s *Session) validateLocked() error {
	if s.destMode == DestinationCustom && s.restoreType == RestoreTypeAgent {
		path := strings.TrimSpace(s.customPath)
		if path == "" {
			return &ValidationError{Field: "target_path", Message: "destination path is required"}
		}
		if !strings.HasPrefix(path, "/") {
			return &ValidationError{Field: "target_path", Message: "destination path must be absolute"}
		}
	}
	if s.restoreType == RestoreTypeCloud {
		if err := s.cloudTarget.Validate(); err != nil {
			return &ValidationError{Field: "cloud_target", Message: err.Error()}
		}
	}
	return nil
}

// CanSubmit reports whether the configuration would pass validation.
// Handlers use it to mirror the disabled state of the submit control.
func (s *Session) CanSubmit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validateLocked() == nil
}

// agentIDsLocked resolves the restore's agent fields: for cross-agent
// restores the destination agent is the chosen target and the snapshot's
// agent rides along as source; otherwise the source field is omitted.
func (s *Session) agentIDsLocked() (agentID uuid.UUID, sourceAgentID *uuid.UUID) {
	if s.isCrossAgentLocked() {
		source := s.Snapshot.AgentID
		return s.targetAgentID, &source
	}
	return s.Snapshot.AgentID, nil
}

// buildPreviewRequestLocked shapes the dry-run payload. Empty optional
// fields are omitted, never sent empty.
func (s *Session) buildPreviewRequestLocked() models.PreviewRestoreRequest {
	agentID, sourceAgentID := s.agentIDsLocked()
	return models.PreviewRestoreRequest{
		SnapshotID:    s.Snapshot.ID,
		AgentID:       agentID,
		SourceAgentID: sourceAgentID,
		RepositoryID:  s.Snapshot.RepositoryID,
		TargetPath:    s.targetPathLocked(),
		IncludePaths:  s.selection.IncludePaths(),
		PathMappings:  s.filteredMappingsLocked(),
	}
}

// RequestPreview performs the configure → preview transition for
// agent-target restores. On failure the session stays in configure with the
// error recorded; a second call while one is pending is suppressed.
func (s *Session) RequestPreview(ctx context.Context, client PreviewClient) (*models.RestorePreview, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if s.phase != PhaseConfigure {
		s.mu.Unlock()
		return nil, ErrInvalidTransition
	}
	if s.restoreType != RestoreTypeAgent {
		s.mu.Unlock()
		return nil, ErrPreviewUnavailable
	}
	if s.previewPending {
		s.mu.Unlock()
		return nil, ErrPreviewInFlight
	}
	if s.startPending {
		s.mu.Unlock()
		return nil, ErrStartInFlight
	}
	if err := s.validateLocked(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	req := s.buildPreviewRequestLocked()
	s.previewPending = true
	s.mu.Unlock()

	preview, err := client.PreviewRestore(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.previewPending = false
	if err != nil {
		s.lastError = err.Error()
		return nil, err
	}
	s.preview = preview
	s.phase = PhasePreview
	s.lastError = ""
	s.touch()
	return preview, nil
}

// Back performs the preview → configure transition, discarding the stored
// preview. All form fields stay intact.
func (s *Session) Back() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.phase != PhasePreview {
		return ErrInvalidTransition
	}
	s.preview = nil
	s.phase = PhaseConfigure
	s.touch()
	return nil
}

// Start dispatches the restore and enters restoring. Agent restores may
// start from configure or preview; cloud restores skip preview and start
// from configure. Only one submission may be in flight at a time; on
// submission failure the phase does not advance and the error is recorded
// on the session.
func (s *Session) Start(ctx context.Context, submitter Submitter) (*models.RestoreJob, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if s.phase != PhaseConfigure && s.phase != PhasePreview {
		s.mu.Unlock()
		return nil, ErrInvalidTransition
	}
	if s.startPending {
		s.mu.Unlock()
		return nil, ErrStartInFlight
	}
	if err := s.validateLocked(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.startPending = true

	restoreType := s.restoreType
	var agentReq models.CreateRestoreRequest
	var cloudReq models.CreateCloudRestoreRequest
	if restoreType == RestoreTypeCloud {
		cloudReq = models.CreateCloudRestoreRequest{
			SnapshotID:   s.Snapshot.ID,
			AgentID:      s.Snapshot.AgentID,
			RepositoryID: s.Snapshot.RepositoryID,
			IncludePaths: s.selection.IncludePaths(),
			CloudTarget:  *s.cloudTarget,
			VerifyUpload: s.verifyUpload,
		}
	} else {
		agentID, sourceAgentID := s.agentIDsLocked()
		agentReq = models.CreateRestoreRequest{
			SnapshotID:    s.Snapshot.ID,
			AgentID:       agentID,
			SourceAgentID: sourceAgentID,
			RepositoryID:  s.Snapshot.RepositoryID,
			TargetPath:    s.targetPathLocked(),
			IncludePaths:  s.selection.IncludePaths(),
			PathMappings:  s.filteredMappingsLocked(),
		}
	}
	s.mu.Unlock()

	var job *models.RestoreJob
	var err error
	if restoreType == RestoreTypeCloud {
		job, err = submitter.SubmitCloud(ctx, cloudReq)
	} else {
		job, err = submitter.SubmitAgent(ctx, agentReq)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.startPending = false
	if err != nil {
		s.lastError = err.Error()
		return nil, err
	}
	s.job = job
	s.phase = PhaseRestoring
	s.lastError = ""
	s.touch()
	return job, nil
}

// Close marks the session closed. The dispatched job, if any, keeps running
// server-side; its reference is preserved so it stays visible in the jobs
// list.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.touch()
}

// Closed reports whether the session was closed.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// UpdatedAt returns the time of the last mutation.
func (s *Session) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

func (s *Session) touch() {
	s.updatedAt = time.Now()
}

// SessionState is the JSON snapshot of a session handed to the console.
// IncludePaths is the explicit selection set; the per-entry checked and
// disabled flags live in the Files view.
type SessionState struct {
	ID                uuid.UUID              `json:"id"`
	SnapshotID        string                 `json:"snapshot_id"`
	Phase             Phase                  `json:"phase"`
	DestinationMode   DestinationMode        `json:"destination_mode"`
	CustomPath        string                 `json:"custom_path,omitempty"`
	RestoreType       RestoreType            `json:"restore_type"`
	CrossAgentOffered bool                   `json:"cross_agent_offered"`
	CrossAgent        bool                   `json:"is_cross_agent"`
	TargetAgentID     uuid.UUID              `json:"target_agent_id"`
	Mappings          []MappingRow           `json:"path_mappings,omitempty"`
	IncludePaths      []string               `json:"include_paths,omitempty"`
	SelectedCount     int                    `json:"selected_count"`
	SelectedSize      int64                  `json:"selected_size"`
	CanSubmit         bool                   `json:"can_submit"`
	Preview           *models.RestorePreview `json:"preview,omitempty"`
	Job               *models.RestoreJob     `json:"job,omitempty"`
	LastError         string                 `json:"last_error,omitempty"`
}

// State returns a consistent snapshot of the session.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionState{
		ID:                s.ID,
		SnapshotID:        s.Snapshot.ID,
		Phase:             s.phase,
		DestinationMode:   s.destMode,
		CustomPath:        s.customPath,
		RestoreType:       s.restoreType,
		CrossAgentOffered: s.CrossAgentOffered(),
		CrossAgent:        s.isCrossAgentLocked(),
		TargetAgentID:     s.targetAgentID,
		Mappings:          append([]MappingRow(nil), s.mappings...),
		IncludePaths:      s.selection.IncludePaths(),
		SelectedCount:     s.selection.SelectedCount(),
		SelectedSize:      s.selection.SelectedSize(),
		CanSubmit:         s.validateLocked() == nil,
		Preview:           s.preview,
		Job:               s.job,
		LastError:         s.lastError,
	}
}

// FileState is one listing row annotated with its selection state. Implied
// rows are checked through a selected ancestor directory and render
// disabled: they cannot be deselected independently.
type FileState struct {
	Path     string `json:"path"`
	Type     string `json:"type"`
	Size     int64  `json:"size"`
	Selected bool   `json:"selected"`
	Implied  bool   `json:"implied"`
}

// Files returns the listing with per-entry selection state, in the
// listing's original order.
func (s *Session) Files() []FileState {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.selection.Entries()
	out := make([]FileState, 0, len(entries))
	for _, e := range entries {
		out = append(out, FileState{
			Path:     e.Path,
			Type:     e.Type,
			Size:     e.Size,
			Selected: s.selection.IsSelected(e.Path),
			Implied:  s.selection.IsImplied(e.Path),
		})
	}
	return out
}
