package ft

import (
	"database/sql"
	"time"
)

// FileState is the lifecycle state of a FileRecord.
type FileState string

const (
	StatePending    FileState = "pending"
	StateClassified FileState = "classified"
	StateOrganized  FileState = "organized"
	StateDuplicate  FileState = "duplicate"
	StateMissing    FileState = "missing"
	StateError      FileState = "error"
	StateReview     FileState = "review"
)

// Classification methods.
const (
	MethodMLModel   = "ml_model"
	MethodPattern   = "pattern"
	MethodManual    = "manual"
	MethodExtension = "extension"
)

// FileRecord is one entry per distinct physical file ever seen.
// Records are never deleted; superseded or vanished files are marked.
type FileRecord struct {
	ID             string          // UUID, assigned once on first encounter
	OriginalPath   string          // Absolute path where the file was first seen
	CanonicalPath  sql.NullString  // Set only while state == organized
	SizeBytes      int64
	QuickHash      sql.NullString  // SHA-256 of the first MiB
	ContentHash    sql.NullString  // Full SHA-256, computed lazily
	State          FileState
	DocumentType   sql.NullString
	Confidence     sql.NullFloat64
	Method         sql.NullString  // ml_model | pattern | manual | extension
	IsDuplicate    bool
	DuplicateOf    sql.NullString  // Always references a non-duplicate record
	MoveCount      int64           // Increments once per successful physical move
	RequiresReview bool
	FirstSeenAt    time.Time
	ModifiedAt     time.Time       // File mtime captured at scan
	AccessedAt     sql.NullTime    // File atime where the platform tracks it
	LastMovedAt    sql.NullTime
	LastError      sql.NullString
}

// Location returns the path the registry currently believes the file lives
// at: the canonical path once placed, the original path before.
func (r *FileRecord) Location() string {
	if r.CanonicalPath.Valid {
		return r.CanonicalPath.String
	}
	return r.OriginalPath
}

// Duplicate detection methods.
const (
	DetectionFullHash      = "full_hash_verified"
	DetectionFuzzyFilename = "fuzzy_filename"
)

// DuplicateGroup is a cluster of records sharing identical full content hash.
// Exactly one member is canonical.
type DuplicateGroup struct {
	ID              string
	CanonicalFileID string
	DetectionMethod string
	MemberFileIDs   []string // size >= 2, includes the canonical member
	CreatedAt       time.Time
}

// NearDuplicate is a fuzzy-filename suggestion awaiting human review.
// It never sets is_duplicate on either record.
type NearDuplicate struct {
	ID         string
	FileIDA    string
	FileIDB    string
	Similarity float64
	CreatedAt  time.Time
}

// Plan statuses.
const (
	PlanPending    = "pending"
	PlanApproved   = "approved"
	PlanExecuting  = "executing"
	PlanCompleted  = "completed"
	PlanFailed     = "failed"
	PlanRolledBack = "rolled_back"
)

// ActionType is the kind of filesystem operation a plan action performs.
type ActionType string

const (
	ActionMove    ActionType = "move"
	ActionCopy    ActionType = "copy"
	ActionArchive ActionType = "archive"
	ActionDelete  ActionType = "delete"
)

// Action statuses.
const (
	ActionPending    = "pending"
	ActionSucceeded  = "succeeded"
	ActionFailed     = "failed"
	ActionRolledBack = "rolled_back"
)

// MigrationPlan is an ordered batch of intended moves. Once approved it is
// immutable; execution is refused while Approved is false.
type MigrationPlan struct {
	ID        string
	CreatedAt time.Time
	Approved  bool
	Status    string
	Actions   []*MigrationAction
}

// MigrationAction is one proposed file operation within a plan.
type MigrationAction struct {
	ID             string
	PlanID         string
	Seq            int64 // Position within the plan; execution order
	FileID         string
	SourcePath     string
	TargetPath     string
	Type           ActionType
	Reason         string
	RequiresReview bool
	Status         string
	Error          sql.NullString
	RollbackData   sql.NullString // e.g. vault checksum for archive or safe delete
}

// Checkpoint snapshots the registry state of every file a plan touches,
// taken immediately before execution. Retained for audit after use.
type Checkpoint struct {
	ID        string
	PlanID    string
	CreatedAt time.Time
	Entries   []CheckpointEntry
}

// CheckpointEntry is the pre-execution registry state of one file.
type CheckpointEntry struct {
	FileID        string
	CanonicalPath sql.NullString
	State         FileState
	ContentHash   sql.NullString
	DocumentType  sql.NullString
}

// MoveEvent is one entry in a file's move history. External marks moves the
// system observed but did not perform.
type MoveEvent struct {
	ID       int64
	FileID   string
	FromPath string
	ToPath   string
	PlanID   sql.NullString
	External bool
	MovedAt  time.Time
}

// Correction is one manual reclassification, kept as an audit record.
type Correction struct {
	ID          int64
	FileID      string
	OldType     sql.NullString
	NewType     string
	Reason      string
	CorrectedAt time.Time
}

// Run tracks one CLI operation that may mutate the registry.
type Run struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt sql.NullTime
	Operation  string
	Parameters string
	Status     string
}

// RegistryStats are raw counts the metrics tracker derives its figures from.
type RegistryStats struct {
	TotalFiles      int64
	OrganizedFiles  int64
	DuplicateFiles  int64
	MissingFiles    int64
	ErrorFiles      int64
	ReviewFiles     int64
	TotalBytes      int64
	DuplicateBytes  int64
	TotalMoves      int64
	ExternalMoves   int64
	Corrections     int64
	ClassifiedFiles int64
}

// Registry is the single source of truth for file provenance, classification,
// duplicate linkage and move history. Every mutation is a single atomic
// transaction; no multi-step operation leaves the store half-updated.
type Registry interface {
	// File records

	// UpsertScanned inserts or refreshes a batch of scanner drafts in one
	// transaction. A draft whose original path already has a record with
	// identical size and quick hash is treated as unchanged. If content
	// differs, a new record is created and the old one is left for the
	// reconciliation pass. Returns the number of newly created records.
	UpsertScanned(records []*FileRecord) (int, error)

	// GetFile returns a record by ID, or nil if it does not exist.
	GetFile(id string) (*FileRecord, error)

	// FindByOriginalPath returns the newest record for an original path,
	// or nil.
	FindByOriginalPath(path string) (*FileRecord, error)

	// FindByState returns all records in the given state, ordered by ID.
	FindByState(state FileState) ([]*FileRecord, error)

	// FindByContentHash returns all records with the given full hash,
	// ordered by ID.
	FindByContentHash(hash string) ([]*FileRecord, error)

	// AllFiles returns every record, ordered by ID.
	AllFiles() ([]*FileRecord, error)

	// SetContentHash stores a lazily computed full hash.
	SetContentHash(id string, hash string) error

	// SetFileError moves a record to the error state and records the cause.
	SetFileError(id string, cause string) error

	// UpdateClassification stores a classifier result and moves the record
	// to the classified state.
	UpdateClassification(id string, docType string, confidence float64, method string) error

	// Duplicates

	// ApplyDuplicateGroups replaces the current duplicate grouping in one
	// transaction: group rows are rewritten and every member record's
	// is_duplicate/duplicate_of flags are updated together. A partial
	// failure leaves the previous grouping intact.
	ApplyDuplicateGroups(groups []*DuplicateGroup) error

	// ListDuplicateGroups returns the stored grouping, members ordered by ID.
	ListDuplicateGroups() ([]*DuplicateGroup, error)

	// AddNearDuplicates appends fuzzy-filename suggestions to the review
	// queue in one transaction.
	AddNearDuplicates(pairs []*NearDuplicate) error

	// ListNearDuplicates returns the review queue, newest first.
	ListNearDuplicates() ([]*NearDuplicate, error)

	// Plans

	// CreatePlan persists a plan and all its actions in one transaction.
	CreatePlan(plan *MigrationPlan) error

	// GetPlan returns a plan with its actions in sequence order, or nil.
	GetPlan(id string) (*MigrationPlan, error)

	// ListPlans returns plan headers (no actions), newest first.
	ListPlans(limit int) ([]*MigrationPlan, error)

	// ApprovePlan marks a pending plan approved.
	ApprovePlan(id string) error

	// SetPlanStatus updates a plan's status.
	SetPlanStatus(id string, status string) error

	// FinishAction records an action's terminal status and error in the
	// same transaction as the file record update performed by RecordMove;
	// for failed actions it is a standalone atomic update.
	FinishAction(actionID string, status string, cause string) error

	// SetActionRollbackData stores rollback bookkeeping for an action.
	SetActionRollbackData(actionID string, data string) error

	// Checkpoints

	// CreateCheckpoint persists a checkpoint and its entries atomically.
	CreateCheckpoint(cp *Checkpoint) error

	// GetCheckpoint returns a checkpoint with entries, or nil.
	GetCheckpoint(id string) (*Checkpoint, error)

	// FindCheckpointForPlan returns the newest checkpoint for a plan, or nil.
	FindCheckpointForPlan(planID string) (*Checkpoint, error)

	// Moves

	// RecordMove atomically updates a file record after a successful
	// physical move (canonical_path, state=organized, move_count+1,
	// last_moved_at) and appends a move-history entry.
	RecordMove(fileID string, fromPath string, toPath string, planID string, at time.Time) error

	// RecordExternalMove updates canonical_path for a file found at a new
	// location on disk and logs the event without touching move_count.
	RecordExternalMove(fileID string, fromPath string, toPath string, at time.Time) error

	// RestoreCheckpointEntry atomically resets a file record to its
	// checkpointed canonical path and state during rollback.
	RestoreCheckpointEntry(entry CheckpointEntry) error

	// ListMoveHistory returns a file's move events, oldest first.
	ListMoveHistory(fileID string) ([]*MoveEvent, error)

	// Corrections

	// RecordCorrection atomically updates document_type, flags the record
	// for the next reorganization pass, and appends an audit row.
	RecordCorrection(fileID string, newType string, reason string, at time.Time) error

	// ListCorrections returns all corrections, newest first.
	ListCorrections() ([]*Correction, error)

	// Runs

	// CreateRun records the start of a CLI operation.
	CreateRun(operation string, parameters string) (*Run, error)

	// FinishRun records a run's terminal status.
	FinishRun(id int64, status string) error

	// ListRuns returns the most recent runs, newest first.
	ListRuns(limit int) ([]*Run, error)

	// Stats returns raw counts for the metrics tracker.
	Stats() (*RegistryStats, error)

	// SetFileState is used by the reconciliation pass (missing files,
	// review flags).
	SetFileState(id string, state FileState) error

	// BackupTo writes a consistent snapshot of the store to destPath.
	BackupTo(destPath string) error

	// Close closes the underlying store.
	Close() error
}
