package ft

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"ft-go/internal/hash"
)

// ActionReport is the user-visible outcome of one plan action. Every action
// appears in the final report; silent partial success is never acceptable.
type ActionReport struct {
	ActionID   string
	FileID     string
	SourcePath string
	TargetPath string
	Type       ActionType
	Status     string
	Error      string
}

// ExecutionResult is the terminal report of one execute run.
type ExecutionResult struct {
	PlanID     string
	Total      int
	Succeeded  int
	Failed     int
	Skipped    int // actions already succeeded in a previous run
	RolledBack bool
	Reports    []ActionReport
}

// Execute applies an approved plan's actions in sequence order, in batches.
// A checkpoint of every referenced record is taken first. Per-action failures
// are isolated: the action is marked failed and execution continues. If the
// failure rate exceeds the configured threshold, the plan is marked failed
// and every action applied in this run is rolled back automatically.
func (s *FTService) Execute(ctx context.Context, planID string) (*ExecutionResult, error) {
	plan, err := s.registry.GetPlan(planID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, fmt.Errorf("no plan with id %s", planID)
	}
	if !plan.Approved {
		return nil, ErrPlanNotApproved
	}
	if plan.Status == PlanCompleted || plan.Status == PlanRolledBack {
		return nil, fmt.Errorf("plan %s already finished with status %s", planID, plan.Status)
	}

	if err := s.checkpointPlan(plan); err != nil {
		return nil, err
	}
	if err := s.registry.SetPlanStatus(plan.ID, PlanExecuting); err != nil {
		return nil, err
	}

	result := &ExecutionResult{PlanID: plan.ID, Total: len(plan.Actions)}
	for start := 0; start < len(plan.Actions); start += s.tuning.ExecBatchSize {
		end := start + s.tuning.ExecBatchSize
		if end > len(plan.Actions) {
			end = len(plan.Actions)
		}
		for _, action := range plan.Actions[start:end] {
			if err := ctx.Err(); err != nil {
				// Cancellation leaves applied actions recorded; the run is
				// resumable because succeeded actions are skipped on retry.
				s.registry.SetPlanStatus(plan.ID, PlanFailed)
				return result, err
			}
			s.runAction(action, plan.ID, result)
		}
		s.logger.Debug("batch applied", "plan", plan.ID, "done", end, "total", len(plan.Actions))
	}

	attempted := result.Succeeded + result.Failed
	if attempted > 0 && float64(result.Failed)/float64(attempted) > s.tuning.FailureThreshold {
		s.logger.Warn("failure threshold exceeded, rolling back",
			"plan", plan.ID, "failed", result.Failed, "attempted", attempted)
		if err := s.registry.SetPlanStatus(plan.ID, PlanFailed); err != nil {
			return result, err
		}
		result.RolledBack = true
		if err := s.Rollback(ctx, plan.ID, nil); err != nil {
			return result, err
		}
		return result, nil
	}

	if err := s.registry.SetPlanStatus(plan.ID, PlanCompleted); err != nil {
		return result, err
	}
	s.logger.Info("plan executed",
		"plan", plan.ID,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"skipped", result.Skipped)
	return result, nil
}

// checkpointPlan snapshots the registry state of every file the plan touches.
// A checkpoint from an earlier attempt is reused, keeping the pre-first-run
// state authoritative for rollback.
func (s *FTService) checkpointPlan(plan *MigrationPlan) error {
	existing, err := s.registry.FindCheckpointForPlan(plan.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	cp := &Checkpoint{
		ID:        s.idgen.New(),
		PlanID:    plan.ID,
		CreatedAt: s.clock.Now().UTC(),
	}
	seen := make(map[string]bool)
	for _, action := range plan.Actions {
		if seen[action.FileID] {
			continue
		}
		seen[action.FileID] = true
		rec, err := s.registry.GetFile(action.FileID)
		if err != nil {
			return err
		}
		if rec == nil {
			return fmt.Errorf("plan %s references unknown file %s", plan.ID, action.FileID)
		}
		cp.Entries = append(cp.Entries, CheckpointEntry{
			FileID:        rec.ID,
			CanonicalPath: rec.CanonicalPath,
			State:         rec.State,
			ContentHash:   rec.ContentHash,
			DocumentType:  rec.DocumentType,
		})
	}
	if err := s.registry.CreateCheckpoint(cp); err != nil {
		return fmt.Errorf("creating checkpoint: %w", err)
	}
	s.logger.Info("checkpoint created", "plan", plan.ID, "entries", len(cp.Entries))
	return nil
}

// runAction applies one action, recording the outcome on both the action row
// and the result report. Failures never propagate.
func (s *FTService) runAction(action *MigrationAction, planID string, result *ExecutionResult) {
	report := ActionReport{
		ActionID:   action.ID,
		FileID:     action.FileID,
		SourcePath: action.SourcePath,
		TargetPath: action.TargetPath,
		Type:       action.Type,
	}

	if action.Status == ActionSucceeded {
		result.Skipped++
		report.Status = ActionSucceeded
		result.Reports = append(result.Reports, report)
		return
	}

	err := s.applyAction(action, planID)
	if err != nil {
		result.Failed++
		report.Status = ActionFailed
		report.Error = err.Error()
		s.logger.Warn("action failed", "action", action.ID, "path", action.SourcePath, "error", err)
		if ferr := s.registry.FinishAction(action.ID, ActionFailed, err.Error()); ferr != nil {
			s.logger.Error("recording action failure failed", "action", action.ID, "error", ferr)
		}
	} else {
		result.Succeeded++
		report.Status = ActionSucceeded
		action.Status = ActionSucceeded
		if ferr := s.registry.FinishAction(action.ID, ActionSucceeded, ""); ferr != nil {
			s.logger.Error("recording action success failed", "action", action.ID, "error", ferr)
		}
	}
	result.Reports = append(result.Reports, report)
}

// applyAction performs the physical operation and its registry bookkeeping.
func (s *FTService) applyAction(action *MigrationAction, planID string) error {
	rec, err := s.registry.GetFile(action.FileID)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("unknown file %s", action.FileID)
	}

	checksum, err := s.verifySource(action.SourcePath, rec)
	if err != nil {
		return err
	}
	// Later syncs match files by content hash, so the hash the verification
	// just computed must be on record.
	if !rec.ContentHash.Valid {
		if err := s.registry.SetContentHash(rec.ID, checksum); err != nil {
			return err
		}
	}

	switch action.Type {
	case ActionMove:
		if err := s.fsmgr.EnsureDir(filepath.Dir(action.TargetPath)); err != nil {
			return err
		}
		if err := s.fsmgr.Move(action.SourcePath, action.TargetPath); err != nil {
			return err
		}
		return s.registry.RecordMove(action.FileID, action.SourcePath, action.TargetPath, planID, s.clock.Now().UTC())

	case ActionCopy:
		if err := s.fsmgr.EnsureDir(filepath.Dir(action.TargetPath)); err != nil {
			return err
		}
		return s.fsmgr.Copy(action.SourcePath, action.TargetPath)

	case ActionArchive, ActionDelete:
		// Both stash content in the vault before removing the file, so a
		// rollback can restore it byte for byte.
		if s.vault == nil {
			return fmt.Errorf("no vault configured for %s actions", action.Type)
		}
		if err := s.stashContent(action.SourcePath, checksum, rec.SizeBytes); err != nil {
			return err
		}
		if err := s.registry.SetActionRollbackData(action.ID, checksum); err != nil {
			return err
		}
		if err := s.fsmgr.Remove(action.SourcePath); err != nil {
			return err
		}
		return nil

	default:
		return fmt.Errorf("unknown action type %q", action.Type)
	}
}

// verifySource confirms the source file still exists and still has the
// recorded content. A mismatch means something changed it outside the system:
// that action fails, the rest of the plan continues. Returns the source's
// full content hash.
func (s *FTService) verifySource(path string, rec *FileRecord) (string, error) {
	if _, err := s.fsmgr.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", &SourceChangedError{Path: path, Reason: "source no longer exists"}
		}
		return "", &TransientIOError{Path: path, Err: err}
	}

	f, err := s.fsmgr.Open(path)
	if err != nil {
		return "", &TransientIOError{Path: path, Err: err}
	}
	defer f.Close()

	sum, err := hash.Full(f)
	if err != nil {
		return "", &TransientIOError{Path: path, Err: err}
	}
	if rec.ContentHash.Valid && rec.ContentHash.String != sum {
		return "", &SourceChangedError{Path: path, Reason: "content hash mismatch"}
	}
	return sum, nil
}

// stashContent ships a file's bytes to the vault, encrypting when an
// encryptor is configured. The vault is content-addressed, so stashing the
// same checksum twice is a no-op.
func (s *FTService) stashContent(path string, checksum string, size int64) error {
	f, err := s.fsmgr.Open(path)
	if err != nil {
		return &TransientIOError{Path: path, Err: err}
	}
	defer f.Close()

	var r io.Reader = f
	if s.encryptor != nil {
		pr, pw := io.Pipe()
		go func() {
			pw.CloseWithError(s.encryptor.Encrypt(f, pw))
		}()
		r = pr
	}
	// size reflects the plaintext; vault backends treat it as advisory.
	if err := s.vault.PutContent(checksum, r, size); err != nil {
		return fmt.Errorf("stashing %s in vault: %w", path, err)
	}
	return nil
}

// restoreContent writes vault content back to path, decrypting when needed.
func (s *FTService) restoreContent(checksum string, path string, dec DecryptionContext) error {
	if s.vault == nil {
		return fmt.Errorf("no vault configured")
	}
	if err := s.fsmgr.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(s.vault.GetContent(checksum, pw))
	}()

	var r io.Reader = pr
	if s.encryptor != nil {
		if dec == nil {
			pr.CloseWithError(fmt.Errorf("restore aborted"))
			return fmt.Errorf("vault content is encrypted and no decryption context was provided")
		}
		dpr, dpw := io.Pipe()
		go func() {
			dpw.CloseWithError(dec.Decrypt(pr, dpw))
		}()
		r = dpr
	}

	if err := s.fsmgr.WriteFile(path, r); err != nil {
		return fmt.Errorf("restoring %s from vault: %w", path, err)
	}
	return nil
}

// Rollback undoes every successfully applied action of a plan and restores
// each referenced record to its checkpointed state. It is idempotent and
// best-effort: files that are not where the plan left them are reported as
// discrepancies via RollbackIncompleteError, never silently overwritten.
// dec is required only when archived content was encrypted.
func (s *FTService) Rollback(ctx context.Context, planID string, dec DecryptionContext) error {
	plan, err := s.registry.GetPlan(planID)
	if err != nil {
		return err
	}
	if plan == nil {
		return fmt.Errorf("no plan with id %s", planID)
	}
	cp, err := s.registry.FindCheckpointForPlan(planID)
	if err != nil {
		return err
	}
	if cp == nil {
		return fmt.Errorf("no checkpoint for plan %s", planID)
	}

	// Undo in reverse order of application.
	actions := make([]*MigrationAction, len(plan.Actions))
	copy(actions, plan.Actions)
	sort.Slice(actions, func(i, j int) bool { return actions[i].Seq > actions[j].Seq })

	var discrepancies []string
	for _, action := range actions {
		if action.Status != ActionSucceeded {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if problem := s.undoAction(action, dec); problem != "" {
			discrepancies = append(discrepancies, problem)
			continue
		}
		if err := s.registry.FinishAction(action.ID, ActionRolledBack, ""); err != nil {
			s.logger.Error("marking action rolled back failed", "action", action.ID, "error", err)
		}
	}

	for _, entry := range cp.Entries {
		if err := s.registry.RestoreCheckpointEntry(entry); err != nil {
			discrepancies = append(discrepancies, fmt.Sprintf("%s: registry restore failed: %v", entry.FileID, err))
		}
	}

	if err := s.registry.SetPlanStatus(planID, PlanRolledBack); err != nil {
		return err
	}
	s.logger.Info("plan rolled back", "plan", planID, "discrepancies", len(discrepancies))

	if len(discrepancies) > 0 {
		return &RollbackIncompleteError{Discrepancies: discrepancies}
	}
	return nil
}

// undoAction reverses one applied action. An empty return means success;
// otherwise the string describes the discrepancy.
func (s *FTService) undoAction(action *MigrationAction, dec DecryptionContext) string {
	switch action.Type {
	case ActionMove:
		_, targetErr := s.fsmgr.Stat(action.TargetPath)
		_, sourceErr := s.fsmgr.Stat(action.SourcePath)
		switch {
		case targetErr == nil && sourceErr != nil:
			if err := s.fsmgr.EnsureDir(filepath.Dir(action.SourcePath)); err != nil {
				return fmt.Sprintf("%s: %v", action.SourcePath, err)
			}
			if err := s.fsmgr.Move(action.TargetPath, action.SourcePath); err != nil {
				return fmt.Sprintf("%s: move back failed: %v", action.TargetPath, err)
			}
			return ""
		case targetErr != nil && sourceErr == nil:
			// Already back at the source; retried rollbacks land here.
			return ""
		case targetErr == nil && sourceErr == nil:
			return fmt.Sprintf("%s: file present at both source and target, not overwriting", action.SourcePath)
		default:
			return fmt.Sprintf("%s: file missing from both source and target", action.SourcePath)
		}

	case ActionCopy:
		if _, err := s.fsmgr.Stat(action.TargetPath); err != nil {
			return "" // copy already gone
		}
		if err := s.fsmgr.Remove(action.TargetPath); err != nil {
			return fmt.Sprintf("%s: removing copy failed: %v", action.TargetPath, err)
		}
		return ""

	case ActionArchive, ActionDelete:
		if _, err := s.fsmgr.Stat(action.SourcePath); err == nil {
			return "" // already restored
		}
		if !action.RollbackData.Valid {
			return fmt.Sprintf("%s: no vault checksum recorded", action.SourcePath)
		}
		if err := s.restoreContent(action.RollbackData.String, action.SourcePath, dec); err != nil {
			return fmt.Sprintf("%s: %v", action.SourcePath, err)
		}
		return ""

	default:
		return fmt.Sprintf("%s: unknown action type %q", action.ID, action.Type)
	}
}
