package ft

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	"ft-go/internal/hash"
)

// SyncResult reports what the filesystem/registry reconciliation found.
type SyncResult struct {
	OnDisk        int // files enumerated under the canonical root
	Discovered    int // registered fresh at their found location
	ExternalMoves int // known content found at a different path
	Missing       int // organized records whose file is gone
	Errors        int
}

// ReorganizeResult is the report of one reorganize run.
type ReorganizeResult struct {
	Sync       SyncResult
	Plan       *MigrationPlan
	Execution  *ExecutionResult // nil on dry runs or empty plans
	PrunedDirs int
	DryRun     bool
}

// Reorganize converges the canonical tree: it reconciles the registry
// against the filesystem, re-plans placement for the synced records, applies
// the plan unless dryRun, and prunes directories the moves left empty.
// Because target paths are a pure function of classification and config, a
// second run with nothing changed plans zero moves.
func (s *FTService) Reorganize(ctx context.Context, canonicalRoot string, structure *Structure, dryRun bool) (*ReorganizeResult, error) {
	result := &ReorganizeResult{DryRun: dryRun}

	syncResult, err := s.SyncRegistry(ctx, canonicalRoot)
	if err != nil {
		return nil, err
	}
	result.Sync = *syncResult

	plan, err := s.BuildPlan(ctx, structure, canonicalRoot, PlanOptions{})
	if err != nil {
		return nil, err
	}
	result.Plan = plan

	if dryRun || len(plan.Actions) == 0 {
		return result, nil
	}

	// Internally generated plans are approved in the same breath; the
	// explicit approval gate is for plans a human reviews via the CLI.
	if err := s.registry.ApprovePlan(plan.ID); err != nil {
		return nil, err
	}
	execution, err := s.Execute(ctx, plan.ID)
	if err != nil {
		return result, err
	}
	result.Execution = execution

	pruned, err := s.fsmgr.PruneEmptyDirs(canonicalRoot)
	if err != nil {
		return result, fmt.Errorf("pruning empty directories: %w", err)
	}
	result.PrunedDirs = pruned

	return result, nil
}

// SyncRegistry is the explicit reconciliation pass: it enumerates the files
// physically present under canonicalRoot and walks the registry back into
// agreement. Unknown content is registered as organized at its found path;
// known content found elsewhere becomes an external move (not counted in
// move_count, the system didn't perform it); organized records whose file is
// gone are marked missing.
func (s *FTService) SyncRegistry(ctx context.Context, canonicalRoot string) (*SyncResult, error) {
	root, err := s.fsmgr.Resolve(canonicalRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving canonical root: %w", err)
	}

	result := &SyncResult{}
	onDisk := make(map[string]bool) // absolute path -> present

	err = s.fsmgr.Walk(root.String(), nil, func(path string, info fs.FileInfo) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		result.OnDisk++
		onDisk[path] = true
		if info == nil {
			result.Errors++
			s.logger.Warn("unreadable entry during sync", "path", path)
			return nil
		}
		if err := s.syncOneFile(path, info, result); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("enumerating %s: %w", root.String(), err)
	}

	// Organized records whose canonical path vanished from disk.
	organized, err := s.registry.FindByState(StateOrganized)
	if err != nil {
		return nil, err
	}
	for _, rec := range organized {
		if !rec.CanonicalPath.Valid || onDisk[rec.CanonicalPath.String] {
			continue
		}
		if _, err := s.fsmgr.Stat(rec.CanonicalPath.String); err == nil {
			continue // outside the walked root but still present
		}
		if err := s.registry.SetFileState(rec.ID, StateMissing); err != nil {
			return nil, err
		}
		result.Missing++
		s.logger.Info("file missing", "path", rec.CanonicalPath.String, "id", rec.ID)
	}

	s.logger.Info("registry synced",
		"on_disk", result.OnDisk,
		"discovered", result.Discovered,
		"external_moves", result.ExternalMoves,
		"missing", result.Missing)
	return result, nil
}

// syncOneFile reconciles a single on-disk file with the registry by content
// hash. Hash failures are isolated: the file is skipped and counted.
func (s *FTService) syncOneFile(path string, info fs.FileInfo, result *SyncResult) error {
	f, err := s.fsmgr.Open(path)
	if err != nil {
		result.Errors++
		s.logger.Warn("file skipped during sync", "path", path, "error", err)
		return nil
	}
	sum, err := hash.Full(f)
	f.Close()
	if err != nil {
		result.Errors++
		s.logger.Warn("file skipped during sync", "path", path, "error", err)
		return nil
	}

	matches, err := s.registry.FindByContentHash(sum)
	if err != nil {
		return err
	}

	// Already recorded at this exact location?
	var moved *FileRecord
	for _, rec := range matches {
		if rec.Location() == path {
			return nil
		}
		if moved == nil && !rec.IsDuplicate {
			moved = rec
		}
	}

	now := s.clock.Now().UTC()
	if moved != nil {
		// Known content at a new path: the move happened outside the system.
		if err := s.registry.RecordExternalMove(moved.ID, moved.Location(), path, now); err != nil {
			return err
		}
		if moved.State == StateMissing {
			if err := s.registry.SetFileState(moved.ID, StateOrganized); err != nil {
				return err
			}
		}
		result.ExternalMoves++
		return nil
	}

	// Content the registry has never seen: register it where it stands.
	quick := sum
	if info.Size() > hash.QuickWindow {
		qf, err := s.fsmgr.Open(path)
		if err == nil {
			if q, qerr := hash.Quick(qf); qerr == nil {
				quick = q
			}
			qf.Close()
		}
	}
	rec := &FileRecord{
		ID:            s.idgen.New(),
		OriginalPath:  path,
		CanonicalPath: sql.NullString{String: path, Valid: true},
		SizeBytes:     info.Size(),
		QuickHash:     sql.NullString{String: quick, Valid: true},
		ContentHash:   sql.NullString{String: sum, Valid: true},
		State:         StateOrganized,
		FirstSeenAt:   now,
		ModifiedAt:    info.ModTime().UTC(),
	}
	if atime, ok := s.fsmgr.Atime(info); ok {
		rec.AccessedAt = sql.NullTime{Time: atime.UTC(), Valid: true}
	}
	if _, err := s.registry.UpsertScanned([]*FileRecord{rec}); err != nil {
		return err
	}
	result.Discovered++
	s.logger.Info("file discovered", "path", path, "id", rec.ID)
	return nil
}
