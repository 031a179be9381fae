package ft

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"ft-go/internal/hash"
)

// AnalyzeResult is the report of one duplicate-analysis run.
type AnalyzeResult struct {
	Candidates    int // records that entered the pipeline
	Groups        int // confirmed duplicate groups
	Duplicates    int // non-canonical members across all groups
	Suggestions   int // near-duplicate pairs added to the review queue
	HashedFully   int // files whose full hash was computed this run
	PerFileErrors int
}

// AnalyzeDuplicates runs the four-stage duplicate pipeline over the registry
// and applies the resulting grouping as one atomic batch. Each stage strictly
// narrows the candidate set; the full hash is only ever computed for files
// that survived the size and quick-hash stages. The structure ruleset
// supplies the preferred-path prefixes canonical selection reads.
func (s *FTService) AnalyzeDuplicates(ctx context.Context, structure *Structure) (*AnalyzeResult, error) {
	all, err := s.registry.AllFiles()
	if err != nil {
		return nil, fmt.Errorf("loading registry: %w", err)
	}

	// Missing and error records have no readable content to compare.
	var candidates []*FileRecord
	for _, rec := range all {
		if rec.State == StateMissing || rec.State == StateError {
			continue
		}
		candidates = append(candidates, rec)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })

	result := &AnalyzeResult{Candidates: len(candidates)}

	// Stage 1: group by (size, extension); singletons cannot be duplicates.
	stage1 := make(map[string][]*FileRecord)
	for _, rec := range candidates {
		key := fmt.Sprintf("%d|%s", rec.SizeBytes, strings.ToLower(filepath.Ext(rec.OriginalPath)))
		stage1[key] = append(stage1[key], rec)
	}

	// Stage 2: regroup survivors by quick hash.
	stage2 := make(map[string][]*FileRecord)
	for _, group := range stage1 {
		if len(group) < 2 {
			continue
		}
		for _, rec := range group {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if !rec.QuickHash.Valid {
				quick, err := s.hashFile(rec, hash.Quick)
				if err != nil {
					s.isolateFileError(rec, err, result)
					continue
				}
				rec.QuickHash = quick
			}
			stage2[rec.QuickHash.String] = append(stage2[rec.QuickHash.String], rec)
		}
	}

	// Stage 3: full hash confirms exact duplicates.
	stage3 := make(map[string][]*FileRecord)
	for _, group := range stage2 {
		if len(group) < 2 {
			continue
		}
		for _, rec := range group {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if !rec.ContentHash.Valid {
				full, err := s.hashFile(rec, hash.Full)
				if err != nil {
					s.isolateFileError(rec, err, result)
					continue
				}
				if err := s.registry.SetContentHash(rec.ID, full.String); err != nil {
					return nil, err
				}
				rec.ContentHash = full
				result.HashedFully++
			}
			stage3[rec.ContentHash.String] = append(stage3[rec.ContentHash.String], rec)
		}
	}

	now := s.clock.Now().UTC()
	var groups []*DuplicateGroup
	confirmed := make(map[string]bool) // file IDs in a confirmed group
	for _, members := range stage3 {
		if len(members) < 2 {
			continue
		}
		sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
		canonical := s.selectCanonical(members, structure)

		ids := make([]string, len(members))
		for i, m := range members {
			ids[i] = m.ID
			confirmed[m.ID] = true
		}
		groups = append(groups, &DuplicateGroup{
			ID:              s.idgen.New(),
			CanonicalFileID: canonical.ID,
			DetectionMethod: DetectionFullHash,
			MemberFileIDs:   ids,
			CreatedAt:       now,
		})
		result.Duplicates += len(members) - 1
	}
	// Deterministic write order regardless of map iteration.
	sort.Slice(groups, func(i, j int) bool { return groups[i].CanonicalFileID < groups[j].CanonicalFileID })

	if err := s.registry.ApplyDuplicateGroups(groups); err != nil {
		return nil, fmt.Errorf("applying duplicate groups: %w", err)
	}
	result.Groups = len(groups)

	// Stage 4: fuzzy filename suggestions for everything not yet confirmed.
	// Suggestions never set is_duplicate.
	if s.tuning.FuzzyEnabled {
		added, err := s.suggestNearDuplicates(ctx, candidates, confirmed, now)
		if err != nil {
			return nil, err
		}
		result.Suggestions = added
	}

	s.logger.Info("duplicate analysis finished",
		"candidates", result.Candidates,
		"groups", result.Groups,
		"duplicates", result.Duplicates,
		"suggestions", result.Suggestions)
	return result, nil
}

// hashFile opens a record's current location and applies the given digest.
func (s *FTService) hashFile(rec *FileRecord, digest func(r io.Reader) (string, error)) (sql.NullString, error) {
	f, err := s.fsmgr.Open(rec.Location())
	if err != nil {
		return sql.NullString{}, fmt.Errorf("opening %s: %w", rec.Location(), err)
	}
	defer f.Close()

	sum, err := digest(f)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("hashing %s: %w", rec.Location(), err)
	}
	return sql.NullString{String: sum, Valid: true}, nil
}

// isolateFileError downgrades one bad file to an error-state record and lets
// the run continue.
func (s *FTService) isolateFileError(rec *FileRecord, cause error, result *AnalyzeResult) {
	result.PerFileErrors++
	s.logger.Warn("file excluded from analysis", "path", rec.Location(), "error", cause)
	if err := s.registry.SetFileError(rec.ID, cause.Error()); err != nil {
		s.logger.Error("recording file error failed", "id", rec.ID, "error", err)
	}
	rec.State = StateError
}
