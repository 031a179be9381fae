package ft

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
)

// PlanOptions tune one BuildPlan invocation.
type PlanOptions struct {
	// DuplicateAction, when set to ActionArchive or ActionDelete, emits one
	// such action per non-canonical duplicate. Empty leaves duplicates in
	// place.
	DuplicateAction ActionType
}

// BuildPlan computes the moves needed to bring every classified,
// non-duplicate record to its templated target under canonicalRoot, and
// persists the result as an unapproved plan. Records already at their target
// generate no action, so planning twice against an unchanged registry yields
// an empty second plan. Target collisions are resolved deterministically by
// numeric filename suffixes in ascending file-ID order. A ConfigurationError
// from the ruleset aborts the whole invocation.
func (s *FTService) BuildPlan(ctx context.Context, structure *Structure, canonicalRoot string, opts PlanOptions) (*MigrationPlan, error) {
	if structure == nil {
		return nil, &ConfigurationError{Detail: "no structure ruleset loaded"}
	}
	if canonicalRoot == "" {
		return nil, &ConfigurationError{Detail: "canonical root not configured"}
	}

	all, err := s.registry.AllFiles()
	if err != nil {
		return nil, fmt.Errorf("loading registry: %w", err)
	}

	// Fixed iteration order: collision resolution depends on it.
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	plan := &MigrationPlan{
		ID:        s.idgen.New(),
		CreatedAt: s.clock.Now().UTC(),
		Status:    PlanPending,
	}

	taken := make(map[string]string) // target path -> action ID
	var seq int64
	add := func(a *MigrationAction) {
		seq++
		a.PlanID = plan.ID
		a.Seq = seq
		a.Status = ActionPending
		plan.Actions = append(plan.Actions, a)
	}

	for _, rec := range all {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if rec.IsDuplicate {
			if opts.DuplicateAction == ActionArchive || opts.DuplicateAction == ActionDelete {
				add(&MigrationAction{
					ID:         s.idgen.New(),
					FileID:     rec.ID,
					SourcePath: rec.Location(),
					TargetPath: rec.Location(),
					Type:       opts.DuplicateAction,
					Reason:     fmt.Sprintf("duplicate of %s", rec.DuplicateOf.String),
				})
			}
			continue
		}
		if rec.State != StateClassified && rec.State != StateOrganized {
			continue
		}
		if !rec.DocumentType.Valid {
			continue
		}

		template, ok := structure.TemplateFor(rec.DocumentType.String)
		if !ok {
			continue
		}

		meta, err := s.extractMetadata(ctx, rec)
		if err != nil {
			return nil, err
		}

		relative, review, err := resolveTemplate(template, rec, rec.DocumentType.String, meta)
		if err != nil {
			return nil, err
		}
		target := filepath.Join(canonicalRoot, relative)

		current := rec.Location()
		if target == current {
			continue // already correctly placed
		}

		target = resolveCollision(target, taken)
		action := &MigrationAction{
			ID:             s.idgen.New(),
			FileID:         rec.ID,
			SourcePath:     current,
			TargetPath:     target,
			Type:           ActionMove,
			Reason:         fmt.Sprintf("classified as %s", rec.DocumentType.String),
			RequiresReview: review || rec.RequiresReview,
		}
		add(action)
		taken[target] = action.ID
	}

	if err := s.registry.CreatePlan(plan); err != nil {
		return nil, fmt.Errorf("persisting plan: %w", err)
	}

	s.logger.Info("plan created", "plan", plan.ID, "actions", len(plan.Actions))
	return plan, nil
}

// extractMetadata asks the extractor collaborator for template variables,
// bounded by the classify timeout. A failing extractor degrades to an empty
// variable set rather than failing the plan.
func (s *FTService) extractMetadata(ctx context.Context, rec *FileRecord) (map[string]string, error) {
	if s.extractor == nil {
		return nil, nil
	}
	callCtx, cancel := context.WithTimeout(ctx, s.tuning.ClassifyTimeout)
	defer cancel()

	meta, err := s.extractor.Extract(callCtx, rec.Location())
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Warn("metadata extraction failed", "path", rec.Location(), "error", err)
		return nil, nil
	}
	return meta, nil
}

// resolveCollision appends _1, _2, ... to the filename stem until the target
// is free. Earlier actions keep their paths; later ones are renamed, so the
// outcome is stable for a fixed generation order.
func resolveCollision(target string, taken map[string]string) string {
	if _, exists := taken[target]; !exists {
		return target
	}
	dir := filepath.Dir(target)
	stem, ext := splitStem(filepath.Base(target))
	for i := 1; ; i++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, i, ext))
		if _, exists := taken[candidate]; !exists {
			return candidate
		}
	}
}
