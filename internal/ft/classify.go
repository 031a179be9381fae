package ft

import (
	"context"
	"errors"
	"fmt"
)

// ClassifyResult is the report of one classification pass.
type ClassifyResult struct {
	Pending      int // records that entered the pass
	Classified   int
	Unclassified int // left pending for the next pass
	Errors       int
}

// ClassifyPending runs the classifier collaborator over every pending
// record. Each call is bounded by the classify timeout so a hung classifier
// cannot stall the pass. A failure or no-answer leaves the record pending;
// it is retried on the next pass.
func (s *FTService) ClassifyPending(ctx context.Context) (*ClassifyResult, error) {
	if s.classifier == nil {
		return nil, fmt.Errorf("no classifier configured")
	}

	pending, err := s.registry.FindByState(StatePending)
	if err != nil {
		return nil, fmt.Errorf("loading pending records: %w", err)
	}

	result := &ClassifyResult{Pending: len(pending)}
	for _, rec := range pending {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		callCtx, cancel := context.WithTimeout(ctx, s.tuning.ClassifyTimeout)
		c, err := s.classifier.Classify(callCtx, rec.Location())
		cancel()

		if err != nil {
			var unclassified *UnclassifiedError
			if errors.As(err, &unclassified) || errors.Is(err, context.DeadlineExceeded) {
				result.Unclassified++
				continue
			}
			result.Errors++
			s.logger.Warn("classification failed", "path", rec.Location(), "error", err)
			continue
		}

		if err := validateClassification(c); err != nil {
			result.Errors++
			s.logger.Warn("classifier returned invalid result", "path", rec.Location(), "error", err)
			continue
		}

		if err := s.registry.UpdateClassification(rec.ID, c.DocumentType, c.Confidence, c.Method); err != nil {
			return result, err
		}
		result.Classified++
		s.logger.Debug("file classified",
			"path", rec.Location(),
			"type", c.DocumentType,
			"confidence", c.Confidence,
			"method", c.Method)
	}

	s.logger.Info("classification pass finished",
		"pending", result.Pending,
		"classified", result.Classified,
		"left", result.Unclassified)
	return result, nil
}

// validateClassification enforces the typed boundary with the collaborator.
func validateClassification(c Classification) error {
	if c.DocumentType == "" {
		return fmt.Errorf("empty document type")
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		return fmt.Errorf("confidence %v out of range", c.Confidence)
	}
	switch c.Method {
	case MethodMLModel, MethodPattern, MethodManual, MethodExtension:
		return nil
	default:
		return fmt.Errorf("unknown classification method %q", c.Method)
	}
}

// Correct applies a manual reclassification: the document type is updated,
// an audit record is appended, and the record becomes eligible for the next
// reorganization pass. The file is not moved immediately.
func (s *FTService) Correct(fileID string, newType string, reason string) error {
	if newType == "" {
		return fmt.Errorf("new document type must not be empty")
	}
	rec, err := s.registry.GetFile(fileID)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("no file with id %s", fileID)
	}

	if err := s.registry.RecordCorrection(fileID, newType, reason, s.clock.Now().UTC()); err != nil {
		return err
	}

	// A pending record counts as classified once a human typed it.
	if rec.State == StatePending || rec.State == StateReview {
		if err := s.registry.SetFileState(fileID, StateClassified); err != nil {
			return err
		}
	}

	s.logger.Info("classification corrected", "id", fileID, "type", newType, "reason", reason)
	return nil
}
