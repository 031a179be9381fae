package ft

import "context"

// Classification is a typed classifier result, validated at the collaborator
// boundary instead of a loosely-typed map.
type Classification struct {
	DocumentType string
	Confidence   float64 // 0.0 - 1.0
	Method       string  // ml_model | pattern | manual | extension
}

// UnclassifiedError is returned by a classifier that has no answer for a
// file, leaving it pending for the next pass.
type UnclassifiedError struct {
	Path string
}

func (e *UnclassifiedError) Error() string {
	return "no classification for " + e.Path
}

// Classifier assigns a document type to a file. Implementations may inspect
// the path only or open the content; they must respect ctx cancellation so a
// hung collaborator cannot stall a batch loop.
type Classifier interface {
	Classify(ctx context.Context, path string) (Classification, error)
}

// Extractor supplies template variables (document numbers, dates, vendor
// names) from a file. Absent keys are handled by the planner's fallback
// substitution rules.
type Extractor interface {
	Extract(ctx context.Context, path string) (map[string]string, error)
}
