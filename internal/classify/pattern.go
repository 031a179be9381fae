// Package classify holds the built-in classifier and extractor collaborators.
// The ML classifier is an external service wired in behind the same
// interfaces; these implementations cover the pattern and extension methods.
package classify

import (
	"context"
	"path/filepath"
	"regexp"
	"sort"

	"ft-go/internal/ft"
)

// patternRule is one compiled filename rule.
type patternRule struct {
	docType string
	re      *regexp.Regexp
}

// PatternClassifier assigns document types from filename regexes declared in
// the structure ruleset. Rules are evaluated in sorted type order so a file
// matching several types always classifies the same way.
type PatternClassifier struct {
	rules []patternRule
}

// NewPatternClassifier compiles the ruleset's patterns.
// Patterns were validated at structure load time; a compile failure here is
// a programming error and is reported as such.
func NewPatternClassifier(s *ft.Structure) (*PatternClassifier, error) {
	types := make([]string, 0, len(s.Types))
	for name := range s.Types {
		types = append(types, name)
	}
	sort.Strings(types)

	var rules []patternRule
	for _, name := range types {
		for _, p := range s.Types[name].Patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, err
			}
			rules = append(rules, patternRule{docType: name, re: re})
		}
	}
	return &PatternClassifier{rules: rules}, nil
}

// Classify matches the file's basename against the rules.
func (c *PatternClassifier) Classify(ctx context.Context, path string) (ft.Classification, error) {
	if err := ctx.Err(); err != nil {
		return ft.Classification{}, err
	}

	base := filepath.Base(path)
	for _, r := range c.rules {
		if r.re.MatchString(base) {
			return ft.Classification{
				DocumentType: r.docType,
				Confidence:   0.9,
				Method:       ft.MethodPattern,
			}, nil
		}
	}
	return ft.Classification{}, &ft.UnclassifiedError{Path: path}
}

var _ ft.Classifier = (*PatternClassifier)(nil)
