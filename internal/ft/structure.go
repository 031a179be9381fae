package ft

// Structure is the declarative target-structure ruleset: document type to
// path template, plus the knobs canonical selection reads. It is loaded once
// per planner invocation and treated as immutable for its duration.
type Structure struct {
	// DefaultTemplate places files whose document type has no rule of its
	// own. Empty means such files generate no action.
	DefaultTemplate string

	// PreferredPrefixes are path prefixes whose members win canonical
	// selection bonuses.
	PreferredPrefixes []string

	// Types maps a document type to its placement rule.
	Types map[string]TypeRule
}

// TypeRule is the placement rule for one document type.
type TypeRule struct {
	// Template is the target path, relative to the canonical root.
	// Recognized placeholders: {YYYY}, {MM}, {type}, {filename}, and any
	// named metadata key supplied by the extractor.
	Template string

	// Patterns are filename regexes the built-in pattern classifier uses
	// to assign this type.
	Patterns []string
}

// TemplateFor returns the template for a document type, falling back to the
// default template. ok is false when neither exists.
func (s *Structure) TemplateFor(docType string) (string, bool) {
	if rule, found := s.Types[docType]; found && rule.Template != "" {
		return rule.Template, true
	}
	if s.DefaultTemplate != "" {
		return s.DefaultTemplate, true
	}
	return "", false
}
