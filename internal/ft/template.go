package ft

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// fallbackValue substitutes a metadata key the extractor did not supply.
// Targets built with it are flagged for review.
const fallbackValue = "unknown"

var placeholderRe = regexp.MustCompile(`\{([^{}]+)\}`)

// resolveTemplate expands a path template for one record. Recognized
// placeholders: {YYYY}, {MM}, {type}, {filename}, and any named metadata key.
// Missing date metadata falls back to the record's discovery time; any other
// missing key is substituted with a literal fallback. Either fallback flags
// the action requires_review. A malformed template is a ConfigurationError:
// the whole planner invocation aborts rather than produce partial semantics.
func resolveTemplate(template string, rec *FileRecord, docType string, meta map[string]string) (string, bool, error) {
	if strings.Count(template, "{") != strings.Count(template, "}") {
		return "", false, &ConfigurationError{Detail: fmt.Sprintf("unbalanced braces in template %q", template)}
	}

	review := false
	resolved := placeholderRe.ReplaceAllStringFunc(template, func(match string) string {
		key := match[1 : len(match)-1]
		switch key {
		case "YYYY":
			if y, ok := meta["year"]; ok && y != "" {
				return y
			}
			review = true
			return fmt.Sprintf("%04d", rec.FirstSeenAt.Year())
		case "MM":
			if m, ok := meta["month"]; ok && m != "" {
				if len(m) == 1 {
					return "0" + m
				}
				return m
			}
			review = true
			return fmt.Sprintf("%02d", int(rec.FirstSeenAt.Month()))
		case "type":
			return sanitizeSegment(docType)
		case "filename":
			return sanitizeSegment(filepath.Base(rec.Location()))
		default:
			if v, ok := meta[key]; ok && v != "" {
				return sanitizeSegment(v)
			}
			review = true
			return fallbackValue
		}
	})

	if strings.ContainsAny(resolved, "{}") {
		return "", false, &ConfigurationError{Detail: fmt.Sprintf("unresolved placeholder in template %q", template)}
	}
	return resolved, review, nil
}

// sanitizeSegment makes a value safe to embed in a path: separators and
// control characters become underscores, surrounding whitespace is dropped.
func sanitizeSegment(value string) string {
	value = strings.TrimSpace(value)
	var b strings.Builder
	for _, r := range value {
		switch {
		case r == '/' || r == '\\' || r == ':':
			b.WriteRune('_')
		case r < 0x20 || r == 0x7f:
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// splitStem returns a filename's stem and extension.
func splitStem(name string) (string, string) {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext), ext
}
