package classify

import (
	"context"
	"path/filepath"
	"regexp"

	"ft-go/internal/ft"
)

// Filename entity patterns. Dates are the common YYYY-MM-DD and YYYYMMDD
// shapes; document numbers are INV/DOC/REF-prefixed tokens.
var (
	isoDateRe     = regexp.MustCompile(`(20\d{2}|19\d{2})[-_.]?(0[1-9]|1[0-2])[-_.]?(0[1-9]|[12]\d|3[01])`)
	yearRe        = regexp.MustCompile(`\b(20\d{2}|19\d{2})\b`)
	docNumberRe   = regexp.MustCompile(`(?i)\b(?:inv|invoice|doc|ref|no)[-_ ]?(\d{3,})\b`)
	vendorTokenRe = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9]{2,})[-_ ]`)
)

// NameExtractor derives template variables from the filename alone.
// Recognized keys: "year", "month", "day", "doc_number", "vendor".
// A content-aware extractor (PDF metadata, OCR) plugs in behind the same
// interface; this one needs no file reads.
type NameExtractor struct{}

// NewNameExtractor creates a filename-based extractor.
func NewNameExtractor() *NameExtractor {
	return &NameExtractor{}
}

// Extract returns whatever entities the filename yields. A file with no
// recognizable tokens produces an empty map, not an error.
func (e *NameExtractor) Extract(ctx context.Context, path string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	base := filepath.Base(path)
	entities := make(map[string]string)

	if m := isoDateRe.FindStringSubmatch(base); m != nil {
		entities["year"] = m[1]
		entities["month"] = m[2]
		entities["day"] = m[3]
	} else if m := yearRe.FindStringSubmatch(base); m != nil {
		entities["year"] = m[1]
	}

	if m := docNumberRe.FindStringSubmatch(base); m != nil {
		entities["doc_number"] = m[1]
	}

	if m := vendorTokenRe.FindStringSubmatch(base); m != nil {
		entities["vendor"] = m[1]
	}

	return entities, nil
}

var _ ft.Extractor = (*NameExtractor)(nil)
