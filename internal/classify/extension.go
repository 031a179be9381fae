package classify

import (
	"context"
	"path/filepath"
	"strings"

	"ft-go/internal/ft"
)

// defaultExtensionTypes is the built-in extension fallback mapping.
var defaultExtensionTypes = map[string]string{
	".pdf":  "document",
	".doc":  "document",
	".docx": "document",
	".txt":  "text",
	".md":   "text",
	".csv":  "spreadsheet",
	".xls":  "spreadsheet",
	".xlsx": "spreadsheet",
	".jpg":  "image",
	".jpeg": "image",
	".png":  "image",
	".gif":  "image",
	".mp3":  "audio",
	".wav":  "audio",
	".mp4":  "video",
	".mkv":  "video",
	".zip":  "archive",
	".tar":  "archive",
	".gz":   "archive",
}

// ExtensionClassifier is the last-resort classifier: it maps file extensions
// to coarse document types with low confidence.
type ExtensionClassifier struct {
	types map[string]string
}

// NewExtensionClassifier returns a classifier using the built-in mapping.
func NewExtensionClassifier() *ExtensionClassifier {
	return &ExtensionClassifier{types: defaultExtensionTypes}
}

// Classify maps the file's extension to a document type.
func (c *ExtensionClassifier) Classify(ctx context.Context, path string) (ft.Classification, error) {
	if err := ctx.Err(); err != nil {
		return ft.Classification{}, err
	}

	ext := strings.ToLower(filepath.Ext(path))
	docType, ok := c.types[ext]
	if !ok {
		return ft.Classification{}, &ft.UnclassifiedError{Path: path}
	}
	return ft.Classification{
		DocumentType: docType,
		Confidence:   0.5,
		Method:       ft.MethodExtension,
	}, nil
}

var _ ft.Classifier = (*ExtensionClassifier)(nil)
