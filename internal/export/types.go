// Package export serializes a learning map into downloadable
// documents: a CSV workbook, a plain-text outline and a printable PDF.
package export

import "errors"

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

// ErrPDFDependencyMissing indicates PDF export runtime dependencies
// are unavailable.
var ErrPDFDependencyMissing = errors.New("export pdf dependency missing")

// sanitizeFilename creates a safe filename from a map title.
func sanitizeFilename(title string) string {
	result := ""
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			result += string(r)
		case r == ' ':
			result += "-"
		case r == '-', r == '_':
			result += string(r)
		default:
			// Skip other characters
		}
	}

	if len(result) > 50 {
		result = result[:50]
	}

	if result == "" {
		result = "learning-map"
	}

	return result
}
