package extract

import (
	"fmt"
	"path/filepath"
	"strings"

	appErr "github.com/clarity-app/clarity/internal/pkg/errors"
)

// SupportedExt reports whether the upload extension has an extractor.
func SupportedExt(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown", ".pdf", ".epub":
		return true
	}
	return false
}

// Text extracts plain text from an uploaded document. Markdown is parsed for
// real; PDF and EPUB extraction is not implemented yet and yields a stub
// notice so the file card still gets created.
func Text(name string, data []byte) (string, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown":
		return MarkdownText(data), nil
	case ".pdf":
		return fmt.Sprintf("[PDF document: %s - text extraction pending]", filepath.Base(name)), nil
	case ".epub":
		return fmt.Sprintf("[EPUB document: %s - text extraction pending]", filepath.Base(name)), nil
	}
	return "", appErr.ErrFileType
}
