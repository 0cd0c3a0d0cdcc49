// Package filetype classifies documents by extension into the editor family
// that opens them.
package filetype

import (
	"strings"

	"docstore-go/internal/docs"
)

var (
	textExtensions = []string{
		".doc", ".docx", ".docm", ".dot", ".dotx", ".dotm",
		".odt", ".fodt", ".ott", ".rtf", ".txt",
		".html", ".htm", ".mht", ".pdf", ".djvu", ".fb2", ".epub", ".xps",
	}
	spreadsheetExtensions = []string{
		".xls", ".xlsx", ".xlsm", ".xlt", ".xltx", ".xltm",
		".ods", ".fods", ".ots", ".csv",
	}
	presentationExtensions = []string{
		".pps", ".ppsx", ".ppsm", ".ppt", ".pptx", ".pptm",
		".pot", ".potx", ".potm", ".odp", ".fodp", ".otp",
	}
)

// DefaultEditedExtensions are the extensions opened in edit mode when
// configuration does not say otherwise.
var DefaultEditedExtensions = []string{".docx", ".xlsx", ".csv", ".pptx", ".txt"}

// Classifier implements docs.FileTypeClassifier over fixed extension tables.
type Classifier struct {
	types map[string]docs.DocumentType
}

// NewClassifier creates a Classifier.
func NewClassifier() *Classifier {
	types := make(map[string]docs.DocumentType)
	for _, ext := range textExtensions {
		types[ext] = docs.DocumentText
	}
	for _, ext := range spreadsheetExtensions {
		types[ext] = docs.DocumentSpreadsheet
	}
	for _, ext := range presentationExtensions {
		types[ext] = docs.DocumentPresentation
	}
	return &Classifier{types: types}
}

// Type returns the editor family of fileName, or docs.DocumentOther.
func (c *Classifier) Type(fileName string) docs.DocumentType {
	if t, ok := c.types[c.Extension(fileName)]; ok {
		return t
	}
	return docs.DocumentOther
}

// Extension returns the lowercased extension of the last path element,
// including the dot. A name without a dot, or whose only dot is leading,
// has no extension.
func (c *Classifier) Extension(fileName string) string {
	base := lastElement(fileName)
	i := strings.LastIndex(base, ".")
	if i <= 0 {
		return ""
	}
	return strings.ToLower(base[i:])
}

// BaseName returns the last path element of fileName. Both "/" and "\" are
// treated as separators, whatever the host OS.
func (c *Classifier) BaseName(fileName string, stripExtension bool) string {
	base := lastElement(fileName)
	if !stripExtension {
		return base
	}
	if ext := c.Extension(base); ext != "" {
		return base[:len(base)-len(ext)]
	}
	return base
}

func lastElement(fileName string) string {
	if i := strings.LastIndexAny(fileName, `/\`); i >= 0 {
		return fileName[i+1:]
	}
	return fileName
}

var _ docs.FileTypeClassifier = (*Classifier)(nil)
