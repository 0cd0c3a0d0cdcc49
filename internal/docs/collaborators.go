package docs

// DocumentType is the editor family a document opens in.
type DocumentType string

const (
	DocumentText         DocumentType = "text"
	DocumentSpreadsheet  DocumentType = "spreadsheet"
	DocumentPresentation DocumentType = "presentation"
	DocumentOther        DocumentType = ""
)

// FileTypeClassifier derives type and naming information from a file name.
type FileTypeClassifier interface {
	// Type returns the editor family for the file's extension.
	Type(fileName string) DocumentType

	// Extension returns the lowercased extension including the leading dot,
	// or "" when the name has none.
	Extension(fileName string) string

	// BaseName returns the last element of fileName, optionally without its extension.
	BaseName(fileName string, stripExtension bool) string
}

// RevisionIDGenerator turns an arbitrary seed into an opaque revision token.
// Implementations must be deterministic and return a bounded-length token
// drawn from a restricted character set.
type RevisionIDGenerator interface {
	GenerateRevisionID(seed string) string
}
