package docs

import (
	"strings"

	"github.com/im7mortal/kmutex"
)

// ServiceOptions carries the deployment settings the storage service needs.
type ServiceOptions struct {
	// StorageFolder is the URL path segment documents are served under.
	// Empty means documents are served from the server root.
	StorageFolder string

	// ExampleURL, when set, replaces the caller's server URL in links
	// handed to the external editing service.
	ExampleURL string

	// EditedExtensions lists the extensions (with dot) that open in edit mode.
	EditedExtensions []string
}

// Service implements the per-user document storage operations on top of a Layout.
// Path derivation is read-only and safe for concurrent use; version allocation
// is serialized per (identity, fileName).
type Service struct {
	layout    *Layout
	types     FileTypeClassifier
	revisions RevisionIDGenerator
	opts      ServiceOptions
	editable  map[string]bool
	logger    Logger
	locks     *kmutex.Kmutex
}

// NewService creates a Service with the provided collaborators.
func NewService(layout *Layout, types FileTypeClassifier, revisions RevisionIDGenerator, opts ServiceOptions, logger Logger) *Service {
	editable := make(map[string]bool, len(opts.EditedExtensions))
	for _, ext := range opts.EditedExtensions {
		editable[strings.ToLower(ext)] = true
	}
	opts.StorageFolder = strings.Trim(opts.StorageFolder, "/")
	opts.ExampleURL = strings.TrimRight(opts.ExampleURL, "/")

	return &Service{
		layout:    layout,
		types:     types,
		revisions: revisions,
		opts:      opts,
		editable:  editable,
		logger:    logger,
		locks:     kmutex.New(),
	}
}

// Layout returns the path resolver the service operates on.
func (s *Service) Layout() *Layout {
	return s.layout
}

// lockDocument serializes mutations of one document's history.
// The returned func releases the lock.
func (s *Service) lockDocument(identity, name string) func() {
	key := identity + "/" + name
	s.locks.Lock(key)
	return func() { s.locks.Unlock(key) }
}
