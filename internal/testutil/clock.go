package testutil

import (
	"strconv"
	"sync/atomic"
	"time"

	"docstore-go/internal/docs"
)

// ArchiveTime is the instant FixedClock reports.
var ArchiveTime = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

type fixedClock struct{}

func (fixedClock) Now() time.Time { return ArchiveTime }

// FixedClock returns a clock stopped at ArchiveTime, so catalog rows written
// by an archive run are stamped identically.
func FixedClock() docs.Clock {
	return fixedClock{}
}

// ArtifactIDs hands out catalog row IDs "artifact-1", "artifact-2", ...
type ArtifactIDs struct {
	n atomic.Int64
}

// NewArtifactIDs creates an ArtifactIDs starting at 1.
func NewArtifactIDs() *ArtifactIDs {
	return &ArtifactIDs{}
}

func (g *ArtifactIDs) New() string {
	return "artifact-" + strconv.FormatInt(g.n.Add(1), 10)
}

var _ docs.IDGenerator = (*ArtifactIDs)(nil)
