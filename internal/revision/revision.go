// Package revision turns document revision seeds into short opaque keys the
// editing service accepts.
package revision

import (
	"crypto/sha256"
	"encoding/base64"
	"regexp"

	"docstore-go/internal/docs"
)

// MaxLength is the longest key the editing service accepts.
const MaxLength = 20

var disallowed = regexp.MustCompile(`[^0-9\-.a-zA-Z_=]`)

// Generator implements docs.RevisionIDGenerator.
// Seeds longer than MaxLength are hashed first; the result is restricted to
// [0-9-.A-Za-z_=] and cut to MaxLength.
type Generator struct{}

// NewGenerator creates a Generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// GenerateRevisionID returns the key for seed. Equal seeds give equal keys.
func (g *Generator) GenerateRevisionID(seed string) string {
	if len(seed) > MaxLength {
		sum := sha256.Sum256([]byte(seed))
		seed = base64.RawURLEncoding.EncodeToString(sum[:])
	}
	key := disallowed.ReplaceAllString(seed, "_")
	if len(key) > MaxLength {
		key = key[:MaxLength]
	}
	return key
}

var _ docs.RevisionIDGenerator = (*Generator)(nil)
