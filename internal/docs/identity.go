package docs

import (
	"regexp"
	"strings"
)

var unsafeIdentityChars = regexp.MustCompile(`[^0-9a-zA-Z.=]`)

// SanitizeIdentity maps a raw caller address onto a single path segment.
// Every character outside [0-9A-Za-z.=] becomes "_". A result made only of
// dots ("." or "..") has its dots replaced too, and an empty address maps to "_".
func SanitizeIdentity(raw string) string {
	s := unsafeIdentityChars.ReplaceAllString(raw, "_")
	if strings.Trim(s, ".") == "" {
		s = strings.Repeat("_", len(s))
	}
	if s == "" {
		return "_"
	}
	return s
}

// validIdentity reports whether identity is already a sanitized segment.
func validIdentity(identity string) bool {
	return identity != "" && SanitizeIdentity(identity) == identity
}

// Caller carries the per-request values every resolver needs.
// It replaces process-wide request state: build one per request and pass it along.
type Caller struct {
	// Identity is the sanitized caller address partitioning storage.
	Identity string

	// ServerURL is the base URL the caller reached this service on,
	// e.g. "https://docs.example.com". It is used for canonical document URLs.
	ServerURL string
}

// NewCaller builds a Caller from the forwarded-for header and the raw
// connection address. A non-empty forwarded-for header wins and is sanitized
// whole, so a proxy chain such as "10.0.0.1, 10.0.0.2" keeps its own namespace.
func NewCaller(forwardedFor, remoteAddr, serverURL string) Caller {
	addr := remoteAddr
	if forwardedFor != "" {
		addr = forwardedFor
	}
	return Caller{
		Identity:  SanitizeIdentity(addr),
		ServerURL: strings.TrimRight(serverURL, "/"),
	}
}
