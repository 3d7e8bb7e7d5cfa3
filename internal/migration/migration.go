package migration

import (
	"crypto/sha256"
	"encoding/hex"
)

// Migration is one versioned change script discovered by a Resolver.
// Equality and ordering are defined by Version alone.
type Migration struct {
	Version     Version // Parsed from the filename prefix, e.g. "V2__create_trips.sql" -> 2
	Description string  // "create trips" for the filename above
	Script      string  // Trimmed file contents
	Checksum    string  // SHA-256 hex digest of Script
	Source      string  // Path relative to the resolver root
}

// Compare orders migrations by version.
func (m Migration) Compare(other Migration) int {
	return m.Version.Compare(other.Version)
}

// ComputeChecksum returns the SHA-256 hex digest of the given SQL string.
func ComputeChecksum(sql string) string {
	h := sha256.Sum256([]byte(sql))

	return hex.EncodeToString(h[:])
}
