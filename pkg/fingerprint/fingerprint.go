// Package fingerprint computes stable content digests for rendered pages.
//
// A digest is a pure function of the page's rendered bytes: identical content
// on two runs yields an identical digest regardless of platform or process.
// Digest equality is treated as content equality; at 256 bits the collision
// probability is negligible.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// Digest is a hex-encoded SHA-256 content hash
type Digest string

// Compute returns the digest of the given content bytes
func Compute(content []byte) Digest {
	sum := sha256.Sum256(content)
	return Digest(hex.EncodeToString(sum[:]))
}

// IsZero reports whether the digest is unset
func (d Digest) IsZero() bool {
	return d == ""
}

// String returns the hex form of the digest
func (d Digest) String() string {
	return string(d)
}
