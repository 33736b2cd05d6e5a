// Package gitlib provides read-only access to git repositories through libgit2:
// tags resolved to commits, ranged history, tree listings and commit diffs
// with line-level edit lists.
package gitlib

import (
	"encoding/hex"
	"errors"
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// HashSize is the size of a SHA-1 hash in bytes.
const HashSize = 20

// ErrInvalidHash is returned for malformed hex object ids.
var ErrInvalidHash = errors.New("invalid object hash")

// Hash represents a git object hash (SHA-1).
type Hash [HashSize]byte

// ParseHash decodes a 40 character hex object id. The empty string yields the zero hash.
func ParseHash(hexStr string) (Hash, error) {
	var h Hash

	if hexStr == "" {
		return h, nil
	}

	raw, err := hex.DecodeString(hexStr)
	if err != nil || len(raw) != HashSize {
		return h, fmt.Errorf("%w: %q", ErrInvalidHash, hexStr)
	}

	copy(h[:], raw)

	return h, nil
}

// HashFromOid converts a libgit2 Oid to Hash.
func HashFromOid(oid *git2go.Oid) Hash {
	var h Hash

	if oid != nil {
		copy(h[:], oid[:])
	}

	return h
}

// String returns the hex representation of the hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero returns true if the hash is all zeros.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// ToOid converts Hash back to libgit2 Oid.
func (h Hash) ToOid() *git2go.Oid {
	oid := new(git2go.Oid)
	copy(oid[:], h[:])

	return oid
}
