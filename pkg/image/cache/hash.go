package cache

import (
	"encoding/hex"
	"hash/fnv"
)

// ETag returns a strong entity tag derived from the FNV-64a hash of b.
func ETag(b []byte) string {
	h := fnv.New64a()

	// hash.Hash writes never fail
	_, _ = h.Write(b)

	return `"` + hex.EncodeToString(h.Sum(nil)) + `"`
}
