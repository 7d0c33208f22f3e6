package document

import (
	"encoding/hex"

	"github.com/minio/highwayhash"
)

// hashKey is the fixed 32-byte HighwayHash key. Changing it changes every
// stored content hash.
var hashKey = []byte("kbase-document-content-hash-v1..")

const (
	idPrefix   = "id:"
	hashPrefix = "hash:"
)

// ContentHash returns the hex HighwayHash-64 of the content.
func (d Document) ContentHash() string {
	return HashContent(d.content)
}

// HashContent returns the hex HighwayHash-64 of s.
func HashContent(s string) string {
	h, err := highwayhash.New64(hashKey)
	if err != nil {
		// only fails on a key that is not 32 bytes
		panic(err)
	}
	_, _ = h.Write([]byte(s))
	return hex.EncodeToString(h.Sum(nil))
}

// Identity is the key backends use for existence checks and conflict
// detection: the id when set, otherwise the content hash.
func (d Document) Identity() string {
	if d.id != nil {
		return IDIdentity(*d.id)
	}
	return hashPrefix + d.ContentHash()
}

// IDIdentity returns the identity of a document carrying the given id.
func IDIdentity(id string) string { return idPrefix + id }
