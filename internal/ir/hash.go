package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes keep hashes of different kinds of documents apart.
// The version suffix allows migrating an algorithm without collisions.
const (
	DomainContent   = "diffable/content/v1"
	DomainChangeset = "diffable/changeset/v1"
	DomainSnapshot  = "diffable/snapshot/v1"
)

// hashWithDomain computes SHA256(domain || 0x00 || data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Hash returns the domain-separated hash of the canonical encoding of v.
func Hash(domain string, v any) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", domain, err)
	}
	return hashWithDomain(domain, canonical), nil
}

// ContentHash identifies the content of an object's attributes. Two objects
// with equal attributes have equal content hashes regardless of key order or
// Unicode normalization form. Null attributes are dropped first: they are
// valid in storage but have no canonical form.
func ContentHash(attrs Object) (string, error) {
	return Hash(DomainContent, dropNulls(attrs))
}

// MustContentHash is like ContentHash but panics on error.
// Use only in tests or when attributes are known to be valid.
func MustContentHash(attrs Object) string {
	h, err := ContentHash(attrs)
	if err != nil {
		panic(err)
	}
	return h
}

func dropNulls(obj Object) Object {
	out := make(Object, len(obj))
	for k, v := range obj {
		switch val := v.(type) {
		case Null:
			continue
		case Object:
			out[k] = dropNulls(val)
		default:
			out[k] = v
		}
	}
	return out
}
