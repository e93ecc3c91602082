package schema

import "strings"

// KeyPath names an attribute. Nested attributes join their segments with
// ".". The root, Self, names the object itself.
type KeyPath string

// Self is the root key path.
const Self KeyPath = "SELF"

// Append returns the key path of a child attribute. Appending to Self (or to
// the empty path) replaces the root.
func (k KeyPath) Append(key string) KeyPath {
	if k == Self || k == "" {
		return KeyPath(key)
	}
	return KeyPath(string(k) + "." + key)
}

// Segments splits the key path. Self has no segments.
func (k KeyPath) Segments() []string {
	if k == Self || k == "" {
		return nil
	}
	return strings.Split(string(k), ".")
}

// String implements fmt.Stringer.
func (k KeyPath) String() string {
	return string(k)
}
