// Package ir holds the constrained value model shared by the store, the
// publishers and the diff engine.
//
// Object attributes, snapshot documents and changesets are all expressed in
// this model so that they can be serialized canonically and hashed:
//   - no floats: numbers are int64
//   - object keys are ordered by UTF-16 code units (RFC 8785)
//   - strings are NFC normalized at the serialization boundary
//
// ir imports nothing internal; every other package may import it.
package ir
