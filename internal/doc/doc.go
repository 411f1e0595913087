// Package doc provides the opaque key-value documents that flow through the
// slicer: parent partitions, parent records, produced slices and cursor state.
//
// doc imports nothing internal. Every other internal package builds on it.
//
// Key design constraints:
//   - Value is a sealed union (Null, String, Int, Float, Bool, Array, *Map)
//   - Map preserves insertion order; JSON and YAML decoding keep document order
//   - A nil *Map reads as empty and marks "absent" where a mapping is optional
//   - Canonical JSON (RFC 8785 key order, NFC strings) is used for anything hashed
//     or persisted
package doc
