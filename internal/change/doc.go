// Package change defines the value space and event model for helix.
//
// This package contains foundational types only. All other internal packages
// import change; change imports nothing internal. This keeps the event model
// the base layer with no circular dependencies.
//
// Key design constraints:
//   - NO float types anywhere - use Int (int64) for numbers; floats break
//     the byte-stable canonical form that event ids are hashed from
//   - Events are immutable: OldValue/NewValue are deep copies at commit time
//   - Ordering uses per-origin logical sequence numbers, never wall clocks
//   - Canonical serialization follows RFC 8785 (UTF-16 key order, NFC,
//     no HTML escaping)
package change
