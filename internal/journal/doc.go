// Package journal persists change events to SQLite and replays them.
//
// Events are content-addressed: the primary key is a hash of the event's
// canonical JSON form, so appending the same event twice is a no-op. Per
// origin, (origin, seq) is unique and reads order by seq with the event id
// as a deterministic tiebreaker, which keeps logs stable across merges.
//
// A Recorder bridges the node layer to the journal: it subscribes to a
// source with the match-all selector and appends every delivered event.
// Replay feeds a persisted log back through a master's mutate path to
// reconstruct equivalent canonical data.
package journal
