// Package store holds the dashboard's view model.
//
// A Store owns one immutable Snapshot. State changes only through Dispatch
// with one of the named actions in this package; every transition copies
// what it touches, so a snapshot handed to a subscriber never changes.
//
// # Loading
//
// Loading is true while at least one dispatch is in flight. Pending keeps
// per-domain counts so concurrent scans can be told apart.
//
// # Device Merging
//
// Device collections arrive from fetches, scans and push events. Under
// MergeLastWriteWins (the default) whichever collection is applied last is
// kept. Under MergeVersioned a collection stamped with an older Seq than
// the one held is ignored. Stamps come from NextSeq and are taken when the
// producer starts, not when it finishes.
//
// LastUpdate moves only when the held device collection actually changes,
// so applying the same collection twice leaves the snapshot as it was.
//
// # Teardown
//
// After Close, Dispatch is a no-op. Dispatches still in flight when the
// view goes away therefore write nothing.
package store
