// Package stagestate tracks pipeline step states for one owner.
//
// A Table holds one Record per step of an enumeration. Records move from
// Invalid to Started to Done under the worker and fall back to Invalid
// whenever the editor invalidates them. A Done record is trusted until it is
// invalidated, which is what lets repeated processing runs skip work.
//
// Tables are not synchronized. Every method must be called with the owner's
// lock held; the cancel callbacks passed to the invalidation methods run
// under that same lock and therefore must not block.
package stagestate
