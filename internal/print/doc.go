// Package print holds the derived graph and the reconciliation engine that
// keeps it synchronized with the user-edited model.
//
// A Print owns one baseline copy of the model, the derived objects grouped by
// instance transform, the regions interned across the whole print, and the
// step state tables of the print and of every derived object. Apply diffs a
// new model and configuration against the baseline and invalidates only what
// the edit affects; the worker side (StartObjectStep, FinishObjectStep and
// friends) drives step states under the same lock.
package print
