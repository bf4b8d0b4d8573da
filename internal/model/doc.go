// Package model is the user-editable source graph: a Model owns Objects, and
// each Object owns its Volumes, Instances and height-range overrides.
//
// Every node carries an identifier from objectid. Copy duplicates a tree and
// keeps identifiers, which is how the print engine takes its baseline and how
// workers get a snapshot. Clone duplicates a tree and mints fresh identifiers
// for every node it owns. Configuration blocks carry a timestamp that is
// bumped on every mutation made through the Model helpers, so owners can skip
// deep comparisons when nothing changed.
package model
