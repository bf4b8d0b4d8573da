// Package printconfig holds typed option values, the option catalogue and
// the rules that turn layered option sets into effective object and region
// configurations.
//
// A Config is a flat key/value map. Each known key has an Option entry that
// records its scope (print, object or region), its default and which
// pipeline steps must be recomputed when it changes. Unknown keys are
// accepted and treated as print-wide options that invalidate everything.
//
// Configs are compared structurally; Hash gives a stable fingerprint so
// equal region configurations can be interned without pairwise comparison.
package printconfig
