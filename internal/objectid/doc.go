// Package objectid issues the identifiers and content timestamps that the
// rest of printsync uses for change detection.
//
// Identifiers are strictly positive and unique for the lifetime of a
// Generator; zero means "no identity yet". Timestamps come from a second
// counter and are compared for equality only. A process-wide Default
// generator exists for wiring code, while tests construct their own so
// identifiers stay deterministic.
package objectid
