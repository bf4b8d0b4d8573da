// Package config loads, normalizes, and validates printsync configuration.
//
// It supplies defaults, expands user paths (including tilde shortcuts) and
// reads TOML files. The Config type gathers every knob the CLI and the watch
// daemon need: where state and logs live, how the engine reacts to internal
// inconsistencies, how many objects the worker processes at once, and how
// file changes are debounced.
//
// Always obtain settings through this package so downstream code receives
// expanded paths, canonical log formats, and validation errors that name the
// offending key.
package config
