// Package daemon wires the editor side and the worker side of printsync.
//
// A Session owns one print, the scene binder feeding it and the processor
// draining it. The CLI uses a Session directly for one-shot runs. The Daemon
// adds the long-running pieces around a Session: a flock-based single
// instance lock on the state directory, a scene watcher, the background
// worker, the journal and the metrics endpoint.
//
// Keep orchestration here. Reconciliation rules belong to the print package
// and step bodies to the stage package.
package daemon
