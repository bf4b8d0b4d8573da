// Package pipeline runs the outstanding steps of a print.
//
// A Processor takes a snapshot of the print, runs object steps for every
// derived object in parallel (each object walks its steps in order) and then
// the print-wide steps. Every step goes through the print's state machine:
// a step already Done is skipped, a failed body leaves its step Invalid with
// a critical warning, and a cancelled run stops quietly.
//
// Worker wraps a Processor in a background goroutine that the editor kicks
// after every change.
package pipeline
