// Package stage defines the contract between the processing pipeline and the
// bodies of individual print and object steps.
//
// A Handler receives a Job carrying an immutable view of what it works on, a
// cancellation poll and a warning sink. Bodies call Job.Check at every natural
// suspension point and return the resulting error unchanged. A body that
// cannot produce a result returns a *Failure; the pipeline turns it into a
// critical warning and leaves the step invalid so the next run retries it.
//
// The simulated handlers in this package stand in for geometry work: they
// validate their inputs, poll for cancellation once per region or object and
// raise the warnings a real implementation would.
package stage
