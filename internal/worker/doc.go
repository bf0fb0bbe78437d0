// Package worker implements the background job worker: a poll loop
// that claims eligible jobs from the store within a concurrency bound,
// dispatches them to type-specific handlers, and emits lifecycle events
// consumed by the progress notifier.
//
// A single JobWorker instance runs per process. Horizontal scaling is
// achieved by running more worker processes against the same database;
// this is safe because claim atomicity lives in the store, not here.
package worker
