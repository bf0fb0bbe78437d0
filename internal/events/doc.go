// Package events provides types and interfaces for the worker's
// event-driven progress reporting.
//
// The worker emits job lifecycle events without knowing which handlers
// will process them; the progress notifier subscribes through the same
// generic contract. This keeps execution and user-visible reporting
// decoupled: emission is fire-and-forget and never blocks on a slow
// observer.
//
// The primary components are:
// - JobEvent: a job lifecycle event (started, progress, completed, failed)
// - EventHandler: interface for components that consume events
// - EventEmitter: interface for components that publish events
package events
