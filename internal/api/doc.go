// Package api contains the HTTP handlers for the job queue: enqueue
// and inspection endpoints for producers, plus worker and queue
// observability. Handlers translate between HTTP and the service
// layer; they hold no business logic.
package api
