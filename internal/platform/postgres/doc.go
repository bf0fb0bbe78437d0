// Package postgres provides PostgreSQL implementations of the store
// interfaces. Claim atomicity relies on row-level locking with
// FOR UPDATE SKIP LOCKED, so multiple worker processes can poll the
// same database without ever double-claiming a job.
package postgres
