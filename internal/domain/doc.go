// Package domain contains the core business entities and domain logic
// of the job system: jobs, their lifecycle states, execution logs, and
// the retry backoff policy. It is independent of any specific storage
// or delivery mechanism.
package domain
