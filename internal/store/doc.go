// Package store defines interfaces for job persistence operations.
// These interfaces abstract the underlying data storage mechanism from
// the worker and service layers, allowing the queue semantics to remain
// independent of specific database technologies. The store is the single
// source of truth for job state and may be shared by multiple worker
// processes; claim atomicity is therefore enforced at this layer.
package store
