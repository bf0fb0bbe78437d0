// Package notify turns job lifecycle events into throttled user-facing
// chat messages. The notifier decides what is worth saying and when;
// sinks decide where the text goes.
package notify
