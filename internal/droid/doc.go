// Package droid defines the client interface for streamed AI
// executions and the default job handler that consumes them. The
// executing model is opaque to this package; it only sees typed output
// chunks and turns them into progress, a final message, and a result.
package droid
