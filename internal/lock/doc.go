// Package lock provides per-conversation mutual exclusion for the
// synchronous request path. Calls sharing a conversation key execute
// strictly in arrival order, and a process-wide cap bounds how many
// distinct keys may run concurrently; new keys beyond the cap wait for
// a freed slot rather than being rejected.
//
// The manager is purely in-process and its state is lost on restart by
// design: the synchronous path is safely re-triggerable, so crash
// recovery is not needed here. Use one instance per process.
package lock
