// Package executor applies a sync plan to the remote store: concurrent
// uploads through a bounded pool and chunked batch deletes.
package executor
