// Package scheduler drives AES-CBC encryption requests through per-CPU
// multi-buffer managers.
//
// Each CPU shard runs on its own goroutine and is the only code that touches its
// managers. A request is split into parts by its walk; every completed part
// carries its chaining IV into the next one until the walk is exhausted. Shards
// keep the requests they hold on a work list and arm a flush timer so that a
// partially filled batch is forced through the backend once the oldest request
// has waited for the flush interval.
package scheduler
