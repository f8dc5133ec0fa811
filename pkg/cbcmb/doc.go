// Package cbcmb batches independent AES-CBC encryption jobs into the lanes of an
// 8-way multi-buffer backend and hands them back strictly in submission order.
//
// A Manager owns a fixed-capacity job pool and one Backend for a single key size.
// Jobs are claimed from the pool on Submit, processed by the backend in lock-step
// with up to seven other jobs, and returned by Submit, Flush or NextCompleted once
// they and every job submitted before them have finished.
//
// Managers are not safe for concurrent use. Callers give each Manager a single
// owner (one goroutine per CPU shard in the scheduler).
package cbcmb
