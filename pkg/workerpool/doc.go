// Package workerpool provides a bounded pool of worker goroutines.
//
// A Pool is owned by the caller and shared across many submissions.
// Tasks are queued in a buffered channel and executed by a fixed number
// of workers; Submit blocks only when the queue is full.
package workerpool
