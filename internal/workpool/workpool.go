// Package workpool runs tasks on a fixed number of goroutines fed by a
// bounded queue. Each job role (submit, poll, log, summary) gets its own pool
// so that a slow role cannot starve another.
package workpool

import "errors"

// ErrClosed is returned when a task is submitted to a closed pool.
var ErrClosed = errors.New("pool is closed")

// Task is a unit of work. A panicking task is recovered and counted; it
// does not take its worker down.
type Task func()

// Stats holds pool statistics.
type Stats struct {
	Name       string `json:"name"`
	Workers    int    `json:"workers"`
	QueueDepth int    `json:"queueDepth"` // current queue size
	Active     int64  `json:"active"`     // tasks currently running
	Queued     int64  `json:"queued"`     // total tasks accepted
	Completed  int64  `json:"completed"`  // tasks finished, including panicked ones
	Panicked   int64  `json:"panicked"`   // tasks that panicked
}
