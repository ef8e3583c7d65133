// Package testutil provides fake remote services and polling helpers for
// tests that run jobs end to end.
package testutil

import (
	"bytes"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

// WaitOptions configures how long and how often a condition is polled.
type WaitOptions struct {
	Timeout  time.Duration
	Interval time.Duration
}

// WaitOption is a functional option for the wait helpers.
type WaitOption func(*WaitOptions)

// WithTimeout sets the maximum wait time (default: 5s).
func WithTimeout(d time.Duration) WaitOption {
	return func(o *WaitOptions) {
		o.Timeout = d
	}
}

// WithInterval sets the polling interval (default: 5ms).
func WithInterval(d time.Duration) WaitOption {
	return func(o *WaitOptions) {
		o.Interval = d
	}
}

func waitOptions(opts []WaitOption) WaitOptions {
	o := WaitOptions{
		Timeout:  5 * time.Second,
		Interval: 5 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WaitFor polls condition until it holds or the timeout passes and reports
// whether it held.
func WaitFor(tb testing.TB, condition func() bool, opts ...WaitOption) bool {
	tb.Helper()

	o := waitOptions(opts)
	deadline := time.Now().Add(o.Timeout)
	for {
		if condition() {
			return true
		}
		if !time.Now().Before(deadline) {
			return false
		}
		time.Sleep(o.Interval)
	}
}

// MustWaitFor fails the test if condition does not hold before the timeout.
func MustWaitFor(tb testing.TB, condition func() bool, opts ...WaitOption) {
	tb.Helper()
	if !WaitFor(tb, condition, opts...) {
		tb.Fatal("timed out waiting for condition")
	}
}

// MustWaitForCount fails the test if counter does not reach target.
func MustWaitForCount(tb testing.TB, counter *atomic.Int64, target int64, opts ...WaitOption) {
	tb.Helper()
	ok := WaitFor(tb, func() bool {
		return counter.Load() >= target
	}, opts...)
	if !ok {
		tb.Fatalf("timed out waiting for counter to reach %d (current: %d)", target, counter.Load())
	}
}

// MustWaitForFile fails the test unless the file at path comes to hold
// want, ignoring surrounding whitespace. Used for side-channel files such
// as the progress file that are rewritten while a run is in flight.
func MustWaitForFile(tb testing.TB, path, want string, opts ...WaitOption) {
	tb.Helper()
	var last []byte
	ok := WaitFor(tb, func() bool {
		data, err := os.ReadFile(path)
		if err != nil {
			return false
		}
		last = bytes.TrimSpace(data)
		return string(last) == want
	}, opts...)
	if !ok {
		tb.Fatalf("timed out waiting for %s to hold %q (last: %q)", path, want, last)
	}
}

// MustWaitForPolls fails the test unless the fake service has answered at
// least n status polls for jobID.
func (w *WPS) MustWaitForPolls(tb testing.TB, jobID string, n int, opts ...WaitOption) {
	tb.Helper()
	ok := WaitFor(tb, func() bool {
		return w.Polls(jobID) >= n
	}, opts...)
	if !ok {
		tb.Fatalf("timed out waiting for %d polls of %s (current: %d)", n, jobID, w.Polls(jobID))
	}
}
