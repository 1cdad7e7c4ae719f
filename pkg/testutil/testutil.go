// Package testutil holds small helpers shared by BlueStar's tests.
package testutil

import (
	"sync"
	"time"
)

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }

// FixedClock returns a time source that always reports at.
func FixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

// SteppingClock returns a time source that starts at start and advances by
// step on every call. It is safe for concurrent use.
func SteppingClock(start time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	next := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now := next
		next = next.Add(step)
		return now
	}
}
