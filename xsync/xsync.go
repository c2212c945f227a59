// Package xsync implements the synchronization primitives used by the
// execution completion protocol.
package xsync

import "sync"

// Latch implements a "latch" synchronization mechanism.
//
// A Latch is a signal that can be waited for until it is triggered.
// Once triggered it never changes state, it's forever triggered.
type Latch struct {
	muTrigger sync.Mutex
	wait      chan struct{}
}

// NewLatch returns an un-triggered latch.
func NewLatch() *Latch {
	return &Latch{
		wait: make(chan struct{}),
	}
}

// Trigger latch.
func (l *Latch) Trigger() {
	l.muTrigger.Lock()
	defer l.muTrigger.Unlock()

	if l.Test() {
		// Already triggered.
		return
	}
	close(l.wait)
}

// Wait waits for the latch to be triggered.
func (l *Latch) Wait() {
	<-l.wait
}

// Test checks whether the latch has been triggered.
func (l *Latch) Test() bool {
	select {
	case <-l.wait:
		return true
	default:
		return false
	}
}

// WaitChan returns the channel that one can use on a `select` to check when
// the latch triggers.
// The returned channel is closed when the latch is triggered.
func (l *Latch) WaitChan() <-chan struct{} {
	return l.wait
}

// TriggerWith runs fn while holding the trigger lock and then triggers the
// latch, unless it was already triggered, in which case fn is not run and
// TriggerWith returns false.
//
// It is the building block for "notify exactly once with a value" semantics:
// the first notifier stores its value inside fn, later notifiers are dropped.
func (l *Latch) TriggerWith(fn func()) bool {
	l.muTrigger.Lock()
	defer l.muTrigger.Unlock()

	if l.Test() {
		return false
	}
	fn()
	close(l.wait)
	return true
}
