package at86

import "sync/atomic"

// Latch records that the chip's IRQ line rose since the foreground last
// consumed it.
//
// Fire is the only writer of the pending flag and runs in the edge handler
// context; Clear is called only from the foreground. A fired latch also
// disarms itself, so edges that arrive before the foreground re-arms are
// dropped instead of re-triggering.
type Latch struct {
	pending atomic.Bool
	armed   atomic.Bool
}

// Fire handles a rising edge. It has no effect while the latch is disarmed.
func (l *Latch) Fire() {
	if l.armed.CompareAndSwap(true, false) {
		l.pending.Store(true)
	}
}

// Arm enables edge delivery. Edges seen while disarmed are not replayed.
func (l *Latch) Arm() {
	l.armed.Store(true)
}

// Disarm stops edge delivery.
func (l *Latch) Disarm() {
	l.armed.Store(false)
}

// Clear consumes a pending edge.
func (l *Latch) Clear() {
	l.pending.Store(false)
}

// Pending reports whether an edge is waiting. It does not consume it.
func (l *Latch) Pending() bool {
	return l.pending.Load()
}

// Armed reports whether the next edge will be latched.
func (l *Latch) Armed() bool {
	return l.armed.Load()
}
