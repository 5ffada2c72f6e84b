// Package nktimer implements the nanokernel's tick clock and sleep
// queue (spec.md §4.D), grounded on
// original_source/src/Nanokernel/nk_timer.c: a monotonic millisecond
// tick counter advanced by the PIT interrupt, and a sorted queue of
// sleeping threads woken in wake-time order as ticks elapse.
package nktimer

import (
	"sync"
	"sync/atomic"

	"github.com/Kelsidavis/System7-sub000/internal/nkplatform"
	"github.com/Kelsidavis/System7-sub000/internal/nktask"
)

// Clock is the monotonic millisecond tick counter. Reads use a relaxed
// atomic load per spec.md §5 ("tick counter observations use relaxed
// atomics"); Go's sync/atomic has no separate relaxed/acquire modes, so
// a plain atomic load is the closest available primitive.
type Clock struct {
	ticks uint64
}

// Tick advances the clock by one millisecond, called from the PIT
// interrupt handler (IRQ0).
func (c *Clock) Tick() uint64 { return atomic.AddUint64(&c.ticks, 1) }

// Millis returns the current tick count.
func (c *Clock) Millis() uint64 { return atomic.LoadUint64(&c.ticks) }

// waiter is one entry in the sorted sleep queue.
type waiter struct {
	thread   *nktask.Thread
	wakeAt   uint64
	prev, next *waiter
}

// SleepQueue is a doubly-linked list of sleeping threads kept sorted by
// absolute wake time, matching nk_timer.c's sleep_queue_insert /
// sleep_queue_check.
type SleepQueue struct {
	mu    sync.Mutex
	head  *waiter
	clock *Clock
	pit   *nkplatform.PIT
	hz    uint32
}

// NewSleepQueue builds a sleep queue driven by clock and (optionally)
// programs pit to tick at hz, matching nk_timer_init.
func NewSleepQueue(clock *Clock, pit *nkplatform.PIT, hz uint32) *SleepQueue {
	if hz == 0 {
		hz = nkplatform.DefaultHz
	}
	sq := &SleepQueue{clock: clock, pit: pit, hz: hz}
	if pit != nil {
		pit.Program(hz)
	}
	return sq
}

// Sleep puts thread to sleep for millis milliseconds, inserting it into
// the sleep queue in absolute-wake-time order (nk_sleep). The caller is
// responsible for removing the thread from the scheduler's ready queue
// and parking its goroutine; Sleep only manages the wake-time ordering.
func (sq *SleepQueue) Sleep(thread *nktask.Thread, millis uint64) {
	wakeAt := sq.clock.Millis() + millis
	thread.WakeTime = wakeAt
	thread.SetState(nktask.Sleeping)

	w := &waiter{thread: thread, wakeAt: wakeAt}

	sq.mu.Lock()
	defer sq.mu.Unlock()

	if sq.head == nil || wakeAt < sq.head.wakeAt {
		w.next = sq.head
		if sq.head != nil {
			sq.head.prev = w
		}
		sq.head = w
		return
	}
	cur := sq.head
	for cur.next != nil && cur.next.wakeAt <= wakeAt {
		cur = cur.next
	}
	w.next = cur.next
	w.prev = cur
	if cur.next != nil {
		cur.next.prev = w
	}
	cur.next = w
}

// Expire pops every waiter whose wake time has elapsed as of the
// clock's current tick, in ascending wake-time order, and returns the
// threads to resume. Callers (typically the scheduler's deferred
// reschedule path) are responsible for re-enqueueing them as Ready.
func (sq *SleepQueue) Expire() []*nktask.Thread {
	now := sq.clock.Millis()

	sq.mu.Lock()
	defer sq.mu.Unlock()

	var woken []*nktask.Thread
	for sq.head != nil && sq.head.wakeAt <= now {
		w := sq.head
		sq.head = w.next
		if sq.head != nil {
			sq.head.prev = nil
		}
		w.thread.SetState(nktask.Ready)
		woken = append(woken, w.thread)
	}
	return woken
}

// Len reports how many threads are currently queued, for diagnostics.
func (sq *SleepQueue) Len() int {
	sq.mu.Lock()
	defer sq.mu.Unlock()
	n := 0
	for w := sq.head; w != nil; w = w.next {
		n++
	}
	return n
}

// NextWake returns the earliest pending wake time and whether the
// queue is non-empty.
func (sq *SleepQueue) NextWake() (uint64, bool) {
	sq.mu.Lock()
	defer sq.mu.Unlock()
	if sq.head == nil {
		return 0, false
	}
	return sq.head.wakeAt, true
}
