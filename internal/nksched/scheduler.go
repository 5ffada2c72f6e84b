// Package nksched implements the nanokernel's preemptive scheduler
// (spec.md §4.F), grounded on
// original_source/src/Nanokernel/nk_sched.c and nk_resched.c. Ready
// threads share one FIFO run queue regardless of priority — the
// original's "Simple FIFO for now" comment is load-bearing, not a
// placeholder this port upgrades away — and priority is honored only
// insofar as the idle thread is excluded from that queue and used as
// the dispatch fallback when it's empty.
//
// The original dispatches a thread one of two ways: a cooperative
// switch (the outgoing thread calls into the scheduler, which saves
// seven registers and RETs into the next thread) or an IRQ-safe switch
// (the timer ISR's return path overwrites the current interrupt frame
// and IRETs into the next thread instead). Neither path calls the
// scheduler directly from inside the timer ISR; the ISR only sets a
// pending-reschedule flag that the idle loop (or a software interrupt)
// services later, per the deferred-reschedule pattern in spec.md §5.
//
// This port has no raw register/stack access, so both dispatch paths
// converge on the same bookkeeping (Dispatch) and the same goroutine
// park/resume primitives from nktask; DispatchFromInterrupt additively
// marks the interrupt-context flag so InInterrupt callers observe the
// same contract the original gives ISR-reentrant code.
package nksched

import (
	"sync"
	"sync/atomic"

	"github.com/Kelsidavis/System7-sub000/internal/nkplatform"
	"github.com/Kelsidavis/System7-sub000/internal/nktask"
	"github.com/Kelsidavis/System7-sub000/internal/nktimer"
)

type queue struct{ head, tail *nktask.Thread }

func (q *queue) pushBack(th *nktask.Thread) {
	th.Prev, th.Next = nil, nil
	if q.tail == nil {
		q.head, q.tail = th, th
		return
	}
	th.Prev = q.tail
	q.tail.Next = th
	q.tail = th
}

func (q *queue) popFront() *nktask.Thread {
	th := q.head
	if th == nil {
		return nil
	}
	q.head = th.Next
	if q.head != nil {
		q.head.Prev = nil
	} else {
		q.tail = nil
	}
	th.Prev, th.Next = nil, nil
	return th
}

func (q *queue) empty() bool { return q.head == nil }

// Scheduler is the nanokernel's single run-queue scheduler: one FIFO
// ready queue, matching nk_sched.c's nk_sched_add_thread/
// select_next_thread, which append onto a single ready_queue_head/
// ready_queue_tail list ("Simple FIFO for now - insert at tail") with
// no per-priority levels. Priority is honored only insofar as the idle
// thread is never enqueued and is the fallback when the queue is empty.
type Scheduler struct {
	mu      sync.Mutex
	ready   queue
	current *nktask.Thread
	idle    *nktask.Thread

	clock  *nktimer.Clock
	sleepQ *nktimer.SleepQueue

	reschedPending atomic.Bool
	inInterrupt    atomic.Bool
	currentFrame   *nkplatform.InterruptFrame

	switches uint64
}

// New builds a scheduler driven by clock/sleepQ for sleep-expiry
// servicing; both may be nil for scheduler-only unit tests.
func New(clock *nktimer.Clock, sleepQ *nktimer.SleepQueue) *Scheduler {
	return &Scheduler{clock: clock, sleepQ: sleepQ}
}

// SetIdle registers the scheduler's idle thread: the fallback dispatch
// target when the ready queue is empty. The idle thread is never
// itself enqueued.
func (s *Scheduler) SetIdle(th *nktask.Thread) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idle = th
}

// Current returns the currently dispatched thread, or nil before Start.
func (s *Scheduler) Current() *nktask.Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Switches reports the total number of dispatches performed, for
// nkstats.
func (s *Scheduler) Switches() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.switches
}

// Enqueue marks th Ready and appends it to the single FIFO run queue,
// matching nk_sched_add_thread.
func (s *Scheduler) Enqueue(th *nktask.Thread) {
	s.mu.Lock()
	defer s.mu.Unlock()
	th.SetState(nktask.Ready)
	s.ready.pushBack(th)
}

// dequeueLocked pops the head of the ready queue, falling back to the
// idle thread when it's empty. Callers must hold s.mu.
func (s *Scheduler) dequeueLocked() *nktask.Thread {
	if !s.ready.empty() {
		return s.ready.popFront()
	}
	return s.idle
}

// Dispatch picks the next thread to run. When requeuePrev is true and
// the outgoing thread is still runnable (not sleeping, blocked, or
// terminated), it is marked Ready and appended back to its run queue
// before the pick — this is the voluntary-yield path. Sleep/block
// callers pass false because the outgoing thread has already been
// moved to the sleep queue or a wait list by the time they call this.
func (s *Scheduler) Dispatch(requeuePrev bool) *nktask.Thread {
	s.mu.Lock()
	prev := s.current

	var now uint64
	if s.clock != nil {
		now = s.clock.Millis()
	}

	// Tick attribution happens at switch boundaries, never inside the
	// timer IRQ, to avoid double-counting (spec.md §4.G).
	if prev != nil && s.clock != nil {
		prev.Stats.CPUTicks += now - prev.Stats.LastScheduledTick
	}

	if requeuePrev && prev != nil && prev != s.idle && prev.State() == nktask.Running {
		prev.SetState(nktask.Ready)
		s.ready.pushBack(prev)
	}
	next := s.dequeueLocked()
	if next == nil {
		next = s.idle
	}
	s.current = next
	if next != nil {
		next.SetState(nktask.Running)
		next.Stats.ContextSwitches++
		next.Stats.LastScheduledTick = now
	}
	s.switches++
	s.mu.Unlock()
	return next
}

// Start performs the very first dispatch: there is no outgoing thread
// to save (the caller is the boot sequence, not a scheduled thread), so
// Start only marks first Running and resumes its goroutine.
func (s *Scheduler) Start(first *nktask.Thread) {
	s.mu.Lock()
	s.current = first
	first.SetState(nktask.Running)
	s.switches++
	s.mu.Unlock()
	first.Resume()
}

// Yield is the cooperative voluntary-switch path (nk_thread_yield):
// self gives up the CPU, is requeued as Ready, and the scheduler
// dispatches whatever is next. If self is immediately redispatched
// (nothing else on the ready queue), Yield returns without
// actually switching.
func (s *Scheduler) Yield(self *nktask.Thread) {
	next := s.Dispatch(true)
	if next == self {
		return
	}
	next.Resume()
	self.Park()
}

// SleepSelf records self's wake time in the sleep queue (which also
// marks it Sleeping) and switches away without requeueing it as Ready.
func (s *Scheduler) SleepSelf(self *nktask.Thread, millis uint64) {
	if s.sleepQ != nil {
		s.sleepQ.Sleep(self, millis)
	} else {
		self.SetState(nktask.Sleeping)
	}
	next := s.Dispatch(false)
	if next == self {
		return
	}
	next.Resume()
	self.Park()
}

// BlockSelf marks self Blocked (e.g. waiting on an empty IPC queue) and
// switches away without requeueing it.
func (s *Scheduler) BlockSelf(self *nktask.Thread) {
	self.SetState(nktask.Blocked)
	next := s.Dispatch(false)
	if next == self {
		return
	}
	next.Resume()
	self.Park()
}

// Unblock makes th runnable again (from Sleeping or Blocked) by
// re-enqueueing it, matching nk_sched_wake.
func (s *Scheduler) Unblock(th *nktask.Thread) { s.Enqueue(th) }

// ServiceExpiredSleepers walks the sleep queue for threads whose wake
// time has elapsed and re-enqueues each as Ready, returning them for
// diagnostics. This must only be called from thread (non-interrupt)
// context — the deferred-reschedule pattern in spec.md §5 exists
// precisely so the timer ISR never calls this directly.
func (s *Scheduler) ServiceExpiredSleepers() []*nktask.Thread {
	if s.sleepQ == nil {
		return nil
	}
	woken := s.sleepQ.Expire()
	for _, th := range woken {
		s.Enqueue(th)
	}
	return woken
}

// RequestReschedule is called from the timer ISR (IRQ context, spec.md
// §5): it never dispatches directly, only records that a reschedule is
// due next time thread context services it.
func (s *Scheduler) RequestReschedule() { s.reschedPending.Store(true) }

// ConsumeReschedulePending reports and clears a pending reschedule
// request, for the idle loop or the INT 0x81 software-interrupt
// handler to poll.
func (s *Scheduler) ConsumeReschedulePending() bool {
	return s.reschedPending.CompareAndSwap(true, false)
}

// InInterrupt reports whether the scheduler is currently executing the
// IRQ-safe dispatch path, mirroring the original's in_interrupt flag
// and current_frame pointer used to detect nested/reentrant interrupt
// state.
func (s *Scheduler) InInterrupt() bool { return s.inInterrupt.Load() }

// CurrentFrame returns the interrupt frame active during
// DispatchFromInterrupt, or nil outside of it.
func (s *Scheduler) CurrentFrame() *nkplatform.InterruptFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentFrame
}

// DispatchFromInterrupt is the IRQ-safe switch path: the softirq
// (VectorSoftwareResched) or idle-loop poller calls this after
// ServiceExpiredSleepers, bracketing it with the in-interrupt flag so
// any nested diagnostics can tell the difference from a cooperative
// Yield.
func (s *Scheduler) DispatchFromInterrupt(frame *nkplatform.InterruptFrame) *nktask.Thread {
	s.inInterrupt.Store(true)
	s.mu.Lock()
	s.currentFrame = frame
	s.mu.Unlock()

	next := s.Dispatch(true)

	s.mu.Lock()
	s.currentFrame = nil
	s.mu.Unlock()
	s.inInterrupt.Store(false)
	return next
}
