package nksched

import (
	"testing"

	"github.com/Kelsidavis/System7-sub000/internal/nktask"
	"github.com/Kelsidavis/System7-sub000/internal/nktimer"
)

func newSchedThread(t *testing.T, priority uint8) *nktask.Thread {
	t.Helper()
	task := nktask.CreateTask()
	th, err := nktask.CreateThread(task, nil, func(arg any) { select {} }, nil, 4096, priority)
	if err != nil {
		t.Fatalf("CreateThread: %v", err)
	}
	return th
}

// TestDispatchIgnoresPriorityOrdering asserts the coalesced-FIFO
// contract: threads enqueued at different priorities are dispatched in
// enqueue order, not priority order. Priority only ever excludes the
// idle thread from the queue; it never reorders it.
func TestDispatchIgnoresPriorityOrdering(t *testing.T) {
	s := New(nil, nil)
	idle := newSchedThread(t, nktask.IdlePriority)
	s.SetIdle(idle)

	low := newSchedThread(t, 10)
	high := newSchedThread(t, 1)
	mid := newSchedThread(t, 5)

	s.Enqueue(low)
	s.Enqueue(high)
	s.Enqueue(mid)

	next := s.Dispatch(false)
	if next != low {
		t.Fatalf("expected FIFO order (enqueued first) regardless of priority, got TID %d", next.TID)
	}
}

func TestDispatchRoundRobinsFIFO(t *testing.T) {
	s := New(nil, nil)
	idle := newSchedThread(t, nktask.IdlePriority)
	s.SetIdle(idle)

	a := newSchedThread(t, 5)
	b := newSchedThread(t, 5)
	c := newSchedThread(t, 5)
	s.Enqueue(a)
	s.Enqueue(b)
	s.Enqueue(c)

	order := []*nktask.Thread{
		s.Dispatch(true),
		s.Dispatch(true),
		s.Dispatch(true),
		s.Dispatch(true),
	}
	want := []*nktask.Thread{a, b, c, a}
	for i, th := range order {
		if th != want[i] {
			t.Fatalf("dispatch[%d] = TID %d, want TID %d", i, th.TID, want[i].TID)
		}
	}
}

func TestDispatchFallsBackToIdle(t *testing.T) {
	s := New(nil, nil)
	idle := newSchedThread(t, nktask.IdlePriority)
	s.SetIdle(idle)

	for i := 0; i < 3; i++ {
		if next := s.Dispatch(false); next != idle {
			t.Fatalf("expected idle thread with nothing runnable, got TID %d", next.TID)
		}
	}
}

func TestDispatchExactlyOneRunning(t *testing.T) {
	s := New(nil, nil)
	idle := newSchedThread(t, nktask.IdlePriority)
	s.SetIdle(idle)

	a := newSchedThread(t, 5)
	b := newSchedThread(t, 5)
	s.Enqueue(a)
	s.Enqueue(b)

	first := s.Dispatch(true)
	if first.State() != nktask.Running {
		t.Fatalf("dispatched thread state = %v, want Running", first.State())
	}

	second := s.Dispatch(true)
	if second.State() != nktask.Running {
		t.Fatalf("newly dispatched thread state = %v, want Running", second.State())
	}
	if first.State() != nktask.Ready {
		t.Fatalf("previously running thread state = %v, want Ready after requeue", first.State())
	}
}

func TestSleepIntegrationReenqueuesOnExpiry(t *testing.T) {
	var clock nktimer.Clock
	sleepQ := nktimer.NewSleepQueue(&clock, nil, 0)
	s := New(&clock, sleepQ)
	idle := newSchedThread(t, nktask.IdlePriority)
	s.SetIdle(idle)

	sleeper := newSchedThread(t, 5)
	sleepQ.Sleep(sleeper, 10)
	if sleeper.State() != nktask.Sleeping {
		t.Fatalf("state after Sleep = %v, want Sleeping", sleeper.State())
	}

	if next := s.Dispatch(false); next != idle {
		t.Fatalf("expected idle while sleeper is not yet due, got TID %d", next.TID)
	}

	for i := 0; i < 10; i++ {
		clock.Tick()
	}
	woken := s.ServiceExpiredSleepers()
	if len(woken) != 1 || woken[0] != sleeper {
		t.Fatalf("expected sleeper to be woken, got %v", woken)
	}
	if sleeper.State() != nktask.Ready {
		t.Fatalf("state after expiry = %v, want Ready", sleeper.State())
	}

	if next := s.Dispatch(false); next != sleeper {
		t.Fatalf("expected woken sleeper to be dispatched next, got TID %d", next.TID)
	}
}

func TestRequestReschedulePendingFlag(t *testing.T) {
	s := New(nil, nil)
	if s.ConsumeReschedulePending() {
		t.Fatal("expected no pending reschedule initially")
	}
	s.RequestReschedule()
	if !s.ConsumeReschedulePending() {
		t.Fatal("expected pending reschedule after RequestReschedule")
	}
	if s.ConsumeReschedulePending() {
		t.Fatal("expected ConsumeReschedulePending to clear the flag")
	}
}
