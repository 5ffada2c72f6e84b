// Package nktask implements the nanokernel's task and thread model
// (spec.md §3, §4.E): a Task is a thread container with a monotonic
// PID; a Thread carries the context needed to resume it, a stack with a
// guard canary, scheduling state, and per-thread statistics.
//
// A bare-metal port resumes a thread by restoring seven integer
// registers and returning (the cooperative path) or by overwriting the
// current interrupt frame and executing IRET (the IRQ-safe path). This
// port has no access to raw stack/register state from Go, so each
// Thread is backed by a real goroutine parked on a channel; Context and
// IRQFrame are filled in once by CreateThread and are not updated when
// the scheduler switches threads.
package nktask

import (
	"sync"

	"github.com/Kelsidavis/System7-sub000/internal/nkmem"
	"github.com/Kelsidavis/System7-sub000/internal/nkplatform"
)

// StackCanary is the guard value written to stackBase[0], matching
// NK_STACK_CANARY / 0xCAFECAFE in the original.
const StackCanary uint32 = 0xCAFECAFE

// MaxPriority bounds thread priority; 255 (MaxPriority-1) is reserved
// for the idle thread.
const MaxPriority = 256

// IdlePriority is reserved for the per-scheduler idle thread.
const IdlePriority = MaxPriority - 1

// State is a thread's scheduling state.
type State int

const (
	Ready State = iota
	Running
	Sleeping
	Blocked
	Terminated
)

func (s State) String() string {
	switch s {
	case Ready:
		return "Ready"
	case Running:
		return "Running"
	case Sleeping:
		return "Sleeping"
	case Blocked:
		return "Blocked"
	case Terminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// Context holds the callee-saved registers plus SP/IP/flags needed to
// resume a thread via the cooperative (RET) path.
type Context struct {
	EBX, ESI, EDI, EBP uint32
	ESP, EIP, EFLAGS   uint32
}

// Stats is the per-thread performance counters from spec.md §4.G.
type Stats struct {
	ContextSwitches   uint64
	CPUTicks          uint64
	LastScheduledTick uint64
}

// Task is a thread container, analogous to a process.
type Task struct {
	PID            uint32
	PageTableRoot  uintptr // stub: no address-space isolation (spec.md Non-goals)
	mu             sync.Mutex
	threads        []*Thread
}

func (t *Task) ThreadCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.threads)
}

func (t *Task) addThread(th *Thread) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.threads = append(t.threads, th)
}

func (t *Task) removeThread(th *Thread) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, c := range t.threads {
		if c == th {
			t.threads = append(t.threads[:i], t.threads[i+1:]...)
			return
		}
	}
}

func (t *Task) Threads() []*Thread {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Thread, len(t.threads))
	copy(out, t.threads)
	return out
}

// Thread is a schedulable execution context within a Task.
type Thread struct {
	TID       uint32
	Task      *Task
	StackBase []byte
	StackSize uint64
	Context   Context
	IRQFrame  nkplatform.InterruptFrame
	Priority  uint8
	WakeTime  uint64
	Stats     Stats

	mu    sync.Mutex
	state State

	// prev/next are the intrusive list links the scheduler uses for its
	// ready queue; the timer's sleep queue keeps its own nodes and does
	// not touch them.
	Prev, Next *Thread

	entry func(arg any)
	arg   any

	resume chan struct{}
	exited chan struct{}
}

func (t *Thread) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Thread) SetState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

// VerifyCanary checks the stack guard value, matching verify_canary.
func (t *Thread) VerifyCanary() bool {
	if len(t.StackBase) < 4 {
		return false
	}
	got := uint32(t.StackBase[0]) | uint32(t.StackBase[1])<<8 |
		uint32(t.StackBase[2])<<16 | uint32(t.StackBase[3])<<24
	return got == StackCanary
}

// registry is the global task list, paralleling task_list_head / next_pid.
type registry struct {
	mu      sync.Mutex
	tasks   []*Task
	nextPID uint32
}

var global = &registry{nextPID: 1}

// CreateTask allocates a task with a fresh monotonic PID and links it
// into the global task list, matching nk_task_create.
func CreateTask() *Task {
	global.mu.Lock()
	pid := global.nextPID
	global.nextPID++
	global.mu.Unlock()

	task := &Task{PID: pid}

	global.mu.Lock()
	global.tasks = append(global.tasks, task)
	global.mu.Unlock()

	return task
}

// DestroyTask marks every thread owned by task Terminated and removes
// the task from the global task list (nk_task_destroy).
func DestroyTask(task *Task) {
	if task == nil {
		return
	}
	for _, th := range task.Threads() {
		th.SetState(Terminated)
	}
	global.mu.Lock()
	defer global.mu.Unlock()
	for i, c := range global.tasks {
		if c == task {
			global.tasks = append(global.tasks[:i], global.tasks[i+1:]...)
			return
		}
	}
}

// AllTasks returns a snapshot of every live task, for dump_stats-style
// diagnostics.
func AllTasks() []*Task {
	global.mu.Lock()
	defer global.mu.Unlock()
	out := make([]*Task, len(global.tasks))
	copy(out, global.tasks)
	return out
}

var nextTID uint32 = 1
var tidMu sync.Mutex

// CreateThread allocates a stack (via heap if non-nil, else a plain Go
// slice), writes the guard canary, and builds the thread's initial
// Context/IRQFrame, matching nk_thread_create's layout precisely enough
// that the identity in spec.md §9 holds: after the IRQ-safe path's
// (simulated) IRET, the stack pointer equals the cooperative path's
// saved SP for the same thread.
//
// entry runs on a dedicated goroutine that blocks until the scheduler
// first resumes this thread; it is the Go-level analogue of the
// assembly trampoline at nk_thread_entry_stub.
func CreateThread(task *Task, heap *nkmem.Heap, entry func(arg any), arg any, stackSize uint64, priority uint8) (*Thread, error) {
	if task == nil || entry == nil || stackSize == 0 {
		return nil, ErrInvalidThreadParams
	}
	if int(priority) >= MaxPriority {
		priority = MaxPriority - 1
	}

	aligned := pageAlign(stackSize)
	var stack []byte
	if heap != nil {
		s, err := heap.Alloc(aligned)
		if err != nil {
			return nil, err
		}
		stack = s
	} else {
		stack = make([]byte, aligned)
	}
	stack[0] = byte(StackCanary & 0xFF)
	stack[1] = byte(StackCanary >> 8 & 0xFF)
	stack[2] = byte(StackCanary >> 16 & 0xFF)
	stack[3] = byte(StackCanary >> 24)

	tidMu.Lock()
	tid := nextTID
	nextTID++
	tidMu.Unlock()

	sp := uint32(uintptr(aligned)) // symbolic SP: top of this thread's stack
	th := &Thread{
		TID:       tid,
		Task:      task,
		StackBase: stack,
		StackSize: aligned,
		Priority:  priority,
		state:     Ready,
		entry:     entry,
		arg:       arg,
		resume:    make(chan struct{}, 1),
		exited:    make(chan struct{}),
	}
	th.Context = Context{ESP: sp, EIP: 0, EFLAGS: 0x202}
	th.IRQFrame = nkplatform.InterruptFrame{
		EIP:    th.Context.EIP,
		CS:     0x10,
		EFLAGS: 0x202,
	}

	task.addThread(th)

	go th.run()

	return th, nil
}

func pageAlign(n uint64) uint64 {
	const page = nkmem.PageSize
	return (n + page - 1) &^ (page - 1)
}

func (t *Thread) run() {
	t.Park() // parked until the scheduler first dispatches this thread
	t.entry(t.arg)
	t.SetState(Terminated)
	close(t.exited)
}

// Resume wakes this thread's goroutine. resume is buffered to depth 1,
// so a scheduler dispatching a thread that hasn't yet parked (the very
// first dispatch, raced against CreateThread's goroutine startup)
// still delivers its wakeup rather than blocking the scheduler.
func (t *Thread) Resume() {
	select {
	case t.resume <- struct{}{}:
	default:
	}
}

// Park blocks the calling goroutine (this thread) until the scheduler
// resumes it again, the Go-level analogue of a context switch away
// from this thread.
func (t *Thread) Park() { <-t.resume }

// Exited reports when this thread's entry function has returned.
func (t *Thread) Exited() <-chan struct{} { return t.exited }

// ErrInvalidThreadParams is returned by CreateThread for a nil task,
// nil entry point, or zero stack size.
var ErrInvalidThreadParams = errInvalidThreadParams{}

type errInvalidThreadParams struct{}

func (errInvalidThreadParams) Error() string { return "nktask: invalid thread parameters" }
