// Package nkipc implements the nanokernel's fixed-slot named message
// queues (spec.md §4.H), grounded on
// original_source/src/Nanokernel/ipc.c: a fixed table of named queues,
// FIFO ordering per port, and blocking send/receive that busy-wait via
// cooperative yield rather than a spinlock, since the original treats
// yield-based spinning as sufficient under kernel-thread-only
// cooperative multitasking.
package nkipc

import (
	"context"
	"errors"
	"sync"

	"github.com/Kelsidavis/System7-sub000/internal/nksched"
	"github.com/Kelsidavis/System7-sub000/internal/nktask"
)

// MaxMessageSize bounds a single message, matching ipc.c's
// MAX_MESSAGE_SIZE.
const MaxMessageSize = 256

// MaxQueues bounds the fixed queue table, matching ipc.c's
// IPC_MAX_QUEUES.
const MaxQueues = 64

var (
	// ErrMessageTooLarge is returned by Send/TrySend when len(msg) >
	// MaxMessageSize.
	ErrMessageTooLarge = errors.New("nkipc: message exceeds MaxMessageSize")
	// ErrQueueFull is returned by TrySend when the queue has no free slot.
	ErrQueueFull = errors.New("nkipc: queue full")
	// ErrQueueEmpty is returned by TryReceive when the queue has no pending message.
	ErrQueueEmpty = errors.New("nkipc: queue empty")
	// ErrTableFull is returned by CreateQueue once MaxQueues exist.
	ErrTableFull = errors.New("nkipc: queue table full")
	// ErrDuplicateName is returned by CreateQueue for an already-registered name.
	ErrDuplicateName = errors.New("nkipc: duplicate queue name")
)

// Queue is one named, fixed-capacity FIFO message port.
type Queue struct {
	name     string
	mu       sync.Mutex
	slots    [][]byte
	head     int
	tail     int
	count    int
}

// newQueue allocates a queue with the given slot capacity, matching
// create_queue's slot memset.
func newQueue(name string, capacity int) *Queue {
	return &Queue{name: name, slots: make([][]byte, capacity)}
}

func (q *Queue) Name() string { return q.name }

// TrySend copies msg into the tail slot without blocking.
func (q *Queue) TrySend(msg []byte) error {
	if len(msg) > MaxMessageSize {
		return ErrMessageTooLarge
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == len(q.slots) {
		return ErrQueueFull
	}
	buf := make([]byte, len(msg))
	copy(buf, msg)
	q.slots[q.tail] = buf
	q.tail = (q.tail + 1) % len(q.slots)
	q.count++
	return nil
}

// TryReceive pops the head message without blocking.
func (q *Queue) TryReceive() ([]byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == 0 {
		return nil, ErrQueueEmpty
	}
	msg := q.slots[q.head]
	q.slots[q.head] = nil
	q.head = (q.head + 1) % len(q.slots)
	q.count--
	return msg, nil
}

// Send blocks (cooperatively yielding self via sched) until a slot is
// free, then enqueues msg. If ctx is non-nil and is cancelled or times
// out before a slot frees up, Send returns ctx.Err() — the optional
// send-timeout behavior from spec.md §9's open question, layered on
// without changing the no-context (ctx == nil) behavior, which blocks
// unconditionally exactly as the original does.
func (q *Queue) Send(sched *nksched.Scheduler, self *nktask.Thread, ctx context.Context, msg []byte) error {
	if len(msg) > MaxMessageSize {
		return ErrMessageTooLarge
	}
	for {
		err := q.TrySend(msg)
		if err == nil {
			return nil
		}
		if err != ErrQueueFull {
			return err
		}
		if ctx != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}
		sched.Yield(self)
	}
}

// Receive blocks (cooperatively yielding self via sched) until a
// message is available, then returns it. See Send for ctx semantics.
func (q *Queue) Receive(sched *nksched.Scheduler, self *nktask.Thread, ctx context.Context) ([]byte, error) {
	for {
		msg, err := q.TryReceive()
		if err == nil {
			return msg, nil
		}
		if err != ErrQueueEmpty {
			return nil, err
		}
		if ctx != nil {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
		}
		sched.Yield(self)
	}
}

// Registry is the fixed table of named queues (IPC_MAX_QUEUES in the
// original). The package holds no global Registry: cmd/nanokerneld
// builds one with NewRegistry, and tests construct their own to stay
// isolated.
type Registry struct {
	mu     sync.Mutex
	byName map[string]*Queue
}

// NewRegistry builds an empty queue table.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Queue)}
}

// CreateQueue allocates one slot-capacity queue named name in the
// table, matching create_queue.
func (r *Registry) CreateQueue(name string, capacity int) (*Queue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[name]; exists {
		return nil, ErrDuplicateName
	}
	if len(r.byName) >= MaxQueues {
		return nil, ErrTableFull
	}
	q := newQueue(name, capacity)
	r.byName[name] = q
	return q, nil
}

// Lookup returns the queue registered under name, if any.
func (r *Registry) Lookup(name string) (*Queue, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.byName[name]
	return q, ok
}
