package fsdaemon

import (
	"context"
	"errors"
	"sync"

	"github.com/Kelsidavis/System7-sub000/internal/nksched"
	"github.com/Kelsidavis/System7-sub000/internal/nktask"
)

// ErrPortFull and ErrPortEmpty mirror nkipc's ErrQueueFull/ErrQueueEmpty
// for the typed request/response ports below.
var (
	ErrPortFull  = errors.New("fsdaemon: port full")
	ErrPortEmpty = errors.New("fsdaemon: port empty")
)

// port is a fixed-capacity FIFO queue of typed daemon messages, the
// same blocking-via-cooperative-yield discipline
// original_source/src/Nanokernel/ipc.c uses for its byte-message
// queues, generalized here to carry structured FSRequest/FSResponse
// values instead of raw bytes — the daemon bridge's inline data can run
// up to 4 KiB, well past nkipc's generic MAX_MESSAGE_SIZE, so the
// bridge uses its own typed ports rather than serializing through the
// general-purpose byte queue.
type port[T any] struct {
	mu    sync.Mutex
	buf   []T
	head  int
	count int
}

func newPort[T any](capacity int) *port[T] {
	return &port[T]{buf: make([]T, capacity)}
}

func (p *port[T]) trySend(v T) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.count == len(p.buf) {
		return ErrPortFull
	}
	tail := (p.head + p.count) % len(p.buf)
	p.buf[tail] = v
	p.count++
	return nil
}

func (p *port[T]) tryReceive() (T, error) {
	var zero T
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.count == 0 {
		return zero, ErrPortEmpty
	}
	v := p.buf[p.head]
	p.buf[p.head] = zero
	p.head = (p.head + 1) % len(p.buf)
	p.count--
	return v, nil
}

func (p *port[T]) send(sched *nksched.Scheduler, self *nktask.Thread, ctx context.Context, v T) error {
	for {
		if err := p.trySend(v); err == nil {
			return nil
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

func (p *port[T]) receive(sched *nksched.Scheduler, self *nktask.Thread, ctx context.Context) (T, error) {
	for {
		v, err := p.tryReceive()
		if err == nil {
			return v, nil
		}
		if ctx != nil {
			select {
			case <-ctx.Done():
				var zero T
				return zero, ctx.Err()
			default:
			}
		}
		sched.Yield(self)
	}
}
