package fsdaemon

import (
	"sync"
	"time"
)

// FakeDaemon simulates a userspace filesystem daemon's event loop for
// tests: a goroutine that polls a Daemon's request port directly via
// trySend/tryReceive, independent of the kernel scheduler, and answers
// each request with a caller-supplied handler. This mirrors spec.md
// §4.L's daemon contract — the daemon is an ordinary userspace process
// driving its own loop, not a kernel thread — without dragging nksched
// into daemon-side tests.
type FakeDaemon struct {
	d       *Daemon
	handler func(FSRequest) FSResponse

	stopMu sync.Mutex
	stop   chan struct{}
	done   chan struct{}
}

// NewFakeDaemon starts a polling loop over d that answers every
// request with handler's response, preserving the request's id.
func NewFakeDaemon(d *Daemon, handler func(FSRequest) FSResponse) *FakeDaemon {
	fd := &FakeDaemon{
		d:       d,
		handler: handler,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go fd.run()
	return fd
}

func (fd *FakeDaemon) run() {
	defer close(fd.done)
	for {
		select {
		case <-fd.stop:
			return
		default:
		}
		req, err := fd.d.reqPort.tryReceive()
		if err != nil {
			time.Sleep(time.Millisecond)
			continue
		}
		resp := fd.handler(req)
		resp.RequestID = req.RequestID
		for fd.d.respPort.trySend(resp) != nil {
			time.Sleep(time.Millisecond)
		}
	}
}

// Stop ends the daemon's event loop and waits for it to exit.
func (fd *FakeDaemon) Stop() {
	close(fd.stop)
	<-fd.done
}
