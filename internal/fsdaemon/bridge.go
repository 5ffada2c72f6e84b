package fsdaemon

import (
	"context"
	"fmt"

	"github.com/Kelsidavis/System7-sub000/internal/nksched"
	"github.com/Kelsidavis/System7-sub000/internal/nktask"
)

// call sends req on d's request port and blocks for the correlated
// response, bounded by MaxInFlight concurrent in-flight requests per
// daemon. Responses that arrive out of order relative to other
// concurrently-blocked callers (the daemon answers requests strictly
// FIFO, but several kernel threads may be waiting on the same daemon
// at once) are stashed by request id for whichever caller is actually
// waiting on them.
func call(sched *nksched.Scheduler, self *nktask.Thread, d *Daemon, ctx context.Context, req FSRequest) (FSResponse, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := d.inFlight.Acquire(ctx, 1); err != nil {
		return FSResponse{}, err
	}
	defer d.inFlight.Release(1)

	id := d.nextID()
	req.RequestID = id

	if err := d.reqPort.send(sched, self, ctx, req); err != nil {
		return FSResponse{}, fmt.Errorf("%w: request send failed: %v", ErrEIO, err)
	}

	for {
		d.stashMu.Lock()
		if resp, ok := d.stash[id]; ok {
			delete(d.stash, id)
			d.stashMu.Unlock()
			return resp, nil
		}
		d.stashMu.Unlock()

		resp, err := d.respPort.receive(sched, self, ctx)
		if err != nil {
			return FSResponse{}, fmt.Errorf("%w: response receive failed: %v", ErrEIO, err)
		}
		if resp.RequestID == id {
			return resp, nil
		}
		d.stashMu.Lock()
		d.stash[resp.RequestID] = resp
		d.stashMu.Unlock()
	}
}

// ReadFile requests up to len(buf) bytes starting at offset from path,
// copying into buf and returning the number of bytes actually read.
func ReadFile(sched *nksched.Scheduler, self *nktask.Thread, d *Daemon, ctx context.Context, path string, offset int64, buf []byte) (int, error) {
	resp, err := call(sched, self, d, ctx, FSRequest{Type: ReqReadFile, Path: path, Offset: offset, Param1: int64(len(buf))})
	if err != nil {
		return 0, err
	}
	if !resp.OK {
		return 0, ErrEIO
	}
	n := copy(buf, resp.Data)
	return n, nil
}

// WriteFile writes data to path at offset, returning the number of
// bytes the daemon reports as written.
func WriteFile(sched *nksched.Scheduler, self *nktask.Thread, d *Daemon, ctx context.Context, path string, offset int64, data []byte) (int, error) {
	if len(data) > MaxInlineData {
		return 0, ErrResponseTooLarge
	}
	resp, err := call(sched, self, d, ctx, FSRequest{Type: ReqWriteFile, Path: path, Offset: offset, Data: data})
	if err != nil {
		return 0, err
	}
	if !resp.OK {
		return 0, ErrEIO
	}
	return int(resp.Param1), nil
}

// ListDir returns the raw directory-listing bytes the daemon encodes
// (the daemon owns the listing format; the bridge only moves bytes).
func ListDir(sched *nksched.Scheduler, self *nktask.Thread, d *Daemon, ctx context.Context, path string) ([]byte, error) {
	resp, err := call(sched, self, d, ctx, FSRequest{Type: ReqListDir, Path: path})
	if err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, ErrEIO
	}
	return resp.Data, nil
}

// Lookup reports whether path exists on the daemon's filesystem.
func Lookup(sched *nksched.Scheduler, self *nktask.Thread, d *Daemon, ctx context.Context, path string) (bool, error) {
	resp, err := call(sched, self, d, ctx, FSRequest{Type: ReqLookup, Path: path})
	if err != nil {
		return false, err
	}
	return resp.OK, nil
}

// GetStats returns (total bytes, free bytes) for the daemon's volume.
func GetStats(sched *nksched.Scheduler, self *nktask.Thread, d *Daemon, ctx context.Context) (total, free int64, err error) {
	resp, err := call(sched, self, d, ctx, FSRequest{Type: ReqGetStats})
	if err != nil {
		return 0, 0, err
	}
	if !resp.OK {
		return 0, 0, ErrEIO
	}
	return resp.Param1, resp.Param2, nil
}

// GetFileInfo returns (size, isDir) for path.
func GetFileInfo(sched *nksched.Scheduler, self *nktask.Thread, d *Daemon, ctx context.Context, path string) (size int64, isDir bool, err error) {
	resp, err := call(sched, self, d, ctx, FSRequest{Type: ReqGetFileInfo, Path: path})
	if err != nil {
		return 0, false, err
	}
	if !resp.OK {
		return 0, false, ErrEIO
	}
	return resp.Param1, resp.Param2 != 0, nil
}
