// Package fsdaemon implements the nanokernel's filesystem-daemon
// bridge (spec.md §4.L), grounded on
// original_source/src/Nanokernel/fs_daemon.c: a registry of userspace
// filesystem daemons, each reachable over a correlated request/response
// port pair, and a set of VFS-surface operations (ReadFile, WriteFile,
// ListDir, Lookup, GetStats, GetFileInfo) that send a request and
// block-receive the matching response.
package fsdaemon

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// MaxInlineData bounds FSResponse's inline data buffer for small reads,
// matching the ≤4 KiB contract in spec.md §4.L.
const MaxInlineData = 4096

// MaxDaemons bounds the daemon registry.
const MaxDaemons = 16

// MaxInFlight bounds the number of requests any single daemon will
// service concurrently — an additive guard (spec.md's reference has no
// equivalent) since nothing else stops a VFS caller from issuing more
// concurrent requests than a single-threaded userspace daemon can
// actually drain.
const MaxInFlight = 8

// RequestType selects the daemon-side operation, mirroring fs_daemon.c's
// FS_MSG_* enum.
type RequestType int

const (
	ReqReadFile RequestType = iota
	ReqWriteFile
	ReqListDir
	ReqLookup
	ReqGetStats
	ReqGetFileInfo
	ReqShutdown
)

// FSRequest is sent on a daemon's request port.
type FSRequest struct {
	RequestID uint64
	Type      RequestType
	Path      string
	Data      []byte
	Offset    int64
	Param1    int64
	Param2    int64
}

// FSResponse is the correlated reply received on a daemon's response
// port. OK carries the generic success/failure contract; Data holds
// inline results capped at MaxInlineData; Param1/Param2 are the two
// generic fields for structured returns (e.g. size + is-directory flag
// for GetFileInfo).
type FSResponse struct {
	RequestID uint64
	OK        bool
	Data      []byte
	Param1    int64
	Param2    int64
}

var (
	ErrDaemonNotFound    = fmt.Errorf("%w: daemon not registered", ErrEIO)
	ErrDuplicateDaemon   = errors.New("fsdaemon: daemon name already registered")
	ErrTableFull         = errors.New("fsdaemon: daemon table full")
	ErrResponseTooLarge  = errors.New("fsdaemon: response exceeds MaxInlineData")
	// ErrEIO is the error class for a daemon request-send failure or a
	// missing daemon (ErrDaemonNotFound wraps it); test with errors.Is.
	ErrEIO = errors.New("fsdaemon: EIO")
)

// Daemon is one registered userspace filesystem daemon.
type Daemon struct {
	Name    string
	PID     uint32
	Session uuid.UUID

	reqPort  *port[FSRequest]
	respPort *port[FSResponse]
	inFlight *semaphore.Weighted

	nextRequestID uint64

	stashMu sync.Mutex
	stash   map[uint64]FSResponse
}

// Registry is the fixed table of registered daemons.
type Registry struct {
	mu      sync.Mutex
	byName  map[string]*Daemon
}

// NewRegistry builds an empty daemon registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Daemon)}
}

// Register adds a daemon descriptor with a fresh session token — the
// additive uuid.UUID is how the bridge tells a daemon that crashed and
// restarted under the same name from the one it's replacing, since the
// request-id correlation space alone resets to zero on either side and
// can't distinguish "old daemon, request 0" from "new daemon, request
// 0". portCapacity sizes both the request and response ports.
func (r *Registry) Register(name string, pid uint32, portCapacity int) (*Daemon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[name]; exists {
		return nil, ErrDuplicateDaemon
	}
	if len(r.byName) >= MaxDaemons {
		return nil, ErrTableFull
	}
	d := &Daemon{
		Name:     name,
		PID:      pid,
		Session:  uuid.New(),
		reqPort:  newPort[FSRequest](portCapacity),
		respPort: newPort[FSResponse](portCapacity),
		inFlight: semaphore.NewWeighted(MaxInFlight),
		stash:    make(map[uint64]FSResponse),
	}
	r.byName[name] = d
	return d, nil
}

// Unregister removes a daemon, e.g. on clean shutdown.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byName, name)
}

// Lookup returns the daemon registered under name.
func (r *Registry) Lookup(name string) (*Daemon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.byName[name]
	if !ok {
		return nil, ErrDaemonNotFound
	}
	return d, nil
}

func (d *Daemon) nextID() uint64 { return atomic.AddUint64(&d.nextRequestID, 1) }
