package nkmem

import (
	"errors"
	"sync"
)

// ErrOutOfMemory is returned when neither the free list nor the backing
// PMM can satisfy an allocation.
var ErrOutOfMemory = errors.New("nkmem: out of memory")

// blockHeader mirrors block_hdr_t from nk_memory.c: every live or free
// block is tracked by address range rather than by an in-band header,
// since Go gives us no pointer arithmetic into a byte slice we also hand
// out as a []byte. The "usable space" a caller sees is a []byte of
// exactly the requested (un-rounded) length backed by a page-rounded
// block.
type blockHeader struct {
	base uintptr
	size uint64 // page-rounded size of usable space
	next *blockHeader
}

// Heap is a first-fit, non-coalescing free-list allocator layered over a
// PMM-backed region, matching kmalloc/kfree/krealloc in
// original_source/src/Nanokernel/nk_memory.c. It hands out page-rounded
// blocks; callers needing arbitrary-size allocations should use Alloc,
// which tracks the originally requested length for Realloc's copy size.
type Heap struct {
	mu sync.Mutex

	pmm       *PMM
	freeList  *blockHeader
	heapBase  uintptr
	heapLimit uintptr
	next      uintptr // bump pointer for never-yet-freed space

	live map[uintptr]*allocation
}

type allocation struct {
	size     uint64 // page-rounded block size
	reqSize  uint64 // originally requested size
	data     []byte
}

// NewHeap creates a heap spanning [heapStart, heapEnd), falling back to
// pmm for pages once the initial span and free list are exhausted. This
// generalizes kheap_init, which carved a single static region; here the
// PMM fallback in kmalloc is first-class rather than a later addition.
func NewHeap(pmm *PMM, heapStart, heapEnd uintptr) *Heap {
	return &Heap{
		pmm:       pmm,
		heapBase:  uintptr(pageAlign(uint64(heapStart))),
		heapLimit: uintptr(pageAlign(uint64(heapEnd))),
		next:      uintptr(pageAlign(uint64(heapStart))),
		live:      make(map[uintptr]*allocation),
	}
}

// Alloc returns a page-rounded, zero-filled block of at least size
// bytes, first-fitting the free list before bump-allocating from the
// heap span or falling back to the PMM (kmalloc's three-tier search).
func (h *Heap) Alloc(size uint64) ([]byte, error) {
	if size == 0 {
		return nil, nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	rounded := pageAlign(size)

	// First-fit the free list, splitting the remainder when it's
	// large enough to be useful (mirrors split_block).
	var prev *blockHeader
	for cur := h.freeList; cur != nil; prev, cur = cur, cur.next {
		if cur.size < rounded {
			continue
		}
		if cur.size > rounded+PageSize {
			remBase := cur.base + uintptr(rounded)
			remSize := cur.size - rounded
			newBlock := &blockHeader{base: remBase, size: remSize, next: cur.next}
			cur.size = rounded
			if prev != nil {
				prev.next = newBlock
			} else {
				h.freeList = newBlock
			}
		} else {
			if prev != nil {
				prev.next = cur.next
			} else {
				h.freeList = cur.next
			}
		}
		return h.commit(cur.base, rounded, size), nil
	}

	// Bump-allocate from the still-untouched heap span.
	if h.next+uintptr(rounded) <= h.heapLimit {
		base := h.next
		h.next += uintptr(rounded)
		return h.commit(base, rounded, size), nil
	}

	// Fall back to the PMM directly, one page at a time; kmalloc only
	// ever needs a single page here because callers that want more
	// than PageSize bytes from a pure PMM fallback are out of scope
	// for a freestanding kernel heap.
	if h.pmm != nil && rounded <= PageSize {
		if addr, ok := h.pmm.AllocPage(); ok {
			return h.commit(addr, PageSize, size), nil
		}
	}

	return nil, ErrOutOfMemory
}

// commit backs an allocation with a slice capped at the page-rounded
// block size, length-sliced down to the requested size: the spare
// capacity between reqSize and rounded is what lets Realloc's
// grow-in-place fast path below hand back a longer slice over the same
// backing array instead of silently truncating it.
func (h *Heap) commit(base uintptr, rounded, reqSize uint64) []byte {
	buf := make([]byte, rounded)
	data := buf[:reqSize]
	h.live[base] = &allocation{size: rounded, reqSize: reqSize, data: data}
	return data
}

// addressOf recovers the synthetic block base address for a slice
// previously returned by Alloc, by identity-scanning the live set. Real
// pointer arithmetic isn't available over a Go []byte, so Free/Realloc
// take the slice itself rather than a bare address.
func (h *Heap) addressOf(p []byte) (uintptr, *allocation, bool) {
	for base, a := range h.live {
		if len(a.data) > 0 && len(p) > 0 && &a.data[0] == &p[0] {
			return base, a, true
		}
	}
	return 0, nil, false
}

// Free returns a block to the free list (LIFO insert, no coalescing),
// matching kfree's documented fragmentation trade-off.
func (h *Heap) Free(p []byte) {
	if p == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	base, a, ok := h.addressOf(p)
	if !ok {
		return
	}
	delete(h.live, base)
	h.freeList = &blockHeader{base: base, size: a.size, next: h.freeList}
}

// Realloc grows or shrinks an allocation, preserving min(old, new) bytes
// exactly. If the current block's rounded size already satisfies
// newSize, the existing backing array is resliced to newSize bytes in
// place rather than copied (krealloc's early-out).
func (h *Heap) Realloc(p []byte, newSize uint64) ([]byte, error) {
	if p == nil {
		return h.Alloc(newSize)
	}
	if newSize == 0 {
		h.Free(p)
		return nil, nil
	}

	h.mu.Lock()
	_, a, ok := h.addressOf(p)
	if !ok {
		h.mu.Unlock()
		return h.Alloc(newSize)
	}
	if a.size >= newSize {
		// The rounded block already has room: commit reserved spare
		// capacity up to a.size, so reslice rather than copy.
		a.data = a.data[:newSize]
		a.reqSize = newSize
		grown := a.data
		h.mu.Unlock()
		return grown, nil
	}
	h.mu.Unlock()

	newP, err := h.Alloc(newSize)
	if err != nil {
		return nil, err
	}
	copy(newP, p)
	h.Free(p)
	return newP, nil
}
