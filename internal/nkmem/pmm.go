// Package nkmem implements the nanokernel's physical memory manager and
// kernel heap: a bitmap allocator over a contiguous physical region at
// 4 KiB page granularity, and a first-fit free-list heap layered on top
// of it. Both guard their state with a mutex taken by every method, so
// a PMM or heap can be shared across goroutines.
package nkmem

import (
	"fmt"
	"sync"
)

// PageSize is the page granularity the PMM and heap operate on.
const PageSize = 4096

// pageAlign rounds n up to the next multiple of PageSize.
func pageAlign(n uint64) uint64 {
	return (n + PageSize - 1) &^ (PageSize - 1)
}

// PMM is a bitmap-based physical page allocator over
// [physBase, physBase+memSizeBytes).
type PMM struct {
	mu sync.Mutex

	bitmap   []byte
	total    uint64
	free     uint64
	physBase uintptr
}

// NewPMM initializes a PMM over memSizeBytes of memory starting at
// physBase. The bitmap itself is carved out of the front of the region,
// and the pages it occupies are marked allocated, mirroring
// pmm_init in original_source/src/Nanokernel/nk_memory.c.
func NewPMM(memSizeBytes uint64, physBase uintptr) *PMM {
	total := memSizeBytes / PageSize
	bitmapBytes := (total + 7) / 8

	p := &PMM{
		bitmap:   make([]byte, bitmapBytes),
		total:    total,
		free:     total,
		physBase: physBase,
	}

	bitmapPages := pageAlign(bitmapBytes) / PageSize
	for i := uint64(0); i < bitmapPages && i < total; i++ {
		p.set(i)
	}
	p.free -= minU64(bitmapPages, total)
	return p
}

func minU64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

func (p *PMM) set(bit uint64)   { p.bitmap[bit/8] |= 1 << (bit % 8) }
func (p *PMM) clear(bit uint64) { p.bitmap[bit/8] &^= 1 << (bit % 8) }
func (p *PMM) test(bit uint64) bool {
	return p.bitmap[bit/8]&(1<<(bit%8)) != 0
}

// AllocPage linearly scans the bitmap for the first clear bit and
// returns the physical address of that page. ok is false when the
// region is exhausted.
func (p *PMM) AllocPage() (addr uintptr, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := uint64(0); i < p.total; i++ {
		if !p.test(i) {
			p.set(i)
			p.free--
			return p.physBase + uintptr(i*PageSize), true
		}
	}
	return 0, false
}

// FreePage releases a page previously returned by AllocPage. Freeing an
// address outside the managed range, or one not currently allocated, is
// a silent no-op (matching pmm_free_page's bounds check and "only clear
// if currently set" behavior).
func (p *PMM) FreePage(addr uintptr) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if addr < p.physBase {
		return
	}
	idx := (uint64(addr) - uint64(p.physBase)) / PageSize
	if idx >= p.total || !p.test(idx) {
		return
	}
	p.clear(idx)
	p.free++
}

// TotalPages returns the number of pages managed by this PMM.
func (p *PMM) TotalPages() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total
}

// FreePages returns the number of currently unallocated pages.
func (p *PMM) FreePages() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.free
}

// AllocatedPages returns TotalPages - FreePages.
func (p *PMM) AllocatedPages() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total - p.free
}

// Stats is a human-readable snapshot for diagnostic printers
// (mem_print_stats in the original).
type Stats struct {
	TotalPages     uint64
	FreePages      uint64
	AllocatedPages uint64
}

func (p *PMM) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{TotalPages: p.total, FreePages: p.free, AllocatedPages: p.total - p.free}
}

func (s Stats) String() string {
	const mib = 1024.0 * 1024.0
	totalMB := float64(s.TotalPages*PageSize) / mib
	freeMB := float64(s.FreePages*PageSize) / mib
	return fmt.Sprintf("total=%d pages (%.2f MiB) free=%d pages (%.2f MiB) used=%d pages (%.2f MiB)",
		s.TotalPages, totalMB, s.FreePages, freeMB, s.AllocatedPages, totalMB-freeMB)
}
