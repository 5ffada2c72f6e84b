package nkmem

import "testing"

func TestPMMRoundTrip(t *testing.T) {
	p := NewPMM(8<<20, 0x100000)

	initialFree := p.FreePages()

	var pages []uintptr
	for i := 0; i < 4; i++ {
		addr, ok := p.AllocPage()
		if !ok {
			t.Fatalf("alloc %d: out of pages", i)
		}
		for _, seen := range pages {
			if seen == addr {
				t.Fatalf("duplicate page address %#x", addr)
			}
		}
		pages = append(pages, addr)
	}

	if got := p.FreePages() + p.AllocatedPages(); got != p.TotalPages() {
		t.Fatalf("invariant broken: free+allocated=%d total=%d", got, p.TotalPages())
	}

	for _, addr := range pages {
		p.FreePage(addr)
	}

	if p.FreePages() != initialFree {
		t.Fatalf("free pages after release = %d, want %d", p.FreePages(), initialFree)
	}
}

func TestPMMDoubleFreeIsNoop(t *testing.T) {
	p := NewPMM(1<<20, 0)
	addr, ok := p.AllocPage()
	if !ok {
		t.Fatal("alloc failed")
	}
	free := p.FreePages()
	p.FreePage(addr)
	p.FreePage(addr) // second free must not double-increment
	if p.FreePages() != free+1 {
		t.Fatalf("free pages = %d, want %d", p.FreePages(), free+1)
	}
}

func TestPMMExhaustion(t *testing.T) {
	p := NewPMM(PageSize*4, 0)
	for {
		if _, ok := p.AllocPage(); !ok {
			break
		}
	}
	if _, ok := p.AllocPage(); ok {
		t.Fatal("expected allocation to fail once exhausted")
	}
}
