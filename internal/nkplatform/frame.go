package nkplatform

// InterruptFrame is the stack layout an ISR stub builds before handing
// control to a C (here, Go) handler, and the exact layout IRET expects
// to restore. Field order matches
// original_source/src/Nanokernel/nk_sched.c's documented contract:
// GS,FS,ES,DS,EDI,ESI,EBP,ESP_dummy,EBX,EDX,ECX,EAX,EIP,CS,EFLAGS, with
// UserESP/SS appended only on a ring change.
type InterruptFrame struct {
	GS, FS, ES, DS uint32
	EDI, ESI, EBP  uint32
	ESPDummy       uint32
	EBX, EDX, ECX, EAX uint32

	// CPU-pushed fields, restored verbatim by IRET.
	EIP, CS, EFLAGS uint32

	// Present only on a ring change (user->kernel); a ring-0-to-ring-0
	// IRET neither pushes nor pops these, and original code explicitly
	// warns against writing them because they alias adjacent stack
	// data in that case.
	UserESP, SS uint32
	RingChange  bool
}

// ExceptionVectors are the CPU exception vectors 0-31, of which the
// nanokernel installs panic trampolines for the ones spec.md §6 and §7
// name explicitly.
const (
	ExcDivideError   = 0
	ExcInvalidOpcode = 6
	ExcStackFault    = 12
	ExcGPF           = 13
	ExcPageFault     = 14

	// IRQBase is the first remapped hardware-interrupt vector.
	IRQBase = 32
	// IRQLast is the last remapped hardware-interrupt vector (16 IRQ lines).
	IRQLast = 47
	// VectorSoftwareResched is the software interrupt the deferred
	// reschedule path triggers to safely re-enter the scheduler.
	VectorSoftwareResched = 0x81
)

// PanicCode enumerates the fatal conditions spec.md §7 names. The
// original's public panic-code enum didn't define numeric values for
// INVALID_OPCODE/GPF/PAGE_FAULT/STACK_FAULT (spec.md §9); this port
// assigns stable values rather than guessing the reference's.
type PanicCode int

const (
	PanicUnknown PanicCode = iota
	PanicDoubleFree
	PanicHeapCorruption
	PanicInvalidOpcode
	PanicGPF
	PanicPageFault
	PanicStackFault
	PanicDivideByZero
)

func (c PanicCode) String() string {
	switch c {
	case PanicDoubleFree:
		return "DOUBLE_FREE"
	case PanicHeapCorruption:
		return "HEAP_CORRUPTION"
	case PanicInvalidOpcode:
		return "INVALID_OPCODE"
	case PanicGPF:
		return "GPF"
	case PanicPageFault:
		return "PAGE_FAULT"
	case PanicStackFault:
		return "STACK_FAULT"
	case PanicDivideByZero:
		return "DIVIDE_BY_ZERO"
	default:
		return "UNKNOWN"
	}
}

// PanicContext is what the panic path prints before halting: the full
// register snapshot, the faulting exception number and (for page
// faults) CR2, plus a bounded backtrace.
type PanicContext struct {
	Code           PanicCode
	ExceptionNum   int
	Frame          InterruptFrame
	CR2            uint32 // valid only for PanicPageFault
	ErrorCode      uint32
	Backtrace      []uintptr // at most 32 frames
	Message        string
}

// MaxBacktraceFrames bounds the frame-pointer walk, per spec.md §7.
const MaxBacktraceFrames = 32
