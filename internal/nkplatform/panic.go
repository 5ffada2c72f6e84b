package nkplatform

import "fmt"

// Halter is invoked at the end of the panic path. Production wiring
// hangs forever (CLI;HLT;JMP . has no meaningful Go equivalent besides
// blocking); tests substitute a Halter that records the call instead of
// blocking the test process.
type Halter func()

// BlockForever is the production Halter: it never returns, matching
// "halts via CLI; HLT; JMP .".
func BlockForever() { select {} }

// Panicker walks the panic path described in spec.md §7: disable
// interrupts (modeled as a no-op hook since SimHAL has no CLI/STI),
// print the register snapshot and context, then halt.
type Panicker struct {
	HAL   HAL
	Halt  Halter
}

func NewPanicker(h HAL) *Panicker {
	return &Panicker{HAL: h, Halt: BlockForever}
}

// Panic prints ctx to the serial console and calls Halt. It never
// returns when Halt is BlockForever; tests should inject a Halt that
// returns so the call site's "does not return" contract can still be
// exercised without hanging the test binary.
func (p *Panicker) Panic(ctx PanicContext) {
	f := ctx.Frame
	p.HAL.SerialPuts("\n*** KERNEL PANIC ***\n")
	p.HAL.SerialPuts(fmt.Sprintf("code=%s exception=%d error_code=%#x\n", ctx.Code, ctx.ExceptionNum, ctx.ErrorCode))
	if ctx.Code == PanicPageFault {
		p.HAL.SerialPuts(fmt.Sprintf("cr2=%#x\n", ctx.CR2))
	}
	p.HAL.SerialPuts(fmt.Sprintf("eip=%#x cs=%#x eflags=%#x\n", f.EIP, f.CS, f.EFLAGS))
	p.HAL.SerialPuts(fmt.Sprintf("eax=%#x ebx=%#x ecx=%#x edx=%#x esi=%#x edi=%#x ebp=%#x\n",
		f.EAX, f.EBX, f.ECX, f.EDX, f.ESI, f.EDI, f.EBP))
	if ctx.Message != "" {
		p.HAL.SerialPuts(ctx.Message + "\n")
	}
	for i, pc := range ctx.Backtrace {
		if i >= MaxBacktraceFrames {
			break
		}
		p.HAL.SerialPuts(fmt.Sprintf("  #%02d %#x\n", i, pc))
	}

	h := p.Halt
	if h == nil {
		h = BlockForever
	}
	h()
}

// DispatchException builds a PanicContext for a raw CPU exception
// vector and routes it to Panic, matching the exception-handler
// contract in spec.md §6/§7 (vectors 0-31 install panic trampolines).
func (p *Panicker) DispatchException(vector int, frame InterruptFrame, errorCode, cr2 uint32) {
	code := PanicUnknown
	switch vector {
	case ExcDivideError:
		code = PanicDivideByZero
	case ExcInvalidOpcode:
		code = PanicInvalidOpcode
	case ExcStackFault:
		code = PanicStackFault
	case ExcGPF:
		code = PanicGPF
	case ExcPageFault:
		code = PanicPageFault
	}
	p.Panic(PanicContext{
		Code:         code,
		ExceptionNum: vector,
		Frame:        frame,
		ErrorCode:    errorCode,
		CR2:          cr2,
	})
}
