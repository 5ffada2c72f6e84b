package nkplatform

// IDTEntries is the fixed 256-gate size of the interrupt descriptor
// table (spec.md §4.C).
const IDTEntries = 256

// Gate is one IDT descriptor: a handler vector plus the segment
// selector and type/flags byte nk_idt_set_gate writes.
type Gate struct {
	Handler  uintptr
	Selector uint16
	Flags    uint8
}

// IDT models LIDT-loaded gate table installation. InterruptGate is the
// type_attr byte for a present, ring-0 32-bit interrupt gate (0x8E),
// matching the reference's conventional flags value.
const InterruptGate uint8 = 0x8E

type IDT struct {
	gates [IDTEntries]Gate
}

// SetGate installs handler at vector num, mirroring nk_idt_set_gate.
func (t *IDT) SetGate(num uint8, handler uintptr, selector uint16, flags uint8) {
	t.gates[num] = Gate{Handler: handler, Selector: selector, Flags: flags}
}

// Install loads the table (LIDT) via the HAL's serial console for
// diagnostic parity with the reference; there is no real LIDT in a
// simulated HAL, so Install's only observable effect is the log line
// and the in-struct gate table becoming the "installed" one other
// components read through Gate.
func (t *IDT) Install(h HAL) {
	h.SerialPuts("[nk_idt] IDT installed (256 entries)\n")
}

// Gate returns the installed descriptor for vector num, for tests and
// for the exception dispatcher to find a handler.
func (t *IDT) Gate(num uint8) Gate { return t.gates[num] }
