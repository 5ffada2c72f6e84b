// Package nkstats implements the nanokernel's performance and stack
// debug facilities (spec.md §4.G): per-thread context-switch/CPU-tick
// accounting (attributed by internal/nksched at switch boundaries),
// dump_stats-style reporting, and stack canary/usage checks.
package nkstats

import (
	"fmt"
	"io"

	"github.com/Kelsidavis/System7-sub000/internal/nklog"
	"github.com/Kelsidavis/System7-sub000/internal/nktask"
)

// StackUsageWarnThreshold is the fraction of a thread's stack that
// triggers a logged warning, matching the "warning at >=75%" rule.
const StackUsageWarnThreshold = 0.75

var log = nklog.New("nkstats")

// StackUsage returns the fraction of th's stack currently in use,
// (stack_top - esp) / stack_size. The running thread's ESP would be
// read live via inline assembly on real hardware; this port has no
// such access, so it always uses the thread's stored Context.ESP, which
// nktask.CreateThread sets to the top of the stack and nksched does not
// update at a switch.
func StackUsage(th *nktask.Thread) float64 {
	if th.StackSize == 0 {
		return 0
	}
	top := uint32(th.StackSize)
	esp := th.Context.ESP
	if esp > top {
		return 1 // out of bounds above top: treat as fully consumed
	}
	return float64(top-esp) / float64(top)
}

// CheckStack verifies th's canary and logs a warning once usage
// crosses StackUsageWarnThreshold, or an error if ESP has gone out of
// the stack's bounds entirely. It returns false if the canary is
// corrupted.
func CheckStack(th *nktask.Thread) bool {
	if !th.VerifyCanary() {
		log.Printf("thread %d: stack canary corrupted, possible overflow", th.TID)
		return false
	}
	if th.Context.ESP > uint32(th.StackSize) {
		log.Printf("thread %d: ESP %#x out of stack bounds (size %d)", th.TID, th.Context.ESP, th.StackSize)
		return true
	}
	if u := StackUsage(th); u >= StackUsageWarnThreshold {
		log.Printf("thread %d: stack usage at %.1f%%", th.TID, u*100)
	}
	return true
}

// DumpStats writes a dump_stats()-style report of every task and
// thread to w: context switches, CPU ticks, CPU percentage (relative to
// totalTicks, the clock's current tick count), and average quantum
// length.
func DumpStats(w io.Writer, totalTicks uint64) {
	for _, task := range nktask.AllTasks() {
		fmt.Fprintf(w, "task pid=%d threads=%d\n", task.PID, task.ThreadCount())
		for _, th := range task.Threads() {
			pct := 0.0
			if totalTicks > 0 {
				pct = float64(th.Stats.CPUTicks) / float64(totalTicks) * 100
			}
			avgQuantum := 0.0
			if th.Stats.ContextSwitches > 0 {
				avgQuantum = float64(th.Stats.CPUTicks) / float64(th.Stats.ContextSwitches)
			}
			fmt.Fprintf(w, "  tid=%d state=%s switches=%d ticks=%d cpu=%.2f%% avg_quantum=%.2f\n",
				th.TID, th.State(), th.Stats.ContextSwitches, th.Stats.CPUTicks, pct, avgQuantum)
		}
	}
}
