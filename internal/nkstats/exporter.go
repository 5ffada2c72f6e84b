package nkstats

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Kelsidavis/System7-sub000/internal/nktask"
)

// Exporter additively exposes the same per-thread counters DumpStats
// prints as Prometheus metrics (switches and ticks as counters, the
// scheduling state as a gauge), for an external scrape. It is pure
// observability: nothing in the scheduler or stack-debug path consults
// it, matching DumpStats/VerifyCanary's role as diagnostics rather than
// correctness machinery.
type Exporter struct {
	switches *prometheus.Desc
	ticks    *prometheus.Desc
	state    *prometheus.Desc
}

// NewExporter builds a prometheus.Collector that walks nktask.AllTasks
// at scrape time, mirroring the ffromani-dra-driver-memory daemon's use
// of the prometheus client for a long-running scheduler-adjacent
// process rather than a one-shot CLI metric dump.
func NewExporter() *Exporter {
	return &Exporter{
		switches: prometheus.NewDesc(
			"nanokernel_thread_context_switches_total",
			"Total context switches into this thread.",
			[]string{"pid", "tid"}, nil,
		),
		ticks: prometheus.NewDesc(
			"nanokernel_thread_cpu_ticks_total",
			"Total CPU ticks (milliseconds) attributed to this thread.",
			[]string{"pid", "tid"}, nil,
		),
		state: prometheus.NewDesc(
			"nanokernel_thread_state",
			"Current scheduling state of this thread (one series per thread, labelled with its current state, value 1).",
			[]string{"pid", "tid", "state"}, nil,
		),
	}
}

func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- e.switches
	ch <- e.ticks
	ch <- e.state
}

func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	for _, task := range nktask.AllTasks() {
		pid := strconv.FormatUint(uint64(task.PID), 10)
		for _, th := range task.Threads() {
			tid := strconv.FormatUint(uint64(th.TID), 10)
			ch <- prometheus.MustNewConstMetric(e.switches, prometheus.CounterValue, float64(th.Stats.ContextSwitches), pid, tid)
			ch <- prometheus.MustNewConstMetric(e.ticks, prometheus.CounterValue, float64(th.Stats.CPUTicks), pid, tid)
			ch <- prometheus.MustNewConstMetric(e.state, prometheus.GaugeValue, 1, pid, tid, th.State().String())
		}
	}
}
