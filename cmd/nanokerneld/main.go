// The nanokerneld command boots the nanokernel substrate: it reads a
// JSON boot manifest, brings up the platform/memory/scheduling layers
// in dependency order, records the manifest's mount-table rows and
// registers its daemons (the manifest's filesystem list is not used),
// and optionally serves a Prometheus scrape endpoint — the process
// that wires every package's registry together, the same role
// perkeepd plays for perkeep-perkeep's storage/handler registries.
package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Kelsidavis/System7-sub000/internal/blockdev"
	"github.com/Kelsidavis/System7-sub000/internal/fsdaemon"
	"github.com/Kelsidavis/System7-sub000/internal/kconfig"
	"github.com/Kelsidavis/System7-sub000/internal/mount"
	"github.com/Kelsidavis/System7-sub000/internal/nkipc"
	"github.com/Kelsidavis/System7-sub000/internal/nklog"
	"github.com/Kelsidavis/System7-sub000/internal/nkmem"
	"github.com/Kelsidavis/System7-sub000/internal/nkplatform"
	"github.com/Kelsidavis/System7-sub000/internal/nksched"
	"github.com/Kelsidavis/System7-sub000/internal/nkstats"
	"github.com/Kelsidavis/System7-sub000/internal/nktask"
	"github.com/Kelsidavis/System7-sub000/internal/nktimer"
	"github.com/Kelsidavis/System7-sub000/internal/posix"
	"github.com/Kelsidavis/System7-sub000/internal/vfscore"
	"github.com/Kelsidavis/System7-sub000/internal/virtualfs"
)

func main() {
	manifestPath := flag.String("boot", "", "path to the JSON boot manifest")
	metricsAddr := flag.String("metrics-addr", "", "address to serve /metrics on (empty disables it)")
	flag.Parse()

	if *manifestPath == "" {
		log.Fatal("nanokerneld: -boot is required")
	}

	boot, err := kconfig.Load(*manifestPath)
	if err != nil {
		log.Fatalf("nanokerneld: %v", err)
	}
	if *metricsAddr == "" && boot.MetricsAddr != "" {
		*metricsAddr = boot.MetricsAddr
	}

	k := bootKernel(boot)
	defer k.hal.SerialPuts("nanokerneld: shutdown\n")

	if *metricsAddr != "" {
		serveMetrics(*metricsAddr)
	}

	k.runIdleLoop()
}

// kernel holds every subsystem boot wires together, in the dependency
// order spec.md §2's data-flow table describes: external block
// drivers register with blockdev; VFS core probes devices through FS
// drivers or delegates to daemons; mount table binds paths to volumes;
// the syscall shim resolves paths through mount+vfscore.
type kernel struct {
	hal       nkplatform.HAL
	pic       *nkplatform.PIC
	pit       *nkplatform.PIT
	clock     *nktimer.Clock
	sleepQ    *nktimer.SleepQueue
	sched     *nksched.Scheduler
	pmm       *nkmem.PMM
	heap      *nkmem.Heap
	ipc       *nkipc.Registry
	blocks    *blockdev.Registry
	vfs       *vfscore.Registry
	mounts    *mount.Table
	daemons   *fsdaemon.Registry
	syscalls  *posix.Shim
	proc      *virtualfs.ProcFS
	dev       *virtualfs.DevFS
	net       *virtualfs.NetFS
	bootAt    time.Time
	bootLog   *log.Logger
	idleTask  *nktask.Task
	idleStack *nktask.Thread
}

func bootKernel(boot *kconfig.Boot) *kernel {
	k := &kernel{bootAt: time.Now(), bootLog: nklog.New("nanokerneld")}

	k.hal = nkplatform.NewSimHAL(os.Stderr)
	k.pic = nkplatform.NewPIC(k.hal)
	k.pic.Remap()
	k.pit = nkplatform.NewPIT(k.hal)

	k.pmm = nkmem.NewPMM(boot.PMMSizeBytes, boot.PMMPhysBase)
	heapEnd := boot.HeapEndBytes
	if heapEnd <= boot.HeapStartBytes {
		heapEnd = boot.HeapStartBytes + 16*1024*1024
	}
	k.heap = nkmem.NewHeap(k.pmm, uintptr(boot.HeapStartBytes), uintptr(heapEnd))

	k.clock = &nktimer.Clock{}
	k.sleepQ = nktimer.NewSleepQueue(k.clock, k.pit, boot.TimerHz)
	k.sched = nksched.New(k.clock, k.sleepQ)

	k.idleTask = nktask.CreateTask()
	idle, err := nktask.CreateThread(k.idleTask, k.heap, func(arg any) {
		for {
			k.sched.ServiceExpiredSleepers()
			if k.sched.ConsumeReschedulePending() {
				k.sched.Yield(k.idleStack)
			}
		}
	}, nil, 16*1024, nktask.IdlePriority)
	if err != nil {
		log.Fatalf("nanokerneld: create idle thread: %v", err)
	}
	k.idleStack = idle
	k.sched.SetIdle(idle)

	k.ipc = nkipc.NewRegistry()
	k.blocks = blockdev.NewRegistry()
	k.vfs = vfscore.NewRegistry()
	k.mounts = mount.New(boot.BootVolume)
	k.daemons = fsdaemon.NewRegistry()
	k.syscalls = posix.New()

	k.proc = virtualfs.NewProcFS(virtualfs.Sources{
		Version: "nanokernel substrate (System7-sub000)",
		PMM:     k.pmm,
		Sched:   k.sched,
		Mounts:  k.mounts,
		BootAt:  k.bootAt,
	})
	k.dev = virtualfs.NewDevFS(os.Stderr, uint32(time.Now().UnixNano()))
	k.net = virtualfs.NewNetFS()

	for _, d := range boot.Daemons {
		if _, err := k.daemons.Register(d.Name, 0, d.PortCapacity); err != nil {
			k.bootLog.Printf("register daemon %s: %v", d.Name, err)
		}
	}

	for _, m := range boot.Mounts {
		if err := k.mounts.Add(m.Source, m.MountPoint, m.FSType, mount.FlagVolume, nil); err != nil {
			k.bootLog.Printf("add mount %s: %v", m.MountPoint, err)
		}
	}

	k.bootLog.Printf("boot complete: volume=%s timerHz=%d daemons=%d mounts=%d",
		boot.BootVolume, boot.TimerHz, len(boot.Daemons), len(boot.Mounts))

	return k
}

func (k *kernel) runIdleLoop() {
	k.bootLog.Printf("entering idle loop")
	k.sched.Start(k.idleStack)
	<-k.idleStack.Exited()
}

func serveMetrics(addr string) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(nkstats.NewExporter())
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("nanokerneld: metrics server: %v", err)
		}
	}()
}
