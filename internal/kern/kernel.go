// Package kern implements the kernel core: the task table and scheduler,
// the synchronous IPC rendezvous engine, and notification/IRQ dispatch.
// The three live in one package because they share a single big lock and
// reach directly into the same TCB fields — splitting them would either
// force an anemic interface between mutually-dependent state or an import
// cycle.
package kern

import (
	"sync"

	"github.com/gokern/gokern/internal/abi"
	"github.com/gokern/gokern/internal/constants"
	"github.com/gokern/gokern/internal/logging"
	"github.com/gokern/gokern/internal/vm"
)

// Kernel is the whole kernel core: the fixed task table, the runqueue, the
// IRQ ownership table, and the single big lock that every entry point
// acquires. There is one idle task, shared by every simulated CPU since
// this is an in-process simulation rather than a real SMP machine.
type Kernel struct {
	mu   sync.Mutex
	cond *sync.Cond

	tasks [constants.NumTasks]*TCB // tasks[tid-1] for tid in [1, NumTasks]
	idle  *TCB
	runq  []*TCB
	// current is the task the scheduler most recently handed the
	// (logical, single) CPU to. It is bookkeeping for quantum accounting
	// and the fairness invariant, not a real suspended register context:
	// Go's own scheduler is what actually resumes a blocked goroutine when
	// cond.Broadcast wakes it.
	current *TCB

	irqOwner [constants.IRQMax]*TCB

	klog *logRing

	// arena backs every AddressSpace's page frames and the bulk-copy
	// protocol's cross-task memcpy (internal/bulk). nil if construction
	// failed, in which case Map and DoBulk fail with NoMemory.
	arena *vm.Arena

	abiEmu bool // whether this build has ABI emulation compiled in

	log *logging.Logger

	metrics Metrics
}

// Config configures a new Kernel. The zero Config is DefaultConfig.
type Config struct {
	Logger *logging.Logger

	// ArenaPages sizes the physical frame arena. Zero means
	// constants.ArenaPages.
	ArenaPages int
}

// DefaultConfig returns a Config with a default logger and arena size.
func DefaultConfig() *Config {
	return &Config{Logger: logging.Default(), ArenaPages: constants.ArenaPages}
}

// NewKernel builds a Kernel with an empty task table and an idle task.
func NewKernel(cfg *Config) *Kernel {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	arenaPages := cfg.ArenaPages
	if arenaPages <= 0 {
		arenaPages = constants.ArenaPages
	}

	k := &Kernel{
		klog:   newLogRing(constants.LogRingSize),
		abiEmu: abiEmuCompiledIn,
		log:    logger,
	}
	k.cond = sync.NewCond(&k.mu)
	k.idle = newTCB(abi.KernelTid)
	k.idle.State = Runnable
	k.current = k.idle

	for i := range k.tasks {
		k.tasks[i] = newTCB(abi.Tid(i + 1))
	}

	arena, err := vm.NewArena(arenaPages)
	if err != nil {
		logger.Error("physical frame arena unavailable", "error", err.Error())
	} else {
		k.arena = arena
	}

	return k
}

// ABIEmuCompiledIn reports whether this build includes ABI emulation
// support (the abiemu build tag).
func (k *Kernel) ABIEmuCompiledIn() bool { return k.abiEmu }

// Lookup returns the TCB for tid, rejecting 0, out-of-range, and Unused
// slots.
func (k *Kernel) Lookup(tid abi.Tid) (*TCB, abi.Code) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.lookupLocked(tid)
}

func (k *Kernel) lookupLocked(tid abi.Tid) (*TCB, abi.Code) {
	t, code := k.lookupUncheckedLocked(tid)
	if code != abi.OK {
		return nil, code
	}
	if t.State == Unused {
		return nil, abi.NotFound
	}
	return t, abi.OK
}

// LookupUnchecked rejects only an out-of-range tid; an Unused slot is
// returned as-is.
func (k *Kernel) LookupUnchecked(tid abi.Tid) (*TCB, abi.Code) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.lookupUncheckedLocked(tid)
}

func (k *Kernel) lookupUncheckedLocked(tid abi.Tid) (*TCB, abi.Code) {
	if tid < 1 || int(tid) > constants.NumTasks {
		return nil, abi.InvalidArg
	}
	return k.tasks[tid-1], abi.OK
}

// Metrics returns a snapshot of kernel-wide counters.
func (k *Kernel) Metrics() MetricsSnapshot {
	return k.metrics.Snapshot()
}
