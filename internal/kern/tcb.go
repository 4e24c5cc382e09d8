package kern

import (
	"github.com/gokern/gokern/internal/abi"
	"github.com/gokern/gokern/internal/vm"
)

// State is a TCB's lifecycle state.
type State int

const (
	Unused State = iota
	Blocked
	Runnable
)

func (s State) String() string {
	switch s {
	case Unused:
		return "unused"
	case Blocked:
		return "blocked"
	case Runnable:
		return "runnable"
	default:
		return "invalid"
	}
}

// TCB is one task control block. Every field is protected by the owning
// Kernel's single big lock; nothing here is safe to read or write without
// holding it. Back-references (Pager, the entries of Senders) are plain
// pointers into the Kernel's fixed task array rather than tids, which is
// safe and cheaper here since the array never reallocates
// (internal/constants.NumTasks is fixed), so the pointers stay valid for the
// process lifetime.
type TCB struct {
	Tid   abi.Tid
	State State
	Name  string
	Flags uint32

	Entry uintptr

	Pager    *TCB
	RefCount int

	Quantum int
	Timeout int // remaining ticks until a Timer notification fires; 0 disables

	Notifications uint32

	M   Message
	Src abi.Tid // accept filter during the receive phase

	// Senders is the intrusive FIFO of tasks blocked trying to send to
	// this task. Index 0 is the head (oldest).
	Senders []*TCB

	// KernelOrigin marks a queued Senders entry whose M was stamped by
	// deliverKernelMessageLocked rather than by its own Ipc call; the
	// receive phase uses it to know to keep Src as KernelTid instead of
	// overwriting it with the queued task's own tid.
	KernelOrigin bool

	// BulkSenders queues DoBulk callers waiting on this task's first
	// AcceptBulk (bulk.go).
	BulkSenders []bulkSend

	// Bulk acceptance state, managed by bulk.go's AcceptBulk/DoBulk/
	// VerifyBulk and stored here since it is per-task state like everything else.
	BulkAccepted    bool
	BulkAddr        uintptr
	BulkLen         uint32
	BulkReceivedFrom abi.Tid
	BulkReceivedBuf  uintptr
	BulkReceivedLen  uint32

	Vm *vm.AddressSpace

	// Listening is the set of IRQ lines this task currently owns, tracked
	// here so destroy() can release them all without scanning the whole
	// IRQ table.
	Listening map[int]bool
}

// bulkSend is one queued DoBulk request waiting on a destination's
// AcceptBulk (bulk.go in this package owns the logic; this struct is shared
// kernel/bulk state just like TCB.Senders is shared with the IPC engine).
type bulkSend struct {
	Src  *TCB
	Addr uintptr
	Len  uint32
	// Reply, if non-nil, is signaled with the result once the transfer
	// completes — used to implement DoBulk's DontReply/eventual-reply
	// semantics without a second goroutine per pending sender.
	Reply chan bulkResult
}

type bulkResult struct {
	Code abi.Code
}

func newTCB(tid abi.Tid) *TCB {
	return &TCB{
		Tid:       tid,
		State:     Unused,
		Listening: make(map[int]bool),
	}
}

func (t *TCB) isIdle() bool { return t.Tid == abi.KernelTid }
