package kern

import "github.com/gokern/gokern/internal/abi"

// deliverKernelMessageLocked delivers msg to pager as if origin had issued
// Ipc(dst=pager, flags=Send|Kernel), a kernel-originated send:
// the source tid stamped into the delivered message is always KernelTid,
// never origin's real tid, matching "these calls... carry tid zero as
// source". Unlike ordinary sends this never blocks the caller itself —
// callers that need call semantics (page fault) arrange their own blocking
// around this.
func (k *Kernel) deliverKernelMessageLocked(pager, origin *TCB, msg Message) {
	msg.Src = abi.KernelTid

	if pager.State == Blocked && acceptsSender(pager.Src, origin.Tid) {
		pager.M = msg
		pager.Src = abi.DenySrc
		k.resumeLocked(pager)
		return
	}

	origin.M = msg
	origin.KernelOrigin = true
	pager.Senders = append(pager.Senders, origin)
}

// PageFault synthesizes a PageFault message to t's pager with Kernel|Call
// semantics: t blocks until the pager replies, at which
// point the kernel resumes it with the pager's reply already in t.M (the
// pager is expected to have installed a mapping via Map first). If the
// underlying kernel IPC aborts — the only way that can happen is the pager
// dying, which ref-counting otherwise prevents while it holds this
// relationship — t exits with AbortedKernelIpc instead of returning.
func (k *Kernel) PageFault(t *TCB, vaddr, ip uintptr, flags uint32) {
	k.mu.Lock()
	defer k.mu.Unlock()

	pager := t.Pager
	k.metrics.PageFaults.Add(1)
	k.log.Debug("page fault", "tid", int32(t.Tid), "vaddr", vaddr)

	if pager == nil {
		k.exitLocked(t, abi.ExpInvalidMemoryAccess)
		return
	}

	t.Src = pager.Tid
	k.blockLocked(t)
	k.deliverKernelMessageLocked(pager, t, pageFaultMessage(vaddr, ip, flags))
	k.suspendLocked(t)

	if t.Notifications&abi.NotifyAborted != 0 {
		t.Notifications &^= abi.NotifyAborted
		k.exitLocked(t, abi.ExpAbortedKernelIPC)
	}
}
