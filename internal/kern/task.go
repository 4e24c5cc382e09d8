package kern

import (
	"github.com/gokern/gokern/internal/abi"
	"github.com/gokern/gokern/internal/vm"
)

// Create installs a new task at tid. It fails with
// AlreadyExists if the slot isn't Unused, Unavailable if ABI emulation was
// requested on a build that doesn't carry it, or InvalidArg/NotFound if
// pagerTid doesn't name a live task (except for the initial task, which has
// none). On success the task is Runnable and enqueued, except the idle
// task, which Create never builds — it exists once, outside the table.
func (k *Kernel) Create(tid abi.Tid, name string, entry uintptr, pagerTid abi.Tid, flags uint32) (*TCB, abi.Code) {
	k.mu.Lock()
	defer k.mu.Unlock()

	t, code := k.lookupUncheckedLocked(tid)
	if code != abi.OK {
		return nil, code
	}
	if t.State != Unused {
		return nil, abi.AlreadyExists
	}
	if flags&abi.TaskABIEmu != 0 && !k.abiEmu {
		return nil, abi.Unavailable
	}

	var pager *TCB
	if tid != abi.InitTid {
		p, code := k.lookupLocked(pagerTid)
		if code != abi.OK {
			return nil, code
		}
		pager = p
	}

	t.Name = name
	t.Entry = entry
	t.Flags = flags
	t.Notifications = 0
	t.Quantum = 0
	t.Timeout = 0
	t.Src = abi.DenySrc
	t.Senders = nil
	t.BulkSenders = nil
	t.BulkAccepted = false
	t.Pager = pager
	t.RefCount = 0
	t.Vm = vm.NewAddressSpace()
	t.Listening = make(map[int]bool)

	if pager != nil {
		pager.RefCount++
	}

	t.State = Blocked
	k.resumeLocked(t)

	k.metrics.TasksCreated.Add(1)
	k.log.Info("task created", "tid", int32(t.Tid), "name", name, "pager", int32(pagerTid))
	return t, abi.OK
}

// Destroy tears down t. It fails with InUse if anything still references t
// as a pager (checked first, so this holds for the initial task too), and
// otherwise refuses self-destruction, the idle task, and the initial task.
func (k *Kernel) Destroy(t *TCB) abi.Code {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.destroyLocked(t)
}

func (k *Kernel) destroyLocked(t *TCB) abi.Code {
	if t == nil || t.State == Unused {
		return abi.NotFound
	}
	if t.RefCount > 0 {
		return abi.InUse
	}
	if t == k.current || t.isIdle() || t.Tid == abi.InitTid {
		return abi.NotPermitted
	}

	k.removeFromRunqLocked(t)
	kpages := t.Vm.Destroy()
	if k.arena != nil {
		for _, kp := range kpages {
			k.arena.Free(kp)
		}
	}

	if t.Pager != nil {
		t.Pager.RefCount--
		t.Pager = nil
	}

	for _, line := range irqLinesOf(t) {
		k.irqOwner[line] = nil
	}

	senders := t.Senders
	t.Senders = nil
	t.State = Unused
	t.BulkAccepted = false
	t.BulkSenders = nil
	k.klog.unlisten(t)

	for _, s := range senders {
		s.Notifications |= abi.NotifyAborted
		k.resumeLocked(s)
	}

	k.metrics.TasksDestroyed.Add(1)
	k.log.Info("task destroyed", "tid", int32(t.Tid))
	k.cond.Broadcast()
	return abi.OK
}

func irqLinesOf(t *TCB) []int {
	lines := make([]int, 0, len(t.Listening))
	for line := range t.Listening {
		lines = append(lines, line)
	}
	return lines
}

// Exit sends an Exception message to t's pager and blocks t forever with
// src=Deny. It never returns to the caller until some
// other task calls Destroy on t; the pager is expected to do so once it
// observes the exception.
func (k *Kernel) Exit(t *TCB, reason abi.ExceptionReason) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.exitLocked(t, reason)
}

func (k *Kernel) exitLocked(t *TCB, reason abi.ExceptionReason) {
	pager := t.Pager
	k.metrics.Exceptions.Add(1)
	k.log.Warn("task exit", "tid", int32(t.Tid), "reason", reason.String())

	t.Src = abi.DenySrc
	k.blockLocked(t)

	if pager != nil {
		k.deliverKernelMessageLocked(pager, t, exceptionMessage(reason))
	}

	k.suspendLocked(t)
}

// blockLocked marks t Blocked and removes it from the runqueue if present.
func (k *Kernel) blockLocked(t *TCB) {
	t.State = Blocked
	k.removeFromRunqLocked(t)
}

// resumeLocked marks t Runnable and enqueues it at the runqueue tail: a
// task made Runnable via notification is pushed to the tail.
func (k *Kernel) resumeLocked(t *TCB) {
	if t.State == Runnable {
		return
	}
	t.State = Runnable
	k.runq = append(k.runq, t)
	k.cond.Broadcast()
}

func (k *Kernel) removeFromRunqLocked(t *TCB) {
	for i, r := range k.runq {
		if r == t {
			k.runq = append(k.runq[:i], k.runq[i+1:]...)
			return
		}
	}
}
