// Package kernel is the public surface of the microkernel core: boot a
// kernel image, spawn and tear down tasks, and drive the system call table
// (Spawn, Kill, SetAttrs, Ipc, ListenIrq, WriteLog, ReadLog, Kdebug, Map)
// plus the clock and IRQ-line entry points. It wraps internal/kern (task
// table, scheduler, IPC rendezvous, notification/IRQ dispatch),
// internal/bootimage (the wire format Boot decodes), and internal/bulk (the
// bulk-copy protocol internal/kern.Kernel embeds) behind a single type.
package kernel

import (
	"github.com/gokern/gokern/internal/abi"
	"github.com/gokern/gokern/internal/bootimage"
	"github.com/gokern/gokern/internal/constants"
	"github.com/gokern/gokern/internal/kern"
	"github.com/gokern/gokern/internal/logging"
	"github.com/gokern/gokern/internal/vm"
)

// Kernel is a running kernel core: task table, scheduler, IPC engine, IRQ
// dispatch, and the bulk-copy protocol, all behind one lock.
type Kernel struct {
	core *kern.Kernel
}

// Message is the kernel's single inline IPC payload, aliased here so
// callers outside this module can name and construct it without reaching
// into internal/kern directly.
type Message = kern.Message

// MetricsSnapshot is a point-in-time copy of kernel-wide activity counters.
type MetricsSnapshot = kern.MetricsSnapshot

// Config configures a new Kernel. The zero Config is DefaultConfig.
type Config struct {
	Logger *logging.Logger

	// ArenaPages sizes the physical frame arena backing every address
	// space and the bulk-copy protocol. Zero means constants.ArenaPages.
	ArenaPages int
}

// DefaultConfig returns a Config with a default logger and arena size.
func DefaultConfig() *Config {
	return &Config{Logger: logging.Default(), ArenaPages: constants.ArenaPages}
}

// NewKernel builds a Kernel with an empty task table, ready for Boot.
func NewKernel(cfg *Config) *Kernel {
	var kc *kern.Config
	if cfg != nil {
		kc = &kern.Config{Logger: cfg.Logger, ArenaPages: cfg.ArenaPages}
	}
	return &Kernel{core: kern.NewKernel(kc)}
}

// Boot decodes image, creates the initial task (tid 1) with the image's
// entry point, and maps every segment into it. image's segments are taken
// to reference offsets within image itself:
// there is no separate payload blob in this simplified wire format, so the
// bytes the boot loader hands the kernel double as both header and backing
// store for non-zeroed segments.
func (k *Kernel) Boot(image []byte) error {
	img, err := bootimage.Decode(image)
	if err != nil {
		return NewError("Boot", abi.InvalidArg, err.Error())
	}

	_, code := k.core.Create(abi.InitTid, "init", uintptr(img.EntryPoint), 0, 0)
	if code != abi.OK {
		return codeErr("Boot", abi.InitTid, code)
	}
	init, _ := k.core.Lookup(abi.InitTid)

	for _, seg := range img.Segments {
		var data []byte
		if !seg.Zeroed {
			start := int(seg.Offset)
			end := start + int(seg.NumPages)*constants.PageSize
			if start > len(image) {
				start = len(image)
			}
			if end > len(image) {
				end = len(image)
			}
			if start < end {
				data = image[start:end]
			}
		}
		attrs := vm.Attrs{Writable: true, User: true, Executable: true}
		code := k.core.LoadSegment(init, uintptr(seg.Vaddr), int(seg.NumPages), data, seg.Zeroed, attrs)
		if code != abi.OK {
			return NewTaskError("Boot", abi.InitTid, code)
		}
	}

	return nil
}

// Spawn creates a new task at tid, pagered by pagerTid (syscall 1). For
// tid 1 (the initial task) pagerTid is ignored and the task gets no pager;
// unlike Boot, Spawn maps no image segments into it.
func (k *Kernel) Spawn(tid abi.Tid, name string, entry uintptr, pagerTid abi.Tid, flags uint32) error {
	_, code := k.core.Create(tid, name, entry, pagerTid, flags)
	return codeErr("Spawn", tid, code)
}

// Kill implements syscall 2: targetTid 0 means the caller exits itself
// (routed to its pager as an Exception, never returning to this call); a
// non-zero targetTid is destroyed outright, which only the initial task
// or the target's own pager may request.
func (k *Kernel) Kill(callerTid, targetTid abi.Tid) error {
	caller, code := k.core.Lookup(callerTid)
	if code != abi.OK {
		return codeErr("Kill", callerTid, code)
	}

	if targetTid == 0 || targetTid == callerTid {
		k.core.Exit(caller, abi.ExpGraceExit)
		return nil
	}

	target, code := k.core.Lookup(targetTid)
	if code != abi.OK {
		return codeErr("Kill", targetTid, code)
	}
	if callerTid != abi.InitTid && target.Pager != caller {
		return codeErr("Kill", targetTid, abi.NotPermitted)
	}
	return codeErr("Kill", targetTid, k.core.Destroy(target))
}

// SetAttrs implements syscall 3: it declares the caller's out-of-line bulk
// acceptance buffer (if bulkLen is non-zero) and rewrites its timeout
// countdown, returning the caller's own tid on success.
func (k *Kernel) SetAttrs(callerTid abi.Tid, bulkPtr uintptr, bulkLen uint32, timeoutMs int) (abi.Tid, error) {
	t, code := k.core.Lookup(callerTid)
	if code != abi.OK {
		return 0, codeErr("SetAttrs", callerTid, code)
	}
	if bulkLen != 0 {
		if bulkLen < constants.BulkBufferLen {
			return 0, codeErr("SetAttrs", callerTid, abi.TooSmall)
		}
		if code := k.core.AcceptBulk(t, bulkPtr, bulkLen); code != abi.OK {
			return 0, codeErr("SetAttrs", callerTid, code)
		}
	}
	k.core.SetTimeout(t, timeoutMs)
	return callerTid, nil
}

// Ipc implements syscall 4, the synchronous rendezvous engine. msg is read
// from for a Send phase and written to by a Recv phase.
func (k *Kernel) Ipc(callerTid, dst, srcFilter abi.Tid, msg *kern.Message, flags uint32) error {
	caller, code := k.core.Lookup(callerTid)
	if code != abi.OK {
		return codeErr("Ipc", callerTid, code)
	}
	code = k.core.Ipc(caller, dst, srcFilter, msg, flags)
	return codeErr("Ipc", callerTid, code)
}

// DoBulk implements the sender half of the bulk transfer protocol: it
// copies length bytes from addr in callerTid's space into dstTid's
// accepted buffer, blocking the calling goroutine if dstTid has not yet
// called AcceptBulk.
func (k *Kernel) DoBulk(callerTid, dstTid abi.Tid, addr uintptr, length uint32) error {
	caller, code := k.core.Lookup(callerTid)
	if code != abi.OK {
		return codeErr("DoBulk", callerTid, code)
	}
	code = k.core.DoBulk(caller, dstTid, addr, length)
	return codeErr("DoBulk", callerTid, code)
}

// AcceptBulk implements the receiver half of the bulk transfer protocol: it
// declares the buffer callerTid is ready to receive into, completing any
// DoBulk already queued against it.
func (k *Kernel) AcceptBulk(callerTid abi.Tid, addr uintptr, length uint32) error {
	t, code := k.core.Lookup(callerTid)
	if code != abi.OK {
		return codeErr("AcceptBulk", callerTid, code)
	}
	return codeErr("AcceptBulk", callerTid, k.core.AcceptBulk(t, addr, length))
}

// VerifyBulk confirms the last bulk transfer callerTid received matches
// (srcTid, id, length), atomically consuming it on success.
func (k *Kernel) VerifyBulk(callerTid, srcTid abi.Tid, id uintptr, length uint32) error {
	t, code := k.core.Lookup(callerTid)
	if code != abi.OK {
		return codeErr("VerifyBulk", callerTid, code)
	}
	return codeErr("VerifyBulk", callerTid, k.core.VerifyBulk(t, srcTid, id, length))
}

// ListenIrq implements syscall 5: listenerTid 0 unlistens irq.
func (k *Kernel) ListenIrq(listenerTid abi.Tid, irq int) error {
	if listenerTid == 0 {
		return codeErr("ListenIrq", 0, k.core.UnlistenIrq(irq))
	}
	t, code := k.core.Lookup(listenerTid)
	if code != abi.OK {
		return codeErr("ListenIrq", listenerTid, code)
	}
	return codeErr("ListenIrq", listenerTid, k.core.ListenIrq(t, irq))
}

// HandleIRQ notifies irq's owner, if any. Drive this from whatever stands
// in for an interrupt controller in a given build.
func (k *Kernel) HandleIRQ(irq int) {
	k.core.HandleIRQ(irq)
}

// Map implements syscall 9, the address-space mapping façade.
func (k *Kernel) Map(callerTid, dstTid abi.Tid, vaddr, srcVaddr, kpage uintptr, flags uint32) error {
	caller, code := k.core.Lookup(callerTid)
	if code != abi.OK {
		return codeErr("Map", callerTid, code)
	}
	code = k.core.Map(caller, dstTid, vaddr, srcVaddr, kpage, flags)
	return codeErr("Map", callerTid, code)
}

// WriteLog implements syscall 6: it appends data to the kernel's log ring,
// waking any task that called ReadLog with listen set.
func (k *Kernel) WriteLog(callerTid abi.Tid, data []byte) error {
	if _, code := k.core.Lookup(callerTid); code != abi.OK {
		return codeErr("WriteLog", callerTid, code)
	}
	return codeErr("WriteLog", callerTid, k.core.WriteLog(data))
}

// ReadLog implements syscall 7: it drains up to len(buf) bytes of log data
// into buf, returning how many bytes were copied. If listen is true,
// callerTid is registered to receive a NewData notification the next time
// WriteLog appends; otherwise any existing registration is cleared.
func (k *Kernel) ReadLog(callerTid abi.Tid, buf []byte, listen bool) (int, error) {
	t, code := k.core.Lookup(callerTid)
	if code != abi.OK {
		return 0, codeErr("ReadLog", callerTid, code)
	}
	return k.core.ReadLog(t, buf, listen), nil
}

// Kdebug implements syscall 8: it runs a built-in debug command against the
// kernel's live state, writing any output to the log ring for a later
// ReadLog to retrieve.
func (k *Kernel) Kdebug(callerTid abi.Tid, cmd string) error {
	if _, code := k.core.Lookup(callerTid); code != abi.OK {
		return codeErr("Kdebug", callerTid, code)
	}
	return codeErr("Kdebug", callerTid, k.core.Kdebug(cmd))
}

// Tick drives the scheduler's timer and preemption bookkeeping. Callers
// drive this from a time.Ticker (cmd/kerndemo) or directly in tests.
func (k *Kernel) Tick() {
	k.core.Tick()
}

// Metrics returns a snapshot of kernel-wide activity counters.
func (k *Kernel) Metrics() kern.MetricsSnapshot {
	return k.core.Metrics()
}

// TaskExists reports whether tid names a live task, a convenience for
// callers (cmd/kerndemo, tests) that want to poll state without triggering
// the NotFound error path every syscall wrapper otherwise returns.
func (k *Kernel) TaskExists(tid abi.Tid) bool {
	_, code := k.core.Lookup(tid)
	return code == abi.OK
}

