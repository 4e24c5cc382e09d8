package kern

import (
	"github.com/gokern/gokern/internal/abi"
	"github.com/gokern/gokern/internal/constants"
)

// Ipc is the single synchronous-rendezvous entry point. msg
// is the caller's inline message slot: read from for a Send phase, written
// to by a Recv phase. flags is any combination of Send, Recv, NoBlock,
// Notify, Bulk; Notify is exclusive with Send|Recv. The Kernel flag is
// rejected here unconditionally — user callers can never reach this
// path with it set; kernel-originated IPC (page faults, exceptions, ABI
// hooks) goes through deliverKernelMessageLocked instead, which never
// validates against user input.
func (k *Kernel) Ipc(caller *TCB, dst, srcFilter abi.Tid, msg *Message, flags uint32) abi.Code {
	if flags&abi.IPCKernel != 0 {
		return abi.InvalidArg
	}
	if srcFilter < abi.DenySrc || int(srcFilter) > constants.NumTasks {
		return abi.InvalidArg
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if flags&abi.IPCNotify != 0 {
		target, code := k.lookupLocked(dst)
		if code != abi.OK {
			return code
		}
		k.notifyLocked(target, abi.NotifyNewData)
		return abi.OK
	}

	code := abi.OK
	if flags&abi.IPCSend != 0 {
		code = k.sendPhaseLocked(caller, dst, msg, flags)
		if code != abi.OK {
			return code
		}
	}
	if flags&abi.IPCRecv != 0 {
		code = k.recvPhaseLocked(caller, srcFilter, msg, flags)
	}
	return code
}

func acceptsSender(filter, tid abi.Tid) bool {
	return filter == abi.AnySrc || filter == tid
}

func (k *Kernel) sendPhaseLocked(s *TCB, dstTid abi.Tid, msg *Message, flags uint32) abi.Code {
	d, code := k.lookupLocked(dstTid)
	if code != abi.OK {
		return code
	}

	if d.State == Blocked && acceptsSender(d.Src, s.Tid) {
		d.M = *msg
		d.M.Src = s.Tid
		d.Src = abi.DenySrc
		k.resumeLocked(d)
		k.metrics.IpcSends.Add(1)
		return abi.OK
	}

	if flags&abi.IPCNoBlock != 0 {
		return abi.WouldBlock
	}

	s.M = *msg
	d.Senders = append(d.Senders, s)
	k.blockLocked(s)
	k.metrics.IpcBlocks.Add(1)
	k.suspendLocked(s)

	if s.Notifications&abi.NotifyAborted != 0 {
		s.Notifications &^= abi.NotifyAborted
		k.metrics.IpcAborts.Add(1)
		return abi.Aborted
	}
	k.metrics.IpcSends.Add(1)
	return abi.OK
}

func (k *Kernel) recvPhaseLocked(r *TCB, srcFilter abi.Tid, msg *Message, flags uint32) abi.Code {
	if r.Notifications != 0 {
		bits := r.Notifications
		r.Notifications = 0
		*msg = notificationsMessage(bits)
		k.metrics.NotificationsDrained.Add(1)
		return abi.OK
	}

	if i, ok := k.findSenderLocked(r, srcFilter); ok {
		sender := r.Senders[i]
		*msg = sender.M
		if sender.KernelOrigin {
			msg.Src = abi.KernelTid
			sender.KernelOrigin = false
		} else {
			msg.Src = sender.Tid
		}
		r.Senders = append(r.Senders[:i], r.Senders[i+1:]...)
		k.resumeLocked(sender)
		k.metrics.IpcReceives.Add(1)
		return abi.OK
	}

	if flags&abi.IPCNoBlock != 0 {
		return abi.WouldBlock
	}

	r.Src = srcFilter
	k.blockLocked(r)
	k.metrics.IpcBlocks.Add(1)
	k.suspendLocked(r)
	r.Src = abi.DenySrc

	// r can wake up two ways: a sender matched and wrote r.M directly
	// (the send-phase's first step), or notify() posted a bit while r
	// was blocked with an Any filter. Notifications still take priority
	// over whatever landed in r.M, exactly as they do on the path that
	// never blocked at all.
	if r.Notifications != 0 {
		bits := r.Notifications
		r.Notifications = 0
		*msg = notificationsMessage(bits)
		k.metrics.NotificationsDrained.Add(1)
		return abi.OK
	}

	*msg = r.M
	k.metrics.IpcReceives.Add(1)
	return abi.OK
}

// findSenderLocked returns the index of the oldest queued sender on r
// matching srcFilter, preserving FIFO order (the ordering
// guarantees).
func (k *Kernel) findSenderLocked(r *TCB, srcFilter abi.Tid) (int, bool) {
	for i, sender := range r.Senders {
		if acceptsSender(srcFilter, sender.Tid) {
			return i, true
		}
	}
	return 0, false
}
