package kern

import (
	"github.com/gokern/gokern/internal/abi"
	"github.com/gokern/gokern/internal/bulk"
)

// AcceptBulk declares t's reception buffer. At most one outstanding
// acceptance per task; a second call before the first is consumed fails
// AlreadyExists. If a sender was already queued on t.BulkSenders, the
// oldest one is serviced immediately.
func (k *Kernel) AcceptBulk(t *TCB, addr uintptr, length uint32) abi.Code {
	k.mu.Lock()
	defer k.mu.Unlock()

	if t.BulkAccepted {
		return abi.AlreadyExists
	}
	t.BulkAccepted = true
	t.BulkAddr = addr
	t.BulkLen = length

	if len(t.BulkSenders) == 0 {
		return abi.OK
	}

	next := t.BulkSenders[0]
	t.BulkSenders = t.BulkSenders[1:]
	code := k.runBulkCopyLocked(next.Src, t, next.Addr, next.Len)
	next.Reply <- bulkResult{Code: code}
	return abi.OK
}

// DoBulk asks the pager to copy length bytes from addr in s's space into
// dst's acceptance buffer. If dst has not yet called AcceptBulk, s is
// queued on dst.BulkSenders and this call blocks until
// dst's eventual AcceptBulk completes the transfer, mirroring
// handle_ool_send's "memcpy the message, queue it, return DONT_REPLY" path
// where the syscall itself still only returns once the real reply lands.
func (k *Kernel) DoBulk(s *TCB, dstTid abi.Tid, addr uintptr, length uint32) abi.Code {
	k.mu.Lock()

	d, code := k.lookupLocked(dstTid)
	if code != abi.OK {
		k.mu.Unlock()
		return code
	}

	if !d.BulkAccepted {
		reply := make(chan bulkResult, 1)
		d.BulkSenders = append(d.BulkSenders, bulkSend{Src: s, Addr: addr, Len: length, Reply: reply})
		k.mu.Unlock()
		// The transfer completes out-of-band once the acceptance arrives;
		// the caller's syscall still blocks until that eventual reply, so
		// the simulated caller goroutine waits on the channel rather than
		// observing DontReply itself.
		result := <-reply
		return result.Code
	}

	code = k.runBulkCopyLocked(s, d, addr, length)
	k.mu.Unlock()
	return code
}

// runBulkCopyLocked performs the actual cross-space memcpy and updates d's
// "last received" trio, truncating to at most d.BulkLen bytes if the
// destination's accepted buffer is shorter than length. Must be called
// with k.mu held; it releases nothing, matching CopyPages being a pure,
// non-blocking function over already-resolved address spaces.
func (k *Kernel) runBulkCopyLocked(s, d *TCB, addr uintptr, length uint32) abi.Code {
	if k.arena == nil {
		return abi.NoMemory
	}

	n := length
	if d.BulkLen < n {
		n = d.BulkLen
	}

	copied, srcFault, dstFault := bulk.CopyPages(k.arena, s.Vm, d.Vm, addr, d.BulkAddr, n)
	if srcFault {
		k.exitLocked(s, abi.ExpInvalidMemoryAccess)
		return abi.DontReply
	}
	if dstFault {
		k.exitLocked(d, abi.ExpInvalidMemoryAccess)
		return abi.Unavailable
	}

	d.BulkReceivedFrom = s.Tid
	d.BulkReceivedBuf = d.BulkAddr
	d.BulkReceivedLen = copied
	d.BulkAccepted = false
	d.BulkAddr = 0
	d.BulkLen = 0

	k.metrics.BulkBytesCopied.Add(uint64(copied))
	return abi.OK
}

// VerifyBulk confirms the receiver's last-completed transfer matches
// (src, id, len) and atomically consumes it. id is the accepted buffer
// address, not a separately allocated handle — there is no other notion
// of transfer identity.
func (k *Kernel) VerifyBulk(t *TCB, src abi.Tid, id uintptr, length uint32) abi.Code {
	k.mu.Lock()
	defer k.mu.Unlock()

	if t.BulkReceivedFrom != src || t.BulkReceivedBuf != id || t.BulkReceivedLen != length {
		return abi.NotAcceptable
	}

	t.BulkReceivedFrom = 0
	t.BulkReceivedBuf = 0
	t.BulkReceivedLen = 0
	return abi.OK
}
