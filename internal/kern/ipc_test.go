package kern

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gokern/gokern/internal/abi"
)

// TestIpc_SendBeforeReceive covers the case where A sends to B
// before B ever calls Recv, so the send blocks on B's senders queue, and
// only completes once B receives.
func TestIpc_SendBeforeReceive(t *testing.T) {
	k, a, b, _ := newTestKernel(t)

	var sendCode abi.Code
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		msg := Message{Type: 100, Value: 7}
		sendCode = k.Ipc(a, b.Tid, 0, &msg, abi.IPCSend)
	}()

	waitUntil(t, k, func() bool {
		return len(b.Senders) == 1
	})

	var recvMsg Message
	code := k.Ipc(b, 0, abi.AnySrc, &recvMsg, abi.IPCRecv)
	require.Equal(t, abi.OK, code)
	require.Equal(t, uint16(100), recvMsg.TypeID())
	require.EqualValues(t, 7, recvMsg.Value)
	require.Equal(t, a.Tid, recvMsg.Src)

	wg.Wait()
	require.Equal(t, abi.OK, sendCode)
	waitUntil(t, k, func() bool { return a.State == Runnable })
}

// TestIpc_ReceiveBeforeSend covers the case where B blocks on a
// Recv first; A's later send finds B already waiting and delivers
// directly, bypassing the senders queue entirely.
func TestIpc_ReceiveBeforeSend(t *testing.T) {
	k, a, b, _ := newTestKernel(t)

	var recvMsg Message
	var recvCode abi.Code
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		recvCode = k.Ipc(b, 0, abi.AnySrc, &recvMsg, abi.IPCRecv)
	}()

	waitUntil(t, k, func() bool {
		return b.State == Blocked && b.Src == abi.AnySrc
	})

	msg := Message{Type: 200, Value: 42}
	code := k.Ipc(a, b.Tid, 0, &msg, abi.IPCSend)
	require.Equal(t, abi.OK, code)

	wg.Wait()
	require.Equal(t, abi.OK, recvCode)
	require.Equal(t, uint16(200), recvMsg.TypeID())
	require.EqualValues(t, 42, recvMsg.Value)
	require.Equal(t, a.Tid, recvMsg.Src)
	require.Empty(t, b.Senders)
}

// TestIpc_FIFOAmongSenders covers the case where A and C both
// queue as senders on B, B's receives observe them in arrival order.
func TestIpc_FIFOAmongSenders(t *testing.T) {
	k, a, b, c := newTestKernel(t)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		msg := Message{Type: 1, Value: 1}
		k.Ipc(a, b.Tid, 0, &msg, abi.IPCSend)
	}()
	waitUntil(t, k, func() bool { return len(b.Senders) == 1 })

	go func() {
		defer wg.Done()
		msg := Message{Type: 2, Value: 2}
		k.Ipc(c, b.Tid, 0, &msg, abi.IPCSend)
	}()
	waitUntil(t, k, func() bool { return len(b.Senders) == 2 })

	var first, second Message
	require.Equal(t, abi.OK, k.Ipc(b, 0, abi.AnySrc, &first, abi.IPCRecv))
	require.Equal(t, a.Tid, first.Src)

	require.Equal(t, abi.OK, k.Ipc(b, 0, abi.AnySrc, &second, abi.IPCRecv))
	require.Equal(t, c.Tid, second.Src)

	wg.Wait()
}

// TestDestinationDeathAbortsSenders covers the case where A blocks
// sending to B; B is destroyed before ever receiving; A's send returns
// Aborted rather than hanging forever.
func TestDestinationDeathAbortsSenders(t *testing.T) {
	k, a, b, _ := newTestKernel(t)

	var sendCode abi.Code
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		msg := Message{Type: 1}
		sendCode = k.Ipc(a, b.Tid, 0, &msg, abi.IPCSend)
	}()

	waitUntil(t, k, func() bool { return len(b.Senders) == 1 })

	require.Equal(t, abi.OK, k.Destroy(b))

	wg.Wait()
	require.Equal(t, abi.Aborted, sendCode)
}

// TestTimerNotification covers a task with a pending
// timeout, blocked on an open receive with no senders, observes a synthetic
// Notifications message carrying Timer once the timeout reaches zero, and
// the bit is cleared on delivery.
func TestTimerNotification(t *testing.T) {
	k, a, _, _ := newTestKernel(t)

	a.Timeout = 3

	var recvMsg Message
	var recvCode abi.Code
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		recvCode = k.Ipc(a, 0, abi.AnySrc, &recvMsg, abi.IPCRecv)
	}()

	waitUntil(t, k, func() bool { return a.State == Blocked && a.Src == abi.AnySrc })

	k.Tick()
	k.Tick()
	require.Equal(t, Blocked, a.State)

	k.Tick()

	wg.Wait()
	require.Equal(t, abi.OK, recvCode)
	require.Equal(t, uint16(abi.MsgNotifications), recvMsg.TypeID())
	require.Equal(t, abi.NotifyTimer, recvMsg.Notifications)

	k.mu.Lock()
	notifications := a.Notifications
	k.mu.Unlock()
	require.Zero(t, notifications)
}

// TestIrqOwnership covers the case where a second listen on an
// already-owned line fails, and the line becomes available again once its
// owner is destroyed.
func TestIrqOwnership(t *testing.T) {
	k, a, b, _ := newTestKernel(t)

	require.Equal(t, abi.OK, k.ListenIrq(a, 5))
	require.Equal(t, abi.AlreadyExists, k.ListenIrq(b, 5))

	require.Equal(t, abi.OK, k.Destroy(a))
	require.Equal(t, abi.OK, k.ListenIrq(b, 5))
}

func TestIpc_SendNoBlockToNonReceivingDest(t *testing.T) {
	k, a, b, _ := newTestKernel(t)

	msg := Message{Type: 1}
	code := k.Ipc(a, b.Tid, 0, &msg, abi.IPCSend|abi.IPCNoBlock)
	require.Equal(t, abi.WouldBlock, code)
}

func TestIpc_RecvNoBlockEmpty(t *testing.T) {
	k, _, b, _ := newTestKernel(t)

	var msg Message
	code := k.Ipc(b, 0, abi.AnySrc, &msg, abi.IPCRecv|abi.IPCNoBlock)
	require.Equal(t, abi.WouldBlock, code)
}

func TestIpc_RejectsKernelFlagFromCaller(t *testing.T) {
	k, a, b, _ := newTestKernel(t)

	msg := Message{Type: 1}
	code := k.Ipc(a, b.Tid, 0, &msg, abi.IPCSend|abi.IPCKernel)
	require.Equal(t, abi.InvalidArg, code)
}

func TestIpc_RejectsOutOfRangeSrcFilter(t *testing.T) {
	k, _, b, _ := newTestKernel(t)

	var msg Message
	code := k.Ipc(b, 0, abi.Tid(-2), &msg, abi.IPCRecv)
	require.Equal(t, abi.InvalidArg, code)

	code = k.Ipc(b, 0, abi.Tid(1000), &msg, abi.IPCRecv)
	require.Equal(t, abi.InvalidArg, code)
}

func TestIpc_NotifyFlagPostsNewData(t *testing.T) {
	k, a, b, _ := newTestKernel(t)

	code := k.Ipc(a, b.Tid, 0, &Message{}, abi.IPCNotify)
	require.Equal(t, abi.OK, code)

	k.mu.Lock()
	bits := b.Notifications
	k.mu.Unlock()
	require.Equal(t, abi.NotifyNewData, bits)
}
