package kern

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gokern/gokern/internal/abi"
)

// newTestKernel builds a kernel with the initial task (tid 1) plus tasks
// A(2), B(3), C(4), all pagered by the initial task, for the scenario
// tests below.
func newTestKernel(t *testing.T) (k *Kernel, a, b, c *TCB) {
	t.Helper()
	k = NewKernel(nil)

	_, code := k.Create(abi.InitTid, "init", 0, 0, 0)
	require.Equal(t, abi.OK, code)

	a, code = k.Create(2, "a", 0, abi.InitTid, 0)
	require.Equal(t, abi.OK, code)
	b, code = k.Create(3, "b", 0, abi.InitTid, 0)
	require.Equal(t, abi.OK, code)
	c, code = k.Create(4, "c", 0, abi.InitTid, 0)
	require.Equal(t, abi.OK, code)
	return k, a, b, c
}

// waitUntil polls pred (called under the kernel lock) until it is true or
// the deadline passes, failing the test on timeout. Goroutine-driven
// blocking IPC calls need this to observe "task X is now queued/blocked"
// from the test goroutine before proceeding.
func waitUntil(t *testing.T, k *Kernel, pred func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		k.mu.Lock()
		ok := pred()
		k.mu.Unlock()
		if ok {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("waitUntil: condition never became true")
}

func TestCreateDestroyRoundTrip(t *testing.T) {
	k, a, _, _ := newTestKernel(t)

	require.Equal(t, Runnable, a.State)
	require.Equal(t, abi.OK, k.Destroy(a))
	require.Equal(t, Unused, a.State)
}

func TestCreateRejectsOccupiedSlot(t *testing.T) {
	k, a, _, _ := newTestKernel(t)
	_, code := k.Create(a.Tid, "dup", 0, abi.InitTid, 0)
	require.Equal(t, abi.AlreadyExists, code)
}

func TestDestroyRefusesWithRefCount(t *testing.T) {
	k, _, _, _ := newTestKernel(t)
	init, code := k.Lookup(abi.InitTid)
	require.Equal(t, abi.OK, code)
	// init is pager for a, b, c: RefCount == 3.
	require.Equal(t, abi.InUse, k.Destroy(init))
}

func TestLookupRejectsUnusedAndOutOfRange(t *testing.T) {
	k, _, _, _ := newTestKernel(t)

	_, code := k.Lookup(10)
	require.Equal(t, abi.NotFound, code)

	_, code = k.Lookup(0)
	require.Equal(t, abi.InvalidArg, code)

	_, code = k.Lookup(1000)
	require.Equal(t, abi.InvalidArg, code)
}
