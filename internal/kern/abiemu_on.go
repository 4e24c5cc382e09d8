//go:build abiemu

package kern

import "github.com/gokern/gokern/internal/abi"

const abiEmuCompiledIn = true

// AbiHook reuses the synchronous IPC path with the Kernel flag to splice a
// trap frame through t's pager and back (the ABI emulation hook):
// before returning to user mode after a trap, the pager gets a chance to
// rewrite the frame. t blocks until the pager replies with an
// MsgAbiHookReply; any other reply type kills t with InvalidMsgFromPager.
func (k *Kernel) AbiHook(t *TCB, trapFrame []byte) ([]byte, abi.Code) {
	k.mu.Lock()
	defer k.mu.Unlock()

	pager := t.Pager
	if pager == nil {
		return nil, abi.NotPermitted
	}

	msg := Message{
		Type: uint32(abi.MsgAbiHook) | abi.MsgHasString,
		Str:  string(trapFrame),
	}

	t.Src = pager.Tid
	k.blockLocked(t)
	k.deliverKernelMessageLocked(pager, t, msg)
	k.suspendLocked(t)

	if t.Notifications&abi.NotifyAborted != 0 {
		t.Notifications &^= abi.NotifyAborted
		k.exitLocked(t, abi.ExpAbortedKernelIPC)
		return nil, abi.Aborted
	}

	if t.M.TypeID() != abi.MsgAbiHookReply {
		k.exitLocked(t, abi.ExpInvalidMsgFromPager)
		return nil, abi.InvalidArg
	}

	return []byte(t.M.Str), abi.OK
}
