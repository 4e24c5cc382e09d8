//go:build !abiemu

package kern

import "github.com/gokern/gokern/internal/abi"

// abiEmuCompiledIn is false in the default build: ABI emulation
// is an optional feature, compiled in only under the abiemu build tag,
// following a CONFIG_ABI_EMU / giouring-style build-tag split.
const abiEmuCompiledIn = false

// AbiHook is unavailable in this build. Create already rejects
// abi.TaskABIEmu on a non-abiemu build with Unavailable; this stub exists
// so callers that somehow still reach the hook path (a task flagged before
// this build was switched) fail the same way rather than panicking.
func (k *Kernel) AbiHook(t *TCB, trapFrame []byte) ([]byte, abi.Code) {
	return nil, abi.Unavailable
}
