package kern

import (
	"fmt"

	"github.com/gokern/gokern/internal/abi"
)

// WriteLog appends data to the kernel's log ring, waking anyone who asked
// to be notified of new data.
func (k *Kernel) WriteLog(data []byte) abi.Code {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.writeLogLocked(data)
	return abi.OK
}

func (k *Kernel) writeLogLocked(data []byte) {
	k.klog.write(data)
	for listener := range k.klog.listeners {
		k.notifyLocked(listener, abi.NotifyNewData)
	}
}

// ReadLog drains up to len(buf) bytes from the log ring into buf, returning
// how many were copied (syscall 7). If listen is true, t is registered to
// receive a NewData notification the next time WriteLog appends;
// otherwise any existing registration for t is cleared.
func (k *Kernel) ReadLog(t *TCB, buf []byte, listen bool) int {
	k.mu.Lock()
	defer k.mu.Unlock()

	n := k.klog.read(buf)
	if listen {
		k.klog.listen(t)
	} else {
		k.klog.unlisten(t)
	}
	return n
}

// Kdebug runs a small built-in debug command against the kernel's live
// state, writing its output to the log ring (syscall 8). It understands
// a fixed handful of introspection commands rather than a general-purpose
// command language; anything else is InvalidArg.
func (k *Kernel) Kdebug(cmd string) abi.Code {
	k.mu.Lock()
	defer k.mu.Unlock()

	switch cmd {
	case "tasks":
		for _, task := range k.tasks {
			if task.State == Unused {
				continue
			}
			k.writeLogLocked([]byte(fmt.Sprintf("tid=%d name=%q state=%s\n", task.Tid, task.Name, task.State)))
		}
	case "metrics":
		snap := k.metrics.Snapshot()
		k.writeLogLocked([]byte(fmt.Sprintf("%+v\n", snap)))
	default:
		return abi.InvalidArg
	}
	return abi.OK
}
