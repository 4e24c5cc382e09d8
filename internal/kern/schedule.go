package kern

import (
	"github.com/gokern/gokern/internal/abi"
	"github.com/gokern/gokern/internal/constants"
)

// scheduleLocked implements the round-robin scheduler: if the outgoing
// task is still Runnable and isn't idle, it goes to the runqueue tail;
// the new current is the runqueue head, or idle if empty.
//
// There is no literal architectural context switch to invoke: each
// simulated task is its own goroutine, already parked in suspendLocked's
// cond.Wait when it isn't current. scheduleLocked's job is purely the
// bookkeeping (who is "current", quantum reset, runq order) plus waking
// whichever goroutine that bookkeeping says should run, via Broadcast.
func (k *Kernel) scheduleLocked() {
	old := k.current
	if old != nil && old.State == Runnable && !old.isIdle() {
		k.runq = append(k.runq, old)
	}

	var next *TCB
	if len(k.runq) > 0 {
		next = k.runq[0]
		k.runq = k.runq[1:]
	} else {
		next = k.idle
	}

	next.Quantum = constants.TimeSliceTicks
	k.current = next
	k.metrics.ContextSwitches.Add(1)
	k.cond.Broadcast()
}

// suspendLocked parks the calling goroutine until t is no longer Blocked.
// Precondition: t.State == Blocked and t has already been removed from the
// runqueue (blockLocked does both). If t was current, a new current is
// picked first so forward progress continues.
func (k *Kernel) suspendLocked(t *TCB) {
	if t == k.current {
		k.scheduleLocked()
	}
	for t.State == Blocked {
		k.cond.Wait()
	}
}

// Tick drives the timer, handling preemption and timer notification.
// On every call it decrements every live task's timeout, firing a Timer
// notification at zero, then decrements current's quantum; at zero, or
// while idle is current, it reschedules. Callers drive this from a
// time.Ticker (cmd/kerndemo) or directly in tests — there is no real
// hardware timer interrupt in this simulation.
func (k *Kernel) Tick() {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.metrics.TimerTicks.Add(1)

	for _, t := range k.tasks {
		if t.State == Unused || t.Timeout <= 0 {
			continue
		}
		t.Timeout--
		if t.Timeout == 0 {
			k.notifyLocked(t, abi.NotifyTimer)
		}
	}

	if k.current != nil {
		k.current.Quantum--
		if k.current.Quantum <= 0 || k.current.isIdle() {
			k.scheduleLocked()
		}
	}
}
