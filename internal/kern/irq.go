package kern

import "github.com/gokern/gokern/internal/abi"

// notifyLocked ORs bits into target's pending notification bitset. If
// target is blocked on a receive with an Any filter — which is also the
// synthetic source notifications themselves carry — it is woken so it
// observes the bit on its next schedule. A task blocked waiting for a
// specific sender tid is left alone: it will see the notification the
// next time it issues a fresh receive, not this one.
func (k *Kernel) notifyLocked(target *TCB, bits uint32) {
	target.Notifications |= bits
	k.metrics.NotificationsRaised.Add(1)
	if target.State == Blocked && target.Src == abi.AnySrc {
		k.resumeLocked(target)
	}
}

// Notify posts bits to target directly, the IPC-flag-less entry point used
// internally and by Ipc's Notify flag.
func (k *Kernel) Notify(target *TCB, bits uint32) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.notifyLocked(target, bits)
}

// ListenIrq assigns t as the owner of irq, failing InvalidArg for an
// out-of-range line and AlreadyExists if it already has an owner.
func (k *Kernel) ListenIrq(t *TCB, irq int) abi.Code {
	k.mu.Lock()
	defer k.mu.Unlock()

	if irq < 0 || irq >= len(k.irqOwner) {
		return abi.InvalidArg
	}
	if k.irqOwner[irq] != nil {
		return abi.AlreadyExists
	}
	k.irqOwner[irq] = t
	t.Listening[irq] = true
	k.log.Info("irq listen", "irq", irq, "tid", int32(t.Tid))
	return abi.OK
}

// UnlistenIrq clears irq's owner, masking the line. It is a no-op if the
// line had no owner, and fails InvalidArg out of range.
func (k *Kernel) UnlistenIrq(irq int) abi.Code {
	k.mu.Lock()
	defer k.mu.Unlock()

	if irq < 0 || irq >= len(k.irqOwner) {
		return abi.InvalidArg
	}
	if owner := k.irqOwner[irq]; owner != nil {
		delete(owner.Listening, irq)
	}
	k.irqOwner[irq] = nil
	return abi.OK
}

// HandleIRQ delivers an Irq notification to irq's owner, if any. Callers
// drive this from whatever stands in for an interrupt controller in a
// given build; there is no real hardware IRQ source in this simulation.
func (k *Kernel) HandleIRQ(irq int) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if irq < 0 || irq >= len(k.irqOwner) {
		return
	}
	if owner := k.irqOwner[irq]; owner != nil {
		k.notifyLocked(owner, abi.NotifyIrq)
	}
}
