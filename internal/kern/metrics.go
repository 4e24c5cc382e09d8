package kern

import "sync/atomic"

// Metrics tracks kernel-core activity counters with an atomic-counter +
// Snapshot shape, covering task and IPC lifecycle events.
type Metrics struct {
	ContextSwitches      atomic.Uint64
	TasksCreated         atomic.Uint64
	TasksDestroyed       atomic.Uint64
	IpcSends             atomic.Uint64
	IpcReceives          atomic.Uint64
	IpcBlocks            atomic.Uint64
	IpcAborts            atomic.Uint64
	NotificationsRaised  atomic.Uint64
	NotificationsDrained atomic.Uint64
	PageFaults           atomic.Uint64
	Exceptions           atomic.Uint64
	BulkBytesCopied      atomic.Uint64
	TimerTicks           atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of Metrics, safe to hand to a
// caller without further synchronization.
type MetricsSnapshot struct {
	ContextSwitches      uint64
	TasksCreated         uint64
	TasksDestroyed       uint64
	IpcSends             uint64
	IpcReceives          uint64
	IpcBlocks            uint64
	IpcAborts            uint64
	NotificationsRaised  uint64
	NotificationsDrained uint64
	PageFaults           uint64
	Exceptions           uint64
	BulkBytesCopied      uint64
	TimerTicks           uint64
}

// Snapshot returns a consistent-enough point-in-time copy of m. Individual
// counters are read independently;
// there is no cross-counter atomicity guarantee, which is fine for
// monitoring counters that only ever increase.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		ContextSwitches:      m.ContextSwitches.Load(),
		TasksCreated:         m.TasksCreated.Load(),
		TasksDestroyed:       m.TasksDestroyed.Load(),
		IpcSends:             m.IpcSends.Load(),
		IpcReceives:          m.IpcReceives.Load(),
		IpcBlocks:            m.IpcBlocks.Load(),
		IpcAborts:            m.IpcAborts.Load(),
		NotificationsRaised:  m.NotificationsRaised.Load(),
		NotificationsDrained: m.NotificationsDrained.Load(),
		PageFaults:           m.PageFaults.Load(),
		Exceptions:           m.Exceptions.Load(),
		BulkBytesCopied:      m.BulkBytesCopied.Load(),
		TimerTicks:           m.TimerTicks.Load(),
	}
}
