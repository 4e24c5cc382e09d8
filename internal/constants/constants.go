// Package constants holds the kernel's tuning defaults: table sizes, the
// scheduler time slice, and the other numbers a systems build would get
// from a config header.
package constants

import "time"

// Static sizing. The task table and TCB pool are statically sized — no
// dynamic kernel memory allocation (spec Non-goal).
const (
	// NumTasks is the number of slots in the task table. tid ranges over
	// [1, NumTasks].
	NumTasks = 64

	// IRQMax is the number of interrupt lines the ownership table tracks.
	IRQMax = 64

	// TaskNameLen bounds the printable task name, NUL-padded like the
	// original CONFIG_TASK_NAME_LEN.
	TaskNameLen = 32

	// BulkBufferLen is the minimum out-of-line buffer size SetAttrs will
	// accept; smaller requests fail with TooSmall.
	BulkBufferLen = 4096

	// LogRingSize is the capacity, in bytes, of the in-kernel log buffer
	// behind WriteLog/ReadLog.
	LogRingSize = 16 * 1024

	// PageSize is the page granularity assumed by the address-space map
	// and the Map syscall's alignment checks.
	PageSize = 4096

	// ArenaPages is the default physical frame arena size: 4096 pages of
	// 4096 bytes each, 16MiB, enough for demo workloads without making
	// every test pay for a large mmap.
	ArenaPages = 4096
)

// TimeSliceTicks is the number of scheduler ticks a task runs before the
// timer forces a context switch.
const TimeSliceTicks = 10

// DefaultTickInterval is the wall-clock period a driver loop (cmd/kerndemo,
// or a test) should use when calling Kernel.Tick on a time.Ticker. The
// kernel itself has no notion of wall-clock time; this is a convenience
// default for callers that drive it from real time.
const DefaultTickInterval = 10 * time.Millisecond
