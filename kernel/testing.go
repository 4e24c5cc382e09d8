package kernel

import (
	"sync"

	"github.com/gokern/gokern/internal/abi"
	"github.com/gokern/gokern/internal/kern"
	"github.com/gokern/gokern/internal/vm"
)

// MapFreshPage maps one zero-filled page at vaddr into tid's address space,
// backed by a fresh arena frame. It exists for tests and demo pagers that
// want to satisfy a page fault without running the full Map syscall's
// caller-owns-the-source-frame dance — the kernel-internal analogue of how
// AutoReplyPager below stands in for a real pager.
func (k *Kernel) MapFreshPage(tid abi.Tid, vaddr uintptr, writable bool) error {
	t, code := k.core.Lookup(tid)
	if code != abi.OK {
		return codeErr("MapFreshPage", tid, code)
	}
	attrs := vm.Attrs{Writable: writable, User: true}
	code = k.core.LoadSegment(t, vaddr, 1, nil, true, attrs)
	return codeErr("MapFreshPage", tid, code)
}

// AutoReplyPager is a test double that plays the root pager role well
// enough for tests and demos that don't care about real paging policy: it
// answers every page fault with a fresh zero page and destroys every task
// that reports an exception, tracking how many of each it has handled.
//
// It is a minimal stand-in for a real implementation (here, a real pager
// with an actual eviction/backing-store policy) that still satisfies the
// real contract closely enough to drive the rest of the system under test.
type AutoReplyPager struct {
	k   *Kernel
	tid abi.Tid

	stop chan struct{}
	done chan struct{}

	mu         sync.Mutex
	pageFaults int
	exceptions int
}

// NewAutoReplyPager starts a pager loop on tid, which must already be a
// live task created with no pager of its own (e.g. the initial task).
func NewAutoReplyPager(k *Kernel, tid abi.Tid) *AutoReplyPager {
	p := &AutoReplyPager{
		k:    k,
		tid:  tid,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *AutoReplyPager) run() {
	defer close(p.done)
	for {
		select {
		case <-p.stop:
			return
		default:
		}

		var msg kern.Message
		if err := p.k.Ipc(p.tid, 0, abi.AnySrc, &msg, abi.IPCRecv); err != nil {
			return
		}

		switch msg.TypeID() {
		case abi.MsgPageFault:
			p.mu.Lock()
			p.pageFaults++
			p.mu.Unlock()
			_ = p.k.MapFreshPage(msg.Src, msg.Vaddr, true)
			var reply kern.Message
			_ = p.k.Ipc(p.tid, msg.Src, abi.DenySrc, &reply, abi.IPCSend)
		case abi.MsgException:
			p.mu.Lock()
			p.exceptions++
			p.mu.Unlock()
			_ = p.k.Kill(p.tid, msg.Src)
		}
	}
}

// Stop asks the pager loop to exit and waits for it to do so. If the loop
// is parked in a blocking receive, Stop wakes it with a self-notification
// before waiting — the same NewData-notify path a real client's Ipc(Notify)
// would take.
func (p *AutoReplyPager) Stop() {
	close(p.stop)
	var wake kern.Message
	_ = p.k.Ipc(p.tid, p.tid, 0, &wake, abi.IPCNotify)
	<-p.done
}

// PageFaultsServed reports how many page faults this pager has answered.
func (p *AutoReplyPager) PageFaultsServed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pageFaults
}

// ExceptionsServed reports how many exceptions this pager has handled by
// destroying the reporting task.
func (p *AutoReplyPager) ExceptionsServed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exceptions
}
