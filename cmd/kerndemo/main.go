package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"syscall"
	"time"

	"github.com/gokern/gokern/internal/abi"
	"github.com/gokern/gokern/internal/bootimage"
	"github.com/gokern/gokern/internal/logging"
	"github.com/gokern/gokern/kernel"
)

const (
	workerTid  = abi.Tid(2)
	workerTid2 = abi.Tid(3)
)

func main() {
	var (
		tickInterval = flag.Duration("tick", 10*time.Millisecond, "scheduler tick interval")
		verbose      = flag.Bool("v", false, "verbose output")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	k := kernel.NewKernel(&kernel.Config{Logger: logger})

	image := buildDemoImage()
	if err := k.Boot(image); err != nil {
		logger.Error("failed to boot kernel image", "error", err)
		os.Exit(1)
	}
	logger.Info("kernel booted", "init_tid", int32(abi.InitTid))

	pager := kernel.NewAutoReplyPager(k, abi.InitTid)
	defer pager.Stop()

	if err := k.Spawn(workerTid, "worker-a", 0, abi.InitTid, 0); err != nil {
		logger.Error("failed to spawn worker", "error", err)
		os.Exit(1)
	}
	if err := k.Spawn(workerTid2, "worker-b", 0, abi.InitTid, 0); err != nil {
		logger.Error("failed to spawn worker", "error", err)
		os.Exit(1)
	}
	logger.Info("workers spawned", "a", int32(workerTid), "b", int32(workerTid2))

	done := make(chan struct{})
	go runWorkers(k, logger, done)

	ticker := time.NewTicker(*tickInterval)
	defer ticker.Stop()

	fmt.Printf("kernel demo running, tick interval %s\n", *tickInterval)
	fmt.Printf("Press Ctrl+C to stop...\n")
	fmt.Printf("Send SIGUSR1 (kill -USR1 %d) to dump goroutine stacks\n", os.Getpid())

	stackDumpCh := make(chan os.Signal, 1)
	signal.Notify(stackDumpCh, syscall.SIGUSR1)
	go func() {
		for range stackDumpCh {
			buf := make([]byte, 1<<20)
			n := runtime.Stack(buf, true)
			fmt.Fprintf(os.Stderr, "\n=== GOROUTINE STACK DUMP ===\n%s\n", buf[:n])
			pprof.Lookup("goroutine").WriteTo(os.Stderr, 2)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			k.Tick()
		case <-done:
			printMetrics(logger, k)
			drainLog(k)
			return
		case <-sigCh:
			logger.Info("received shutdown signal")
			printMetrics(logger, k)
			drainLog(k)
			return
		}
	}
}

// runWorkers demonstrates a small IPC exchange and the bulk transfer
// protocol between the two spawned workers, then signals done.
func runWorkers(k *kernel.Kernel, logger *logging.Logger, done chan<- struct{}) {
	defer close(done)

	time.Sleep(20 * time.Millisecond) // short pause before the exchange; no worker is receiving yet

	recvDone := make(chan error, 1)
	var recv kernel.Message
	go func() {
		recvDone <- k.Ipc(workerTid2, 0, abi.AnySrc, &recv, abi.IPCRecv)
	}()
	time.Sleep(5 * time.Millisecond)

	send := kernel.Message{Value: 0xC0FFEE}
	if err := k.Ipc(workerTid, workerTid2, 0, &send, abi.IPCSend); err != nil {
		logger.Error("ipc send failed", "error", err)
		return
	}
	if err := <-recvDone; err != nil {
		logger.Error("ipc recv failed", "error", err)
		return
	}
	logger.Info("ipc round trip complete", "value", recv.Value)

	const bulkLen = 4096
	payload := make([]byte, bulkLen)
	for i := range payload {
		payload[i] = byte(i)
	}

	if err := k.MapFreshPage(workerTid, 0x400000, true); err != nil {
		logger.Error("failed to map bulk source page", "error", err)
		return
	}
	if err := k.MapFreshPage(workerTid2, 0x500000, true); err != nil {
		logger.Error("failed to map bulk dest page", "error", err)
		return
	}

	if err := k.AcceptBulk(workerTid2, 0x500000, bulkLen); err != nil {
		logger.Error("accept bulk failed", "error", err)
		return
	}
	if err := k.DoBulk(workerTid, workerTid2, 0x400000, bulkLen); err != nil {
		logger.Error("do bulk failed", "error", err)
		return
	}
	logger.Info("bulk transfer complete", "bytes", bulkLen)

	if err := k.Kdebug(abi.InitTid, "tasks"); err != nil {
		logger.Error("kdebug failed", "error", err)
	}
}

func printMetrics(logger *logging.Logger, k *kernel.Kernel) {
	m := k.Metrics()
	logger.Info("final metrics",
		"tasks_created", m.TasksCreated,
		"tasks_destroyed", m.TasksDestroyed,
		"exceptions", m.Exceptions,
		"notifications_raised", m.NotificationsRaised)
}

func drainLog(k *kernel.Kernel) {
	buf := make([]byte, 4096)
	n, err := k.ReadLog(abi.InitTid, buf, false)
	if err != nil || n == 0 {
		return
	}
	fmt.Printf("\n=== kernel log ===\n%s\n", buf[:n])
}

// buildDemoImage constructs a small synthetic boot image in place of a real
// bootloader handoff: one non-zeroed page standing in for init's code, one
// zeroed page standing in for its initial stack.
func buildDemoImage() []byte {
	img := &bootimage.Image{
		EntryPoint: 0x200000,
		Segments: []bootimage.Segment{
			{Vaddr: 0x200000, NumPages: 1, Zeroed: false},
			{Vaddr: 0x300000, NumPages: 1, Zeroed: true},
		},
	}
	header := img.Encode()
	img.Segments[0].Offset = uint64(len(header))
	header = img.Encode()

	code := make([]byte, 4096)
	copy(code, []byte("init task entry stub"))
	return append(header, code...)
}
