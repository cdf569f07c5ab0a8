package main

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/kolkov/lrcu/pkg/lrcu"
)

// hungReaderCommand runs S2: one reader holds a read section open well
// past the engine's hang timeout while a writer keeps publishing and
// retiring further versions. It reports how many of those later
// versions were reclaimed despite the stalled reader, demonstrating
// that one hung goroutine does not block reclamation of everything
// after it.
func hungReaderCommand(args []string) {
	fs := newFlagSet("hung-reader")
	writes := fs.Int("writes", 20, "number of assign_pointer/call pairs the writer performs")
	hangTimeout := fs.Duration("hang-timeout", 200*time.Millisecond, "hang detection timeout for this run")
	_ = fs.Parse(args)

	cfg := lrcu.DefaultConfig()
	cfg.HangTimeout = *hangTimeout
	cfg.WorkerPeriod = cfg.HangTimeout / 10

	en, err := lrcu.New(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "lrcudemo:", err)
		os.Exit(1)
	}
	defer en.Shutdown()

	var shared lrcu.Ptr[payload]
	shared.Init(&payload{label: "v0"})

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		if err := en.ThreadInit(); err != nil {
			fmt.Fprintln(os.Stderr, "lrcudemo: reader ThreadInit:", err)
			return
		}
		defer en.ThreadDeinit()

		en.ReadLock(lrcu.DefaultNamespace)
		_ = shared.Dereference()
		time.Sleep(*hangTimeout * 5)
		en.ReadUnlock(lrcu.DefaultNamespace)
	}()

	time.Sleep(*hangTimeout / 2) // let the reader actually enter its section first

	var dtorCount atomic.Int64
	if err := en.ThreadInit(); err != nil {
		fmt.Fprintln(os.Stderr, "lrcudemo: writer ThreadInit:", err)
		os.Exit(1)
	}

	for i := 0; i < *writes; i++ {
		next := &payload{label: fmt.Sprintf("v%d", i+1)}
		en.WriteLock(lrcu.DefaultNamespace)
		old := shared.AssignPointer(next)
		en.WriteUnlock(lrcu.DefaultNamespace)

		en.Call(lrcu.DefaultNamespace, old, func(v any) {
			dtorCount.Add(1)
		})
		time.Sleep(cfg.WorkerPeriod * 2)
	}

	reclaimedWhileHung := dtorCount.Load()
	<-readerDone
	en.Barrier(lrcu.DefaultNamespace)
	en.ThreadDeinit()

	fmt.Printf("writes performed: %d\n", *writes)
	fmt.Printf("reclaimed before reader released: %d\n", reclaimedWhileHung)
	fmt.Printf("reclaimed total after release: %d\n", dtorCount.Load())
}
