package main

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kolkov/lrcu/pkg/lrcu"
)

// payload is the demo's published value: a uuid label that gives each
// published generation a distinct identity, and a flag the destructor
// sets so the reader can detect a payload reclaimed under it.
type payload struct {
	label string
	freed bool
}

// handoffCommand runs S1: a single writer republishing payload under
// lrcu.DefaultNamespace while a single reader loops read_lock/deref/
// read_unlock, for the duration given by -duration.
func handoffCommand(args []string) {
	fs := newFlagSet("handoff")
	duration := fs.Duration("duration", 2*time.Second, "how long to run the handoff loop")
	_ = fs.Parse(args)

	en, err := lrcu.New(lrcu.DefaultConfig())
	if err != nil {
		fmt.Fprintln(os.Stderr, "lrcudemo:", err)
		os.Exit(1)
	}
	defer en.Shutdown()

	var shared lrcu.Ptr[payload]
	shared.Init(&payload{label: uuid.NewString()})

	var ctorCount, dtorCount atomic.Int64
	ctorCount.Add(1) // the initial value published by Init
	stop := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := en.ThreadInit(); err != nil {
			fmt.Fprintln(os.Stderr, "lrcudemo: reader ThreadInit:", err)
			return
		}
		defer en.ThreadDeinit()

		for {
			select {
			case <-stop:
				return
			default:
			}
			en.ReadLock(lrcu.DefaultNamespace)
			v := shared.Dereference()
			if v.freed {
				fmt.Fprintln(os.Stderr, "lrcudemo: reader observed a freed payload")
				os.Exit(1)
			}
			en.ReadUnlock(lrcu.DefaultNamespace)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := en.ThreadInit(); err != nil {
			fmt.Fprintln(os.Stderr, "lrcudemo: writer ThreadInit:", err)
			return
		}
		defer en.ThreadDeinit()

		for {
			select {
			case <-stop:
				return
			default:
			}
			next := &payload{label: uuid.NewString()}
			ctorCount.Add(1)

			en.WriteLock(lrcu.DefaultNamespace)
			old := shared.AssignPointer(next)
			en.WriteUnlock(lrcu.DefaultNamespace)

			en.Call(lrcu.DefaultNamespace, old, func(v any) {
				v.(*payload).freed = true
				dtorCount.Add(1)
			})
		}
	}()

	time.Sleep(*duration)
	close(stop)
	wg.Wait()

	if err := en.ThreadInit(); err == nil {
		en.Barrier(lrcu.DefaultNamespace)
		en.ThreadDeinit()
	}

	fmt.Printf("constructed: %d\n", ctorCount.Load())
	fmt.Printf("destructed:  %d\n", dtorCount.Load())
	fmt.Printf("live (never freed): %d\n", ctorCount.Load()-dtorCount.Load())
}
