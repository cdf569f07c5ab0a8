package main

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/kolkov/lrcu/pkg/lrcu"
)

// isolationCommand runs S5: two independent namespaces, where a reader
// parked indefinitely in namespace 1 must never delay reclamation of
// values retired in namespace 0.
func isolationCommand(args []string) {
	fs := newFlagSet("isolation")
	sleep := fs.Duration("sleep", time.Second, "how long the namespace-1 reader sleeps inside its read section")
	_ = fs.Parse(args)

	en, err := lrcu.New(lrcu.DefaultConfig())
	if err != nil {
		fmt.Fprintln(os.Stderr, "lrcudemo:", err)
		os.Exit(1)
	}
	defer en.Shutdown()

	const nsA, nsB uint8 = lrcu.DefaultNamespace, 1
	if err := en.NamespaceInit(nsB); err != nil {
		fmt.Fprintln(os.Stderr, "lrcudemo:", err)
		os.Exit(1)
	}

	if err := en.ThreadInit(); err != nil {
		fmt.Fprintln(os.Stderr, "lrcudemo:", err)
		os.Exit(1)
	}
	defer en.ThreadDeinit()
	if err := en.ThreadJoinNamespace(nsB); err != nil {
		fmt.Fprintln(os.Stderr, "lrcudemo:", err)
		os.Exit(1)
	}

	en.ReadLock(nsB)
	fmt.Printf("namespace %d: reader entered, will sleep %s\n", nsB, *sleep)

	var dtorCount atomic.Int64
	old := &payload{label: "a0"}
	next := &payload{label: "a1"}
	en.WriteLock(nsA)
	_ = old
	_ = next
	en.WriteUnlock(nsA)
	en.Call(nsA, old, func(v any) { dtorCount.Add(1) })

	if err := en.Barrier(nsA); err != nil {
		fmt.Fprintln(os.Stderr, "lrcudemo:", err)
	}
	fmt.Printf("namespace %d: barrier returned while namespace %d reader still sleeping, reclaimed=%d\n",
		nsA, nsB, dtorCount.Load())

	time.Sleep(*sleep)
	en.ReadUnlock(nsB)
	fmt.Printf("namespace %d: reader released\n", nsB)
}
