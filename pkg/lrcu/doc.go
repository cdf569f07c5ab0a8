// Package lrcu provides a lazy read-copy-update reclamation engine: a
// lock-free mechanism for publishing updates to shared pointers while
// readers keep running against whichever version they last observed,
// and for deferring destruction of superseded versions until no reader
// can still reach them.
//
// # Quick Start
//
//	en, err := lrcu.New(lrcu.DefaultConfig())
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer en.Shutdown()
//
//	if err := en.ThreadInit(); err != nil {
//		log.Fatal(err)
//	}
//	defer en.ThreadDeinit()
//
//	var p lrcu.Ptr[Config]
//	p.Init(&Config{Timeout: time.Second})
//
//	// Reader:
//	en.ReadLock(lrcu.DefaultNamespace)
//	cfg := p.Dereference()
//	_ = cfg.Timeout
//	en.ReadUnlock(lrcu.DefaultNamespace)
//
//	// Writer:
//	en.WriteLock(lrcu.DefaultNamespace)
//	old := p.AssignPointer(&Config{Timeout: 2 * time.Second})
//	en.WriteUnlock(lrcu.DefaultNamespace)
//	en.Call(lrcu.DefaultNamespace, old, func(v any) { _ = v.(*Config) })
//
// # API Overview
//
// The package provides functions for:
//   - Lifecycle: [New], [Engine.Shutdown]
//   - Namespace management: [Engine.NamespaceInit], [Engine.NamespaceDeinit], [Engine.NamespaceDeinitSafe]
//   - Thread registration: [Engine.ThreadInit], [Engine.ThreadDeinit], [Engine.ThreadJoinNamespace], [Engine.ThreadLeaveNamespace]
//   - Read sections: [Engine.ReadLock], [Engine.ReadUnlock]
//   - Write sections: [Engine.WriteLock], [Engine.WriteUnlock]
//   - Deferred reclamation: [Engine.Call], [Engine.CallHead]
//   - Waiting for reclamation: [Engine.Synchronize], [Engine.Barrier]
//   - Typed published pointers: [Ptr]
//
// # How It Works
//
// Each namespace is an independent epoch domain with its own version
// counter. A read section captures the namespace's current version on
// entry; a write section bumps it. A background worker periodically
// scans every registered reader, computes the set of versions still
// reachable, and runs the destructors of any retired value whose
// version has fallen out of that set. A reader that holds a read
// section open without making progress for longer than the configured
// hang timeout is classified as hung and excluded from blocking further
// reclamation, so one stuck goroutine does not leak memory for the rest
// of the program's lifetime.
//
// Unlike Go's built-in garbage collector, which an ordinary atomic
// pointer swap already works safely against, the point of this package
// is to make the *moment of destruction* deterministic and
// caller-controlled: destructors run on a dedicated worker, at a known
// cadence, rather than whenever the garbage collector happens to visit
// the object.
package lrcu
