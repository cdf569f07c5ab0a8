package engine

import "time"

// MaxNamespaces is the hard upper bound on namespace ids (NS_MAX ≤ 256
// in SPEC_FULL.md §6); ids are stored in a uint8 so this can never be
// exceeded by construction.
const MaxNamespaces = 256

// Config holds the engine's compile-time tunables from SPEC_FULL.md §6,
// expressed as runtime configuration the way the teacher's
// DetectorOptions does for the race detector: a plain struct of
// defaults, passed once to New, with the zero value meaning "use
// DefaultConfig".
type Config struct {
	// ThreadsMax bounds the number of simultaneously registered threads
	// per namespace, which in turn bounds the range set's capacity.
	// Default 128.
	ThreadsMax int

	// WorkerPeriod is the reclamation worker's pass period. Default 50µs.
	WorkerPeriod time.Duration

	// SyncPollInterval is the poll granularity Synchronize and Barrier
	// use while waiting. Default 100µs.
	SyncPollInterval time.Duration

	// HangTimeout is the duration a reader may hold a read section with
	// an unchanged snapshot before the worker classifies it as hung.
	// Default 600s, per the compile-time configuration table; the narrative
	// walkthrough in the range-computation algorithm uses 60s as an
	// illustrative example, but the table is the binding default.
	HangTimeout time.Duration
}

// DefaultConfig returns the tunables from SPEC_FULL.md §6.
func DefaultConfig() Config {
	return Config{
		ThreadsMax:       128,
		WorkerPeriod:     50 * time.Microsecond,
		SyncPollInterval: 100 * time.Microsecond,
		HangTimeout:      600 * time.Second,
	}
}

// withDefaults fills any zero-valued field with its DefaultConfig
// counterpart.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ThreadsMax <= 0 {
		c.ThreadsMax = d.ThreadsMax
	}
	if c.WorkerPeriod <= 0 {
		c.WorkerPeriod = d.WorkerPeriod
	}
	if c.SyncPollInterval <= 0 {
		c.SyncPollInterval = d.SyncPollInterval
	}
	if c.HangTimeout <= 0 {
		c.HangTimeout = d.HangTimeout
	}
	return c
}
