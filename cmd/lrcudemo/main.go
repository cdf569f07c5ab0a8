// Command lrcudemo drives the lazy read-copy-update reclamation engine
// through the handoff, hung-reader and isolation scenarios listed below,
// printing the counters each scenario reports so the engine's
// behavior can be observed outside of a test binary.
//
// Usage:
//
//	lrcudemo handoff       # single-writer/single-reader churn, S1
//	lrcudemo hung-reader    # bounded reclamation past a hung reader, S2
//	lrcudemo isolation      # two namespaces, one sleeping reader, S5
//	lrcudemo version
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "handoff":
		handoffCommand(args)
	case "hung-reader":
		hungReaderCommand(args)
	case "isolation":
		isolationCommand(args)
	case "version", "--version", "-v":
		fmt.Printf("lrcudemo version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`lrcudemo - lazy RCU reclamation engine demos

USAGE:
    lrcudemo <command> [flags]

COMMANDS:
    handoff       single-writer/single-reader churn (S1)
    hung-reader   bounded reclamation with one stalled reader (S2)
    isolation     two namespaces, one sleeping reader (S5)
    version       show version information
    help          show this help message
`)
}

func newFlagSet(name string) *pflag.FlagSet {
	return pflag.NewFlagSet(name, pflag.ExitOnError)
}
