//go:build windows

package main

import (
	"fmt"
	"os"
)

var shutdownSignals = []os.Signal{os.Interrupt}

// Windows has no Setsid; background management is left to the service
// manager. Only foreground "run" is supported.

func cmdStart() {
	fmt.Fprintln(os.Stderr, "start/stop are unix-only; use 'vitalsd run' under a service manager on Windows")
	os.Exit(1)
}

func cmdStop() {
	fmt.Fprintln(os.Stderr, "start/stop are unix-only; use 'vitalsd run' under a service manager on Windows")
	os.Exit(1)
}

func cmdStatus() {
	fmt.Fprintln(os.Stderr, "start/stop are unix-only; use 'vitalsd run' under a service manager on Windows")
	os.Exit(1)
}

func processExists(pid int) bool { return false }
