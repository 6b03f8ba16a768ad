//go:build !windows

package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/griffin1995/my-private-tutor-online-sub019/internal/config"
)

var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

// stopWait bounds how long "stop" waits for the daemon to exit after
// SIGTERM before giving up.
const stopWait = 10 * time.Second

func cmdStart() {
	cfg := config.Load()

	if pid, err := readPidFile(cfg.PidFile); err == nil {
		if processExists(pid) {
			fmt.Printf("vitalsd is already running (PID %d)\n", pid)
			os.Exit(1)
		}
		os.Remove(cfg.PidFile) // stale
	}

	exe, err := os.Executable()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to find executable: %v\n", err)
		os.Exit(1)
	}

	logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file %s: %v\n", cfg.LogFile, err)
		os.Exit(1)
	}
	defer logFile.Close()

	// The child runs the "run" subcommand in its own session so it
	// survives the terminal; the loaded config travels via flags.
	childArgs := append([]string{"run"}, buildForwardFlags(cfg)...)
	child := &exec.Cmd{
		Path:        exe,
		Args:        append([]string{filepath.Base(exe)}, childArgs...),
		Stdout:      logFile,
		Stderr:      logFile,
		SysProcAttr: &syscall.SysProcAttr{Setsid: true},
	}
	if err := child.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start daemon: %v\n", err)
		os.Exit(1)
	}

	pid := child.Process.Pid
	if err := writePidFile(cfg.PidFile, pid); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to write PID file: %v\n", err)
	}
	child.Process.Release()

	fmt.Printf("vitalsd started (PID %d)\n", pid)
	printRuntime(cfg)
}

func cmdStop() {
	cfg := config.Load()

	pid, err := readPidFile(cfg.PidFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vitalsd is not running (no PID file: %s)\n", cfg.PidFile)
		os.Exit(1)
	}
	if !processExists(pid) {
		fmt.Printf("vitalsd is not running (stale PID %d)\n", pid)
		os.Remove(cfg.PidFile)
		os.Exit(1)
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to find process %d: %v\n", pid, err)
		os.Exit(1)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		fmt.Fprintf(os.Stderr, "failed to stop PID %d: %v\n", pid, err)
		os.Exit(1)
	}

	deadline := time.Now().Add(stopWait)
	for time.Now().Before(deadline) {
		time.Sleep(100 * time.Millisecond)
		if !processExists(pid) {
			os.Remove(cfg.PidFile)
			fmt.Printf("vitalsd stopped (PID %d)\n", pid)
			return
		}
	}
	fmt.Printf("vitalsd stop signal sent (PID %d), still shutting down\n", pid)
	os.Remove(cfg.PidFile)
}

func cmdStatus() {
	cfg := config.Load()

	pid, err := readPidFile(cfg.PidFile)
	if err != nil {
		fmt.Println("vitalsd is stopped")
		os.Exit(1)
	}
	if !processExists(pid) {
		fmt.Printf("vitalsd is stopped (stale PID file, was PID %d)\n", pid)
		os.Remove(cfg.PidFile)
		os.Exit(1)
	}

	fmt.Printf("vitalsd is running (PID %d)\n", pid)
	printRuntime(cfg)
}

// printRuntime prints the effective runtime paths shared by the start
// and status output.
func printRuntime(cfg *config.Config) {
	fmt.Printf("  listen    http://%s\n", cfg.Listen)
	fmt.Printf("  base      %s\n", cfg.BasePath)
	fmt.Printf("  config    %s\n", cfg.ConfigPath)
	fmt.Printf("  database  %s\n", cfg.DBPath)
	fmt.Printf("  pid file  %s\n", cfg.PidFile)
	fmt.Printf("  log file  %s\n", cfg.LogFile)
}

func processExists(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Signal 0 probes for existence without delivering anything.
	return proc.Signal(syscall.Signal(0)) == nil
}
