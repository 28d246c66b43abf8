package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// Lock is an advisory lock enforcing single-writer access to a workspace's
// checkpoint state. Concurrent writers to the same workspace would corrupt
// resume bookkeeping, so acquisition happens at the workspace boundary
// before the checkpoint store is opened.
type Lock struct {
	path string
	held bool
}

// NewLock creates a lock handle for the given workspace directory
func NewLock(workspaceDir string) *Lock {
	return &Lock{path: filepath.Join(workspaceDir, ".lock")}
}

// Acquire takes the lock, failing if another process holds it. A lock left
// behind by a dead process is reclaimed.
func (l *Lock) Acquire() error {
	for {
		file, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			fmt.Fprintf(file, "%d\n", os.Getpid())
			file.Close()
			l.held = true
			return nil
		}
		if !os.IsExist(err) {
			return fmt.Errorf("failed to create lock file: %w", err)
		}

		pid, readErr := l.ownerPID()
		if readErr == nil && pid > 0 && processAlive(pid) {
			return fmt.Errorf("workspace is locked by running process %d (lock file: %s)", pid, l.path)
		}

		// Stale lock from a dead process: remove and retry
		if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove stale lock file: %w", err)
		}
	}
}

// Release drops the lock if held
func (l *Lock) Release() error {
	if !l.held {
		return nil
	}
	l.held = false
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

func (l *Lock) ownerPID() (int, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

// processAlive reports whether a process with the given pid exists
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Signal 0 probes existence without delivering a signal
	return proc.Signal(syscall.Signal(0)) == nil
}
