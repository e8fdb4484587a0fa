package guard

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-ps"
)

// ErrAlreadyRunning is returned when another process runs the same executable.
var ErrAlreadyRunning = errors.New("another engine process is already running")

// Lister enumerates running processes.
type Lister func() ([]ps.Process, error)

// EnsureSingleInstance fails when a process other than the current one runs
// the executable named name. An empty name uses the current executable.
func EnsureSingleInstance(name string) error {
	return ensureSingleInstance(ps.Processes, os.Getpid(), name)
}

func ensureSingleInstance(list Lister, selfPID int, name string) error {
	if name == "" {
		name = currentExecutable()
	}

	processList, err := list()
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}

	for _, process := range processList {
		if process.Pid() == selfPID {
			continue
		}

		if !sameExecutable(process.Executable(), name) {
			continue
		}

		return fmt.Errorf("%w: pid %d", ErrAlreadyRunning, process.Pid())
	}

	return nil
}

func currentExecutable() string {
	path, err := os.Executable()
	if err != nil {
		return filepath.Base(os.Args[0])
	}

	return filepath.Base(path)
}

// sameExecutable compares names ignoring the Windows extension.
func sameExecutable(a, b string) bool {
	return strings.EqualFold(strings.TrimSuffix(a, ".exe"), strings.TrimSuffix(b, ".exe"))
}
