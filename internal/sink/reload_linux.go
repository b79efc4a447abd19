//go:build linux

package sink

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
)

// reloadGhostty sends SIGUSR2 to every Ghostty process, which makes it
// re-read its configuration.
func reloadGhostty() error {
	out, err := exec.Command("pgrep", "-x", "ghostty").Output()
	if err != nil {
		// pgrep exits 1 when nothing matches.
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			return nil
		}
		return fmt.Errorf("pgrep ghostty: %w", err)
	}

	for _, field := range strings.Fields(string(out)) {
		pid, err := strconv.Atoi(field)
		if err != nil {
			continue
		}
		if err := syscall.Kill(pid, syscall.SIGUSR2); err != nil {
			return fmt.Errorf("signal ghostty pid %d: %w", pid, err)
		}
	}
	return nil
}
