//go:build darwin

package sink

import (
	"fmt"
	"os/exec"
)

// reloadGhostty clicks the "Reload Configuration" menu item through
// System Events; Ghostty on macOS does not reload on a signal.
func reloadGhostty() error {
	cmd := exec.Command("osascript",
		"-e", `tell application "Ghostty" to activate`,
		"-e", `tell application "System Events" to tell process "Ghostty" to click menu item "Reload Configuration" of menu "Ghostty" of menu bar 1`,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("osascript: %w: %s", err, out)
	}
	return nil
}
