//go:build !linux && !darwin

package sink

func reloadGhostty() error {
	// No reload mechanism on this platform; Ghostty picks up the
	// config on its next start.
	return nil
}
