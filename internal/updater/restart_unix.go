//go:build !windows

package updater

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
)

// Restart brings the agent back up under its new binary. Service
// managers are preferred so the supervised unit stays healthy; a plain
// exec of the replaced binary is the last resort for agents run by
// hand (e.g. a classroom machine booted straight into the binary).
func Restart() error {
	if err := exec.Command("systemctl", "restart", "classroom-link-agent").Run(); err == nil {
		return nil
	}
	if err := exec.Command("launchctl", "kickstart", "-k", "system/com.classroomlink.agent").Run(); err == nil {
		return nil
	}
	return execSelf()
}

// RestartWithHelper is the Windows-only update path; InstallStaged only
// calls it when runtime.GOOS == "windows", but the symbol must still
// exist here for this build-tagged file set to compile on other platforms.
func RestartWithHelper(newBinaryPath, targetPath string) error {
	return fmt.Errorf("updater: RestartWithHelper is not supported on this platform")
}

// execSelf replaces the current process image with the (already
// swapped) binary on disk, preserving args and environment.
func execSelf() error {
	binary, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}
	binary, err = filepath.EvalSymlinks(binary)
	if err != nil {
		return fmt.Errorf("resolve executable symlinks: %w", err)
	}
	return syscall.Exec(binary, []string{binary, "run"}, os.Environ())
}
