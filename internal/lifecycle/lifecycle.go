// Package lifecycle issues OS-native shutdown, restart, lock-screen,
// and logout requests on behalf of a teacher command,
// honoring an optional delay in seconds for shutdown/restart. These are
// fire-and-forget from the teacher's perspective — the session ends
// when the student's OS brings the process down.
package lifecycle

import (
	"fmt"
	"os/exec"
	"os/user"
	"runtime"

	"github.com/classroomlink/link/internal/logging"
)

var log = logging.L("lifecycle")

// maxDelaySeconds caps a caller-supplied delay at 24 hours.
const maxDelaySeconds = 86400

// Executor runs lifecycle actions against the local OS.
type Executor struct{}

func New() *Executor { return &Executor{} }

func clampDelay(seconds int) int {
	if seconds < 0 {
		return 0
	}
	if seconds > maxDelaySeconds {
		return maxDelaySeconds
	}
	return seconds
}

// Shutdown powers the machine off after delaySeconds (0 = immediately).
func (e *Executor) Shutdown(delaySeconds int) error {
	cmd, err := buildShutdownCommand(false, clampDelay(delaySeconds))
	if err != nil {
		return err
	}
	log.Info("executing shutdown", "delaySeconds", delaySeconds)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("lifecycle: shutdown: %w", err)
	}
	return nil
}

// Restart reboots the machine after delaySeconds (0 = immediately).
func (e *Executor) Restart(delaySeconds int) error {
	cmd, err := buildShutdownCommand(true, clampDelay(delaySeconds))
	if err != nil {
		return err
	}
	log.Info("executing restart", "delaySeconds", delaySeconds)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("lifecycle: restart: %w", err)
	}
	return nil
}

// Lock locks the current interactive session.
func (e *Executor) Lock() error {
	log.Info("executing lock screen")
	var err error
	switch runtime.GOOS {
	case "windows":
		err = exec.Command("rundll32.exe", "user32.dll,LockWorkStation").Run()
	case "darwin":
		err = exec.Command("/System/Library/CoreServices/Menu Extras/User.menu/Contents/Resources/CGSession", "-suspend").Run()
	case "linux":
		err = lockLinuxSession()
	default:
		err = fmt.Errorf("unsupported OS: %s", runtime.GOOS)
	}
	if err != nil {
		return fmt.Errorf("lifecycle: lock: %w", err)
	}
	return nil
}

// Logout ends the current interactive session without powering off.
func (e *Executor) Logout() error {
	log.Info("executing logout")
	var err error
	switch runtime.GOOS {
	case "windows":
		err = exec.Command("shutdown", "/l").Run()
	case "darwin":
		err = exec.Command("osascript", "-e", `tell application "loginwindow" to «event aevtlogo»`).Run()
	case "linux":
		err = logoutLinuxSession()
	default:
		err = fmt.Errorf("unsupported OS: %s", runtime.GOOS)
	}
	if err != nil {
		return fmt.Errorf("lifecycle: logout: %w", err)
	}
	return nil
}

func buildShutdownCommand(isRestart bool, delaySeconds int) (*exec.Cmd, error) {
	switch runtime.GOOS {
	case "windows":
		action := "/s"
		if isRestart {
			action = "/r"
		}
		return exec.Command("shutdown", action, "/t", fmt.Sprint(delaySeconds)), nil
	case "linux", "darwin":
		action := "-h"
		if isRestart {
			action = "-r"
		}
		// shutdown(8) takes whole minutes; round up so the machine does
		// not go down before delaySeconds have passed.
		return exec.Command("shutdown", action, fmt.Sprintf("+%d", (delaySeconds+59)/60)), nil
	default:
		return nil, fmt.Errorf("unsupported OS: %s", runtime.GOOS)
	}
}

func lockLinuxSession() error {
	var loginErr error
	if path, err := exec.LookPath("loginctl"); err == nil {
		loginErr = exec.Command(path, "lock-session").Run()
		if loginErr == nil {
			return nil
		}
	} else {
		loginErr = err
	}

	var dmErr error
	if path, err := exec.LookPath("dm-tool"); err == nil {
		dmErr = exec.Command(path, "lock").Run()
		if dmErr == nil {
			return nil
		}
	} else {
		dmErr = err
	}

	return fmt.Errorf("failed to lock session with loginctl or dm-tool: loginctl=%v, dm-tool=%v", loginErr, dmErr)
}

func logoutLinuxSession() error {
	path, err := exec.LookPath("loginctl")
	if err != nil {
		return fmt.Errorf("loginctl not found: %w", err)
	}
	u, err := user.Current()
	if err != nil {
		return fmt.Errorf("determine current user: %w", err)
	}
	return exec.Command(path, "terminate-user", u.Username).Run()
}
