//go:build windows

package updater

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/mgr"
)

const serviceName = "ClassroomLinkAgent"

const scmWaitTimeout = 30 * time.Second

// Restart cycles the agent's Windows service through SCM. Used for
// restarts where no binary swap is needed; a swap goes through
// RestartWithHelper instead, since the service cannot stop itself and
// still run the copy step.
func Restart() error {
	m, err := mgr.Connect()
	if err != nil {
		return fmt.Errorf("connect to SCM: %w", err)
	}
	defer m.Disconnect()

	s, err := m.OpenService(serviceName)
	if err != nil {
		return fmt.Errorf("open service %s: %w", serviceName, err)
	}
	defer s.Close()

	if _, err := s.Control(svc.Stop); err != nil {
		return fmt.Errorf("stop service: %w", err)
	}
	if err := awaitState(s, svc.Stopped); err != nil {
		return err
	}

	if err := s.Start(); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	return awaitState(s, svc.Running)
}

func awaitState(s *mgr.Service, want svc.State) error {
	deadline := time.Now().Add(scmWaitTimeout)
	for {
		status, err := s.Query()
		if err != nil {
			return fmt.Errorf("query service: %w", err)
		}
		if status.State == want {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timeout waiting for service state %d", want)
		}
		time.Sleep(300 * time.Millisecond)
	}
}

// RestartWithHelper hands the binary swap to a detached PowerShell
// script: wait for this process to exit, stop the service, copy the
// staged binary into place, start the service, clean up. The agent
// cannot SCM-stop itself and still run the copy, so an external helper
// carries the swap across the service restart.
func RestartWithHelper(newBinaryPath, targetPath string) error {
	// Single quotes are doubled so the paths cannot break out of the
	// PowerShell string literals.
	safeBinary := strings.ReplaceAll(newBinaryPath, "'", "''")
	safeTarget := strings.ReplaceAll(targetPath, "'", "''")

	script := strings.Join([]string{
		"Start-Sleep -Seconds 3",
		"Stop-Service -Name '" + serviceName + "' -Force -ErrorAction SilentlyContinue",
		"Start-Sleep -Seconds 2",
		fmt.Sprintf("Copy-Item -Path '%s' -Destination '%s' -Force", safeBinary, safeTarget),
		"Start-Service -Name '" + serviceName + "'",
		fmt.Sprintf("Remove-Item -Path '%s' -Force -ErrorAction SilentlyContinue", safeBinary),
		"Remove-Item -Path $PSCommandPath -Force -ErrorAction SilentlyContinue",
	}, "\r\n")

	scriptFile, err := os.CreateTemp("", "classroom-link-update-*.ps1")
	if err != nil {
		return fmt.Errorf("create update script: %w", err)
	}
	if _, err := scriptFile.WriteString(script); err != nil {
		scriptFile.Close()
		os.Remove(scriptFile.Name())
		return fmt.Errorf("write update script: %w", err)
	}
	scriptFile.Close()

	log.Info("spawning update helper script",
		"script", scriptFile.Name(),
		"newBinary", newBinaryPath,
		"target", targetPath,
	)

	cmd := exec.Command("powershell.exe",
		"-NoProfile", "-ExecutionPolicy", "Bypass",
		"-File", scriptFile.Name(),
	)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}

	if err := cmd.Start(); err != nil {
		os.Remove(scriptFile.Name())
		return fmt.Errorf("start update helper: %w", err)
	}
	_ = cmd.Process.Release()

	log.Info("update helper spawned, agent exits via service stop")
	return nil
}
