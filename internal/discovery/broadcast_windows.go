//go:build windows

package discovery

import (
	"fmt"
	"net"

	"golang.org/x/sys/windows"
)

// enableBroadcast sets SO_BROADCAST so the probe socket may WriteTo a
// 255.255.255.255 destination.
func enableBroadcast(conn *net.UDPConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return fmt.Errorf("syscall conn: %w", err)
	}
	var sockErr error
	if err := raw.Control(func(fd uintptr) {
		sockErr = windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_BROADCAST, 1)
	}); err != nil {
		return fmt.Errorf("control: %w", err)
	}
	return sockErr
}
