//go:build linux || darwin

package discovery

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// enableBroadcast sets SO_BROADCAST so the probe socket may WriteTo a
// 255.255.255.255 destination; Go does not set this by default and a
// plain sendto to a broadcast address otherwise fails with EACCES.
func enableBroadcast(conn *net.UDPConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return fmt.Errorf("syscall conn: %w", err)
	}
	var sockErr error
	if err := raw.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
	}); err != nil {
		return fmt.Errorf("control: %w", err)
	}
	return sockErr
}
