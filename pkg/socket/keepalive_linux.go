//go:build linux

package socket

import (
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

func setKeepAliveProbes(conn *net.TCPConn, period time.Duration) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return fmt.Errorf("keep-alive raw conn: %w", err)
	}

	secs := int(period / time.Second)
	if secs < 1 {
		secs = 1
	}

	var sockErr error
	err = raw.Control(func(fd uintptr) {
		if sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, secs); sockErr != nil {
			return
		}
		sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPCNT, keepAliveProbes)
	})
	if err != nil {
		return fmt.Errorf("keep-alive control: %w", err)
	}
	if sockErr != nil {
		return fmt.Errorf("keep-alive probes: %w", sockErr)
	}
	return nil
}
