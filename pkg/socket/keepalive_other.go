//go:build !linux

package socket

import (
	"net"
	"time"
)

func setKeepAliveProbes(*net.TCPConn, time.Duration) error {
	return nil
}
