package socket

import (
	"fmt"
	"net"
	"time"
)

// DefaultKeepAlivePeriod is the idle time before the first keep-alive probe.
const DefaultKeepAlivePeriod = 15 * time.Second

// keepAliveProbes is the number of unanswered probes before the peer is
// considered dead, where the platform lets us set it.
const keepAliveProbes = 5

// EnableKeepAlive turns on TCP keep-alive for conn. Non-TCP connections are
// left untouched. A non-positive period selects DefaultKeepAlivePeriod.
func EnableKeepAlive(conn net.Conn, period time.Duration) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}

	if period <= 0 {
		period = DefaultKeepAlivePeriod
	}

	if err := tcpConn.SetKeepAlive(true); err != nil {
		return fmt.Errorf("enable keep-alive: %w", err)
	}
	if err := tcpConn.SetKeepAlivePeriod(period); err != nil {
		return fmt.Errorf("set keep-alive period: %w", err)
	}

	return setKeepAliveProbes(tcpConn, period)
}
