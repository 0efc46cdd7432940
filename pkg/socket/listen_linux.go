//go:build linux

package socket

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// listen creates the socket by hand so the backlog reaches listen(2).
// The kernel silently caps it at net.core.somaxconn.
func listen(ctx context.Context, address string, backlog int) (net.Listener, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	addr, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		return nil, err
	}

	if backlog <= 0 || backlog > math.MaxInt32 {
		backlog = math.MaxInt32
	}

	fd, err := bindSocket(addr, backlog)
	if err != nil {
		return nil, err
	}

	// FileListener dups the descriptor, so the original is closed either way.
	f := os.NewFile(uintptr(fd), "dittonet-listener")
	defer f.Close()

	return net.FileListener(f)
}

// bindSocket returns a listening descriptor for addr. A wildcard address
// without an IP is bound dual-stack on [::]; hosts without IPv6 get 0.0.0.0.
func bindSocket(addr *net.TCPAddr, backlog int) (int, error) {
	if addr.IP == nil {
		fd, err := bindFD(unix.AF_INET6, &unix.SockaddrInet6{Port: addr.Port}, backlog, true)
		if !errors.Is(err, unix.EAFNOSUPPORT) && !errors.Is(err, unix.EADDRNOTAVAIL) {
			return fd, err
		}
		return bindFD(unix.AF_INET, &unix.SockaddrInet4{Port: addr.Port}, backlog, false)
	}

	domain, sa := sockaddr(addr)
	return bindFD(domain, sa, backlog, false)
}

func bindFD(domain int, sa unix.Sockaddr, backlog int, dualStack bool) (int, error) {
	fd, err := unix.Socket(domain, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return -1, fmt.Errorf("socket create: %w", err)
	}

	if dualStack {
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 0); err != nil {
			_ = unix.Close(fd)
			return -1, fmt.Errorf("setsockopt IPV6_V6ONLY: %w", err)
		}
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("setsockopt SO_REUSEADDR: %w", err)
	}
	_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)

	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("bind: %w", err)
	}

	if err := unix.Listen(fd, backlog); err != nil {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("listen: %w", err)
	}
	return fd, nil
}

func sockaddr(addr *net.TCPAddr) (int, unix.Sockaddr) {
	if ip4 := addr.IP.To4(); ip4 != nil {
		sa := &unix.SockaddrInet4{Port: addr.Port}
		copy(sa.Addr[:], ip4)
		return unix.AF_INET, sa
	}
	sa := &unix.SockaddrInet6{Port: addr.Port}
	copy(sa.Addr[:], addr.IP.To16())
	if addr.Zone != "" {
		if ifi, err := net.InterfaceByName(addr.Zone); err == nil {
			sa.ZoneId = uint32(ifi.Index)
		}
	}
	return unix.AF_INET6, sa
}
