//go:build !linux

package socket

import (
	"context"
	"net"
)

// listen uses the OS default backlog; the requested one cannot be passed
// through net.ListenConfig.
func listen(ctx context.Context, address string, _ int) (net.Listener, error) {
	var lc net.ListenConfig
	return lc.Listen(ctx, "tcp", address)
}
