//go:build !windows

package sessionregistry

import (
	"net"
	"time"
)

func dial(addr string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("unix", addr, timeout)
}
