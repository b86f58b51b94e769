//go:build windows

package sessionregistry

import (
	"net"
	"time"

	"github.com/Microsoft/go-winio"
)

func dial(addr string, timeout time.Duration) (net.Conn, error) {
	return winio.DialPipe(addr, &timeout)
}
