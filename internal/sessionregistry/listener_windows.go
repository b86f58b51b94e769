//go:build windows

package sessionregistry

import (
	"net"

	"github.com/Microsoft/go-winio"
)

// listen creates a named pipe listener on Windows using the same path
// convention go-winio expects (\\.\pipe\<name>); socketPath is passed
// through as-is by the caller.
func listen(socketPath string) (net.Listener, error) {
	return winio.ListenPipe(socketPath, nil)
}
