//go:build !windows

package sessionregistry

import "net"

func listen(socketPath string) (net.Listener, error) {
	return net.Listen("unix", socketPath)
}
