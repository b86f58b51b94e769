package main

import (
	"context"
	"fmt"
	"time"

	webdriver "github.com/vibium/webdrive"
	"github.com/vibium/webdrive/internal/sessionregistry"
)

func newClient() (*webdriver.Server, error) {
	return webdriver.NewServer(serverURL)
}

// dialRegistryTimeout bounds how long attachSession waits on a registry
// socket that turns out to be stale (process gone, listener wedged) before
// falling back to a direct capability fetch.
const dialRegistryTimeout = 200 * time.Millisecond

// attachSession wraps --session in a Session handle. If a 'webdrive serve'
// registry is already running for this session id, its cached capability
// map is fetched over the registry socket instead of paying a fresh HTTP
// round trip to the remote driver; otherwise capabilities are fetched
// directly, so plain attach-by-id still works when nothing called
// 'webdrive serve'.
func attachSession(ctx context.Context) (*webdriver.Session, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("no --session given; run 'webdrive new-session' first")
	}
	srv, err := newClient()
	if err != nil {
		return nil, err
	}

	if client, ok := dialRegistry(sessionID); ok {
		defer client.Close()
		var caps webdriver.Capabilities
		if err := client.Call("Capabilities", &caps); err == nil {
			return srv.AttachSession(sessionID, caps), nil
		}
	}

	caps, err := srv.GetSessionCapabilities(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return srv.AttachSession(sessionID, caps), nil
}

// dialRegistry reports whether a registry is currently serving sessionID
// and, if so, a connected Client for it. Stale sockets (owning process no
// longer running) are cleaned up rather than dialed.
func dialRegistry(sessionID string) (*sessionregistry.Client, bool) {
	sessionregistry.CleanStale(sessionID)
	pid, err := sessionregistry.ReadPID(sessionID)
	if err != nil || pid == 0 {
		return nil, false
	}
	socketPath, err := sessionregistry.SocketPath(sessionID)
	if err != nil {
		return nil, false
	}
	client, err := sessionregistry.Dial(socketPath, dialRegistryTimeout)
	if err != nil {
		return nil, false
	}
	return client, true
}
