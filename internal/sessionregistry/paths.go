package sessionregistry

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// dir returns the per-user directory registry sockets and PID files live
// under, creating it if necessary.
func dir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	d := filepath.Join(base, "webdrive")
	if err := os.MkdirAll(d, 0755); err != nil {
		return "", fmt.Errorf("create registry dir: %w", err)
	}
	return d, nil
}

// SocketPath returns the socket (or named pipe, on Windows) a registry for
// sessionID listens on. Named pipes live in their own kernel namespace, not
// the filesystem, so Windows gets a \\.\pipe\ path instead of a path under
// the cache directory.
func SocketPath(sessionID string) (string, error) {
	if runtime.GOOS == "windows" {
		return `\\.\pipe\webdrive-` + sessionID, nil
	}
	d, err := dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, sessionID+".sock"), nil
}

// PIDPath returns the file a registry for sessionID records its PID in.
func PIDPath(sessionID string) (string, error) {
	d, err := dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, sessionID+".pid"), nil
}
