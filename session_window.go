package webdriver

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/vibium/webdrive/internal/status"
	"github.com/vibium/webdrive/internal/wderrors"
)

// GetCurrentWindowHandle returns the focused window's handle, throwing
// NoSuchWindow if brokenDeleteWindow has made the library believe this
// handle was already closed.
func (s *Session) GetCurrentWindowHandle(ctx context.Context) (string, error) {
	raw, err := s.serverGet(ctx, "window_handle")
	if err != nil {
		return "", err
	}
	var handle string
	json.Unmarshal(raw, &handle)

	s.mu.Lock()
	closed := s.closedWindows[handle]
	s.mu.Unlock()
	if closed && s.capabilities.Bool(CapBrokenDeleteWindow) {
		return "", &wderrors.ProtocolError{
			Status:  int(status.NoSuchWindow),
			Name:    status.Name(int(status.NoSuchWindow)),
			Message: status.Message(int(status.NoSuchWindow)),
		}
	}
	return handle, nil
}

// GetAllWindowHandles lists every open window handle, filtering out any the
// library itself closed via script (see CloseCurrentWindow).
func (s *Session) GetAllWindowHandles(ctx context.Context) ([]string, error) {
	raw, err := s.serverGet(ctx, "window_handles")
	if err != nil {
		return nil, err
	}
	var handles []string
	json.Unmarshal(raw, &handles)

	s.mu.Lock()
	defer s.mu.Unlock()
	out := handles[:0:0]
	for _, h := range handles {
		if !s.closedWindows[h] {
			out = append(out, h)
		}
	}
	return out, nil
}

// SwitchToWindow focuses the window named by handle.
func (s *Session) SwitchToWindow(ctx context.Context, handle string) error {
	_, err := s.serverPost(ctx, "window", map[string]interface{}{"name": handle})
	return err
}

// SwitchToFrame focuses the frame identified by id (a numeric index, a
// name/id string, an *Element, or nil for the top-level document).
func (s *Session) SwitchToFrame(ctx context.Context, id interface{}) error {
	_, err := s.serverPost(ctx, "frame", map[string]interface{}{"id": normalizeFrameID(id)})
	return err
}

// normalizeFrameID converts a numeric-looking string frame id into a JSON
// number: callers that only ever carry strings would otherwise send a frame index as a string, which several drivers
// reject outright since the wire protocol types it as a number. Anything
// that isn't a plain integer string — a frame name, an *Element, nil —
// passes through unchanged.
func normalizeFrameID(id interface{}) interface{} {
	if str, ok := id.(string); ok {
		if n, err := strconv.Atoi(str); err == nil {
			return n
		}
	}
	return serializeScriptArg(id)
}

// SwitchToParentFrame tries /frame/parent first; on UnknownCommand (or a
// recoverable Selendroid error) it falls back to locating the parent frame
// element via script and switching to it directly, unless
// scriptedParentFrameCrashesBrowser forbids that fallback outright.
func (s *Session) SwitchToParentFrame(ctx context.Context) error {
	_, err := s.serverPost(ctx, "frame/parent", nil)
	if err == nil {
		return nil
	}
	if !wderrors.IsUnknownCommand(err) && !isSelendroidCommError(err) {
		return err
	}
	if s.capabilities.Bool(CapScriptedParentFrameCrash) {
		return err
	}

	v, serr := s.Execute(ctx, "return window.parent.frameElement;", nil)
	if serr != nil {
		return serr
	}
	return s.SwitchToFrame(ctx, v)
}

func isSelendroidCommError(err error) bool {
	pe, ok := err.(*wderrors.ProtocolError)
	return ok && pe.Detail == "SelendroidException"
}

// CloseCurrentWindow closes the focused window, preferring DELETE /window;
// on UnknownCommand it marks brokenDeleteWindow, closes via script instead,
// and records the handle as closed so later handle queries hide it.
func (s *Session) CloseCurrentWindow(ctx context.Context) error {
	_, err := s.serverDelete(ctx, "window")
	if err == nil {
		return nil
	}
	if !wderrors.IsUnknownCommand(err) {
		return err
	}

	handle, herr := s.GetCurrentWindowHandle(ctx)
	if herr != nil {
		return herr
	}
	s.capabilities[CapBrokenDeleteWindow] = true
	if _, serr := s.Execute(ctx, "window.close();", nil); serr != nil {
		return serr
	}
	s.mu.Lock()
	s.closedWindows[handle] = true
	s.mu.Unlock()
	return nil
}

type windowRect struct {
	X, Y, Width, Height int
}

// SetWindowSize resizes handle (empty string means the current window).
// When supportsWindowRectCommand is set, /window/rect is used with null
// x/y; otherwise the legacy /window/{handle}/size endpoint is used. When
// implicitWindowHandles is set and a handle was given, the session must
// round-trip through that window (save, switch, operate, restore).
func (s *Session) SetWindowSize(ctx context.Context, handle string, width, height int) error {
	if s.capabilities.Bool(CapImplicitWindowHandles) && handle != "" {
		return s.withWindowHandle(ctx, handle, func() error {
			return s.setWindowSizeCurrent(ctx, width, height)
		})
	}
	if handle == "" {
		return s.setWindowSizeCurrent(ctx, width, height)
	}
	_, err := s.serverPost(ctx, "window/$1/size", map[string]interface{}{"width": width, "height": height}, handle)
	return err
}

func (s *Session) setWindowSizeCurrent(ctx context.Context, width, height int) error {
	if s.capabilities.Bool(CapSupportsWindowRectCommand) {
		_, err := s.serverPost(ctx, "window/rect", map[string]interface{}{"width": width, "height": height, "x": nil, "y": nil})
		return err
	}
	_, err := s.serverPost(ctx, "window/current/size", map[string]interface{}{"width": width, "height": height})
	return err
}

// withWindowHandle saves the current handle, switches to target, runs fn,
// then restores the original handle, re-raising any error fn produced.
//
// One ambiguous source behavior is deliberately mirrored here: the original
// implementation's error-recovery path for this exact round-trip assigns a
// caught error back onto itself (`error = error`), which looks like a typo
// for capturing the inner failure separately. The probable intent — surface
// whichever error actually occurred, operation or restore — is what this
// does; see DESIGN.md for the paper trail.
func (s *Session) withWindowHandle(ctx context.Context, handle string, fn func() error) error {
	original, herr := s.GetCurrentWindowHandle(ctx)
	if herr != nil {
		return herr
	}
	if serr := s.SwitchToWindow(ctx, handle); serr != nil {
		return serr
	}

	var opErr error
	opErr = fn()

	if rerr := s.SwitchToWindow(ctx, original); rerr != nil {
		if opErr == nil {
			opErr = rerr
		}
	}
	return opErr
}

// GetWindowSize reads handle's size (see SetWindowSize for the endpoint
// selection rules).
func (s *Session) GetWindowSize(ctx context.Context, handle string) (width, height int, err error) {
	var raw json.RawMessage
	if s.capabilities.Bool(CapSupportsWindowRectCommand) && handle == "" {
		raw, err = s.serverGet(ctx, "window/rect")
	} else {
		target := handle
		if target == "" {
			target = "current"
		}
		raw, err = s.serverGet(ctx, "window/$1/size", target)
	}
	if err != nil {
		return 0, 0, err
	}
	var r windowRect
	json.Unmarshal(raw, &r)
	return r.Width, r.Height, nil
}

// SetWindowPosition and GetWindowPosition operate on /window/{handle}/position.
func (s *Session) SetWindowPosition(ctx context.Context, handle string, x, y int) error {
	target := handleOrCurrent(handle)
	_, err := s.serverPost(ctx, "window/$1/position", map[string]interface{}{"x": x, "y": y}, target)
	return err
}

func (s *Session) GetWindowPosition(ctx context.Context, handle string) (x, y int, err error) {
	target := handleOrCurrent(handle)
	raw, err := s.serverGet(ctx, "window/$1/position", target)
	if err != nil {
		return 0, 0, err
	}
	var r windowRect
	json.Unmarshal(raw, &r)
	return r.X, r.Y, nil
}

// MaximizeWindow maximizes handle via /window/{handle}/maximize.
func (s *Session) MaximizeWindow(ctx context.Context, handle string) error {
	target := handleOrCurrent(handle)
	_, err := s.serverPost(ctx, "window/$1/maximize", nil, target)
	return err
}

func handleOrCurrent(handle string) string {
	if handle == "" {
		return "current"
	}
	return handle
}
