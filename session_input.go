package webdriver

import (
	"context"
	"encoding/json"
	"time"
)

// MoveMouseTo moves the mouse, optionally relative to element, by (xOffset,
// yOffset). If brokenMouseEvents is set the move is simulated in-page via a
// script and lastMousePosition is updated from its result; otherwise the
// legacy /moveto endpoint is used. A mouse that has never moved and is
// asked to move by a relative offset first moves to document.body (or
// documentElement) to establish a baseline.
func (s *Session) MoveMouseTo(ctx context.Context, element *Element, xOffset, yOffset int) error {
	if s.capabilities.Bool(CapBrokenMouseEvents) {
		return s.simulateMouseAction(ctx, "mousemove", element, xOffset, yOffset)
	}

	if element == nil {
		s.mu.Lock()
		moved := s.movedToElement
		s.mu.Unlock()
		if !moved {
			if err := s.establishMouseBaseline(ctx); err != nil {
				return err
			}
		}
	}

	body := map[string]interface{}{"xoffset": xOffset, "yoffset": yOffset}
	if element != nil {
		body["element"] = element.elementID
	}
	_, err := s.serverPost(ctx, "moveto", body)
	if err == nil {
		s.mu.Lock()
		s.movedToElement = true
		s.mu.Unlock()
	}
	return err
}

func (s *Session) establishMouseBaseline(ctx context.Context) error {
	script := "return document.body || document.documentElement;"
	v, err := s.Execute(ctx, script, nil)
	if err != nil {
		return err
	}
	el, _ := v.(*Element)
	if el == nil {
		return nil
	}
	_, err = s.serverPost(ctx, "moveto", map[string]interface{}{"element": el.elementID})
	return err
}

// PressMouseButton, ReleaseMouseButton, ClickMouseButton issue the
// corresponding legacy endpoints, or dispatch synthetic events when
// brokenMouseEvents is set.
func (s *Session) PressMouseButton(ctx context.Context, button int) error {
	if s.capabilities.Bool(CapBrokenMouseEvents) {
		return s.simulateMouseAction(ctx, "mousedown", nil, 0, 0)
	}
	_, err := s.serverPost(ctx, "buttondown", map[string]interface{}{"button": button})
	return err
}

func (s *Session) ReleaseMouseButton(ctx context.Context, button int) error {
	if s.capabilities.Bool(CapBrokenMouseEvents) {
		return s.simulateMouseAction(ctx, "mouseup", nil, 0, 0)
	}
	_, err := s.serverPost(ctx, "buttonup", map[string]interface{}{"button": button})
	return err
}

func (s *Session) ClickMouseButton(ctx context.Context, button int) error {
	if s.capabilities.Bool(CapBrokenMouseEvents) {
		return s.simulateMouseAction(ctx, "click", nil, 0, 0)
	}
	_, err := s.serverPost(ctx, "click", map[string]interface{}{"button": button})
	if err != nil {
		return err
	}
	if s.capabilities.Bool(CapTouchEnabled) {
		time.Sleep(300 * time.Millisecond)
	}
	return nil
}

// DoubleClick issues /doubleclick, or synthesizes press+release+doubleclick
// when brokenDoubleClick is set, or a simulated event when brokenMouseEvents
// is set.
func (s *Session) DoubleClick(ctx context.Context) error {
	if s.capabilities.Bool(CapBrokenMouseEvents) {
		return s.simulateMouseAction(ctx, "dblclick", nil, 0, 0)
	}
	if s.capabilities.Bool(CapBrokenDoubleClick) {
		if err := s.PressMouseButton(ctx, 0); err != nil {
			return err
		}
		if err := s.ReleaseMouseButton(ctx, 0); err != nil {
			return err
		}
	}
	_, err := s.serverPost(ctx, "doubleclick", nil)
	return err
}

// simulateMouseAction dispatches a synthetic mouse event in-page via an
// injected simulateMouse script, tracking position relative to
// lastMousePosition and updating it from the script's reported result.
func (s *Session) simulateMouseAction(ctx context.Context, action string, element *Element, xOffset, yOffset int) error {
	s.mu.Lock()
	last := s.lastMousePosition
	s.mu.Unlock()
	if last == nil {
		last = &point{0, 0}
	}

	args := []interface{}{
		map[string]interface{}{
			"action":  action,
			"x":       last.X + xOffset,
			"y":       last.Y + yOffset,
			"element": element,
		},
	}

	script := `
		var opts = arguments[0];
		return simulateMouse(opts);
	`
	v, err := s.Execute(ctx, script, args)
	if err != nil {
		return err
	}
	if m, ok := v.(map[string]interface{}); ok {
		x, _ := m["x"].(float64)
		y, _ := m["y"].(float64)
		s.mu.Lock()
		s.lastMousePosition = &point{int(x), int(y)}
		s.mu.Unlock()
	}
	return nil
}

// Touch gestures. TouchScroll dispatches a scroll via window.scrollTo when
// brokenTouchScroll is set.
func (s *Session) Tap(ctx context.Context, element *Element) error {
	_, err := s.serverPost(ctx, "touch/click", map[string]interface{}{"element": element.elementID})
	return err
}

func (s *Session) PressFinger(ctx context.Context, x, y int) error {
	_, err := s.serverPost(ctx, "touch/down", map[string]interface{}{"x": x, "y": y})
	return err
}

func (s *Session) ReleaseFinger(ctx context.Context, x, y int) error {
	_, err := s.serverPost(ctx, "touch/up", map[string]interface{}{"x": x, "y": y})
	return err
}

func (s *Session) MoveFinger(ctx context.Context, x, y int) error {
	_, err := s.serverPost(ctx, "touch/move", map[string]interface{}{"x": x, "y": y})
	return err
}

func (s *Session) TouchScroll(ctx context.Context, element *Element, x, y int) error {
	if s.capabilities.Bool(CapBrokenTouchScroll) {
		var scope string
		if element != nil {
			scope = element.elementID
		}
		script := `
			var el = arguments[0];
			var rect = (el || document.body).getBoundingClientRect();
			window.scrollTo(rect.left + arguments[1], rect.top + arguments[2]);
		`
		_, err := s.Execute(ctx, script, []interface{}{element, x, y})
		_ = scope
		return err
	}
	body := map[string]interface{}{"xoffset": x, "yoffset": y}
	if element != nil {
		body["element"] = element.elementID
	}
	_, err := s.serverPost(ctx, "touch/scroll", body)
	return err
}

func (s *Session) DoubleTap(ctx context.Context, element *Element) error {
	_, err := s.serverPost(ctx, "touch/doubleclick", map[string]interface{}{"element": element.elementID})
	return err
}

func (s *Session) LongTap(ctx context.Context, element *Element) error {
	_, err := s.serverPost(ctx, "touch/longclick", map[string]interface{}{"element": element.elementID})
	return err
}

// FlickFinger has two wire shapes, discriminated by whether element is nil:
// a coordinate+speed flick, or an element+offset+speed flick.
func (s *Session) FlickFinger(ctx context.Context, element *Element, xOffsetOrSpeed, yOffsetOrSpeed, speed int) error {
	if element == nil {
		_, err := s.serverPost(ctx, "touch/flick", map[string]interface{}{
			"xspeed": xOffsetOrSpeed, "yspeed": yOffsetOrSpeed,
		})
		return err
	}
	_, err := s.serverPost(ctx, "touch/flick", map[string]interface{}{
		"element": element.elementID, "xoffset": xOffsetOrSpeed, "yoffset": yOffsetOrSpeed, "speed": speed,
	})
	return err
}

// PressKeys sends keys to the focused element. Non-array input is wrapped
// in an array for the wire. If the driver lacks /keys support (or it's
// marked broken), the keys are simulated in-page character by character.
func (s *Session) PressKeys(ctx context.Context, keys []string) error {
	if s.capabilities.Bool(CapBrokenSendKeys) || !s.capabilities.Bool(CapSupportsKeysCommand) {
		return s.simulateKeys(ctx, keys)
	}
	_, err := s.serverPost(ctx, "keys", map[string]interface{}{"value": keys})
	return err
}

// simulateKeys dispatches keydown/keypress/keyup per character via an
// injected script, updating value on the active element, or performing
// Range operations when it is contentEditable.
func (s *Session) simulateKeys(ctx context.Context, keys []string) error {
	joined := ""
	for _, k := range keys {
		joined += k
	}
	script := `
		var text = arguments[0];
		return simulateKeys(document.activeElement, text);
	`
	_, err := s.Execute(ctx, script, []interface{}{joined})
	return err
}

// marshalForLog is a tiny helper used by callers wanting to log a wire body
// without constructing a separate debug type.
func marshalForLog(v interface{}) string {
	b, _ := json.Marshal(v)
	return string(b)
}
