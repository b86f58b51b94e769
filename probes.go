package webdriver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vibium/webdrive/internal/locator"
	"github.com/vibium/webdrive/internal/wderrors"
)

// probe is one dynamic capability check: it runs against sess and returns
// the capability key(s) it sets, or an empty map if the probe itself
// couldn't complete (left for a later probe or the static table to decide).
type probe func(ctx context.Context, s *Server, sess *Session) map[string]interface{}

// runCapabilityProbes runs the ordered probe list, skipping any capability
// that a prior phase (or an earlier probe) already set, resetting page
// state with a navigation to about:blank between probes as §4.1 specifies.
func (s *Server) runCapabilityProbes(ctx context.Context, sess *Session) (map[string]interface{}, error) {
	out := map[string]interface{}{}
	apply := func(m map[string]interface{}) {
		for k, v := range m {
			if _, already := out[k]; !already {
				if _, onSession := sess.capabilities[k]; !onSession {
					out[k] = v
				}
			}
		}
	}

	order := []probe{
		probeEmptyPost,
		probeWindowRect,
		probeSessionsListing,
		probeWindowCommandParameter,
		probeKeysCommand,
		probeExecuteAsync,
		probeZeroTimeout,
		probeTouch,
		probeRotation,
		probeTakeScreenshot,
		probeDataURINavigation,
		probeCssTransforms,
		probePageSource,
		probeElementAttribute,
		probeComputedStyle,
		probeOptionSelect,
		probeSubmitElement,
		probeClickIsSelected,
		probeDoubleClick,
		probeWindowSize,
		probeWindowMaximize,
		probeViewportResize,
		probeParentFrameSwitch,
		probeElementPosition,
		probeRefreshCancellation,
		probeHtmlMouseMove,
	}

	for _, p := range order {
		apply(p(ctx, s, sess))
		sess.navigateBestEffort(ctx, "about:blank")
	}

	return out, nil
}

// probeEmptyPost checks whether the driver accepts a POST with Content-Length
// 0 and an empty body, vs. requiring a synthesized "{}".
func probeEmptyPost(ctx context.Context, s *Server, sess *Session) map[string]interface{} {
	_, err := s.request(ctx, http.MethodPost, "session/$0/frame", nil, sess.sessionID)
	if err != nil && wderrors.StatusOf(err) == -1 {
		// connection-level failure, inconclusive
		return nil
	}
	if pe, ok := asProtocolError(err); ok && pe.Status != 0 {
		return map[string]interface{}{CapBrokenEmptyPost: true}
	}
	return map[string]interface{}{CapBrokenEmptyPost: false}
}

// probeWindowRect checks whether /window/rect is implemented.
func probeWindowRect(ctx context.Context, s *Server, sess *Session) map[string]interface{} {
	_, err := s.request(ctx, http.MethodGet, "session/$0/window/rect", nil, sess.sessionID)
	if err == nil {
		return map[string]interface{}{CapSupportsWindowRectCommand: true}
	}
	if wderrors.IsUnknownCommand(err) {
		return map[string]interface{}{CapSupportsWindowRectCommand: false}
	}
	return nil
}

// probeKeysCommand checks whether the legacy /keys endpoint exists.
func probeKeysCommand(ctx context.Context, s *Server, sess *Session) map[string]interface{} {
	_, err := s.request(ctx, http.MethodPost, "session/$0/keys", map[string]interface{}{"value": []string{}}, sess.sessionID)
	if err == nil {
		return map[string]interface{}{CapSupportsKeysCommand: true}
	}
	if wderrors.IsUnknownCommand(err) {
		return map[string]interface{}{CapSupportsKeysCommand: false}
	}
	return nil
}

// probeExecuteAsync checks whether executeAsync round-trips a literal value.
func probeExecuteAsync(ctx context.Context, s *Server, sess *Session) map[string]interface{} {
	val, err := sess.ExecuteAsync(ctx, "arguments[arguments.length - 1](1);", nil)
	if err == nil {
		if n, ok := val.(float64); ok && n == 1 {
			return map[string]interface{}{CapSupportsExecuteAsync: true}
		}
	}
	if wderrors.IsUnknownCommand(err) {
		return map[string]interface{}{CapSupportsExecuteAsync: false}
	}
	return nil
}

// probeZeroTimeout checks whether a zero-millisecond timeout is honored, or
// must be bumped to 1ms.
func probeZeroTimeout(ctx context.Context, s *Server, sess *Session) map[string]interface{} {
	_, err := s.request(ctx, http.MethodPost, "session/$0/timeouts", map[string]interface{}{"type": "implicit", "ms": 0}, sess.sessionID)
	if err != nil {
		return map[string]interface{}{CapBrokenZeroTimeout: true}
	}
	return map[string]interface{}{CapBrokenZeroTimeout: false}
}

// probeTouch checks for touch input support via the legacy /touch endpoints.
func probeTouch(ctx context.Context, s *Server, sess *Session) map[string]interface{} {
	_, err := s.request(ctx, http.MethodPost, "session/$0/touch/click", map[string]interface{}{"element": "__nonexistent__"}, sess.sessionID)
	if err == nil {
		return map[string]interface{}{CapTouchEnabled: true}
	}
	if wderrors.IsUnknownCommand(err) {
		return map[string]interface{}{CapTouchEnabled: false}
	}
	// NoSuchElement still proves the endpoint exists.
	if pe, ok := asProtocolError(err); ok && pe.Name == "NoSuchElement" {
		return map[string]interface{}{CapTouchEnabled: true}
	}
	return nil
}

// probeDataURINavigation checks whether the driver accepts navigating to a
// data: URI, used by the internal get() helper to reset page state cheaply.
func probeDataURINavigation(ctx context.Context, s *Server, sess *Session) map[string]interface{} {
	err := sess.navigateRaw(ctx, "data:text/html;charset=utf-8,<html></html>")
	if err == nil {
		return map[string]interface{}{CapSupportsNavigationDataUris: true}
	}
	return map[string]interface{}{CapSupportsNavigationDataUris: false}
}

// probeCssTransforms checks whether the page's style objects expose a
// transform property at all (document.body.style.transform is defined).
func probeCssTransforms(ctx context.Context, s *Server, sess *Session) map[string]interface{} {
	val, err := sess.Execute(ctx, "return typeof document.body.style.transform !== 'undefined';", nil)
	if err != nil {
		return nil
	}
	if b, ok := val.(bool); ok {
		return map[string]interface{}{CapSupportsCssTransforms: b}
	}
	return nil
}

// probeSessionsListing fixes isWebDriver by inspecting GET /sessions: a W3C
// session-listing entry carries its own "capabilities" object, while a
// legacy JsonWire entry only reports flat identity fields.
func probeSessionsListing(ctx context.Context, s *Server, sess *Session) map[string]interface{} {
	sessions, err := s.GetSessions(ctx)
	if err != nil || len(sessions) == 0 {
		return nil
	}
	_, isW3C := sessions[0]["capabilities"]
	return map[string]interface{}{CapIsWebDriver: isW3C}
}

// probeWindowCommandParameter checks whether /window accepts the W3C
// {"handle": ...} body shape, vs. the legacy {"name": ...} shape SwitchToWindow
// sends today.
func probeWindowCommandParameter(ctx context.Context, s *Server, sess *Session) map[string]interface{} {
	handle, err := sess.GetCurrentWindowHandle(ctx)
	if err != nil {
		return nil
	}
	_, err = s.request(ctx, http.MethodPost, "session/$0/window", map[string]interface{}{"handle": handle}, sess.sessionID)
	if err == nil {
		return map[string]interface{}{CapUsesHandleParameter: true}
	}
	if wderrors.IsUnknownCommand(err) {
		return map[string]interface{}{CapUsesHandleParameter: false}
	}
	return nil
}

// probeRotation checks for the legacy /orientation endpoint.
func probeRotation(ctx context.Context, s *Server, sess *Session) map[string]interface{} {
	_, err := s.request(ctx, http.MethodGet, "session/$0/orientation", nil, sess.sessionID)
	if err == nil {
		return map[string]interface{}{CapRotatable: true}
	}
	if wderrors.IsUnknownCommand(err) {
		return map[string]interface{}{CapRotatable: false}
	}
	return nil
}

// probeTakeScreenshot checks whether GET /screenshot returns non-empty
// image data.
func probeTakeScreenshot(ctx context.Context, s *Server, sess *Session) map[string]interface{} {
	data, err := sess.GetScreenshot(ctx)
	if err == nil {
		return map[string]interface{}{CapTakesScreenshot: data != ""}
	}
	if wderrors.IsUnknownCommand(err) {
		return map[string]interface{}{CapTakesScreenshot: false}
	}
	return nil
}

func dataURIPage(body string) string {
	return "data:text/html;charset=utf-8," + url.QueryEscape("<html><body>"+body+"</body></html>")
}

// probePageSource checks that GET /source returns the document it was just
// given rather than an empty or stale body.
func probePageSource(ctx context.Context, s *Server, sess *Session) map[string]interface{} {
	marker := "wd-probe-marker"
	if err := sess.navigateRaw(ctx, dataURIPage(`<div id="m">`+marker+`</div>`)); err != nil {
		return nil
	}
	src, err := sess.GetPageSource(ctx)
	if err != nil {
		if wderrors.IsUnknownCommand(err) {
			return map[string]interface{}{CapBrokenPageSource: true}
		}
		return nil
	}
	return map[string]interface{}{CapBrokenPageSource: !strings.Contains(src, marker)}
}

// probeElementAttribute checks whether reading a DOM attribute that isn't
// present comes back as a JSON null, vs. some drivers' empty string.
func probeElementAttribute(ctx context.Context, s *Server, sess *Session) map[string]interface{} {
	if err := sess.navigateRaw(ctx, dataURIPage(`<input id="i">`)); err != nil {
		return nil
	}
	el, err := sess.Find(ctx, locator.ID, "i")
	if err != nil {
		return nil
	}
	raw, err := s.request(ctx, http.MethodGet, "session/$0/element/$1/attribute/$2", nil, sess.sessionID, el.elementID, "disabled")
	if err != nil {
		return nil
	}
	var v interface{}
	decodeJSONValue(raw.Value, &v)
	if v == nil {
		return map[string]interface{}{CapBrokenNullGetSpecAttribute: false}
	}
	if str, ok := v.(string); ok && str == "" {
		return map[string]interface{}{CapBrokenNullGetSpecAttribute: true}
	}
	return nil
}

// probeComputedStyle checks that the driver's own css endpoint agrees with
// an inline style it was just given.
func probeComputedStyle(ctx context.Context, s *Server, sess *Session) map[string]interface{} {
	if err := sess.navigateRaw(ctx, dataURIPage(`<div id="d" style="display:block;">x</div>`)); err != nil {
		return nil
	}
	el, err := sess.Find(ctx, locator.ID, "d")
	if err != nil {
		return nil
	}
	raw, err := s.request(ctx, http.MethodGet, "session/$0/element/$1/css/$2", nil, sess.sessionID, el.elementID, "display")
	if err != nil {
		if wderrors.IsUnknownCommand(err) {
			return map[string]interface{}{CapBrokenComputedStyles: true}
		}
		return nil
	}
	var v string
	decodeJSONValue(raw.Value, &v)
	return map[string]interface{}{CapBrokenComputedStyles: v != "block"}
}

// probeOptionSelect checks that clicking an <option> element actually
// selects it.
func probeOptionSelect(ctx context.Context, s *Server, sess *Session) map[string]interface{} {
	if err := sess.navigateRaw(ctx, dataURIPage(`<select id="s"><option id="o" value="v">v</option></select>`)); err != nil {
		return nil
	}
	el, err := sess.Find(ctx, locator.ID, "o")
	if err != nil {
		return nil
	}
	if _, err := s.request(ctx, http.MethodPost, "session/$0/element/$1/click", nil, sess.sessionID, el.elementID); err != nil {
		return nil
	}
	selected, err := el.IsSelected(ctx)
	if err != nil {
		return nil
	}
	return map[string]interface{}{CapBrokenOptionSelect: !selected}
}

// probeSubmitElement checks whether /submit is implemented by the driver at
// all, rather than being an endpoint the library must emulate via script.
func probeSubmitElement(ctx context.Context, s *Server, sess *Session) map[string]interface{} {
	if err := sess.navigateRaw(ctx, dataURIPage(`<form id="f"><button id="b" type="submit">go</button></form>`)); err != nil {
		return nil
	}
	el, err := sess.Find(ctx, locator.ID, "b")
	if err != nil {
		return nil
	}
	_, err = s.request(ctx, http.MethodPost, "session/$0/element/$1/submit", nil, sess.sessionID, el.elementID)
	if err == nil {
		return map[string]interface{}{CapBrokenSubmitElement: false}
	}
	if wderrors.IsUnknownCommand(err) {
		return map[string]interface{}{CapBrokenSubmitElement: true}
	}
	return nil
}

// probeClickIsSelected checks that clicking a checkbox is reflected in an
// immediate isSelected read, the way §4.1 expects to distinguish drivers
// that return from click before the page has actually processed it.
func probeClickIsSelected(ctx context.Context, s *Server, sess *Session) map[string]interface{} {
	if err := sess.navigateRaw(ctx, dataURIPage(`<input type="checkbox" id="c">`)); err != nil {
		return nil
	}
	el, err := sess.Find(ctx, locator.ID, "c")
	if err != nil {
		return nil
	}
	if _, err := s.request(ctx, http.MethodPost, "session/$0/element/$1/click", nil, sess.sessionID, el.elementID); err != nil {
		return nil
	}
	selected, err := el.IsSelected(ctx)
	if err != nil {
		return nil
	}
	return map[string]interface{}{CapBrokenClick: !selected}
}

// probeDoubleClick checks that /doubleclick actually fires a dblclick event,
// retrying a few times since slow event delivery can otherwise look like a
// broken endpoint.
func probeDoubleClick(ctx context.Context, s *Server, sess *Session) map[string]interface{} {
	if err := sess.navigateRaw(ctx, dataURIPage(`<div id="t" style="width:80px;height:80px;">t</div>
		<script>window.__dblclicks = 0; document.getElementById('t').addEventListener('dblclick', function(){ window.__dblclicks++; });</script>`)); err != nil {
		return nil
	}
	el, err := sess.Find(ctx, locator.ID, "t")
	if err != nil {
		return nil
	}
	if err := sess.MoveMouseTo(ctx, el, 0, 0); err != nil {
		return nil
	}

	for attempt := 0; attempt < 6; attempt++ {
		if _, err := s.request(ctx, http.MethodPost, "session/$0/doubleclick", nil, sess.sessionID); err != nil {
			if wderrors.IsUnknownCommand(err) {
				return map[string]interface{}{CapBrokenDoubleClick: true}
			}
			return nil
		}
		val, err := sess.Execute(ctx, "return window.__dblclicks;", nil)
		if err != nil {
			return nil
		}
		if n, ok := val.(float64); ok && n >= 1 {
			return map[string]interface{}{CapBrokenDoubleClick: false}
		}
	}
	return map[string]interface{}{CapBrokenDoubleClick: true}
}

// probeWindowSize checks that a requested resize is reflected in a
// subsequent read exactly.
func probeWindowSize(ctx context.Context, s *Server, sess *Session) map[string]interface{} {
	const w, h = 640, 480
	if err := sess.SetWindowSize(ctx, "", w, h); err != nil {
		if wderrors.IsUnknownCommand(err) {
			return nil
		}
		return map[string]interface{}{CapBrokenWindowSize: true}
	}
	gotW, gotH, err := sess.GetWindowSize(ctx, "")
	if err != nil {
		return nil
	}
	return map[string]interface{}{CapBrokenWindowSize: gotW != w || gotH != h}
}

// probeWindowMaximize checks that maximizing does not shrink the window in
// either dimension; an unchanged size passes.
func probeWindowMaximize(ctx context.Context, s *Server, sess *Session) map[string]interface{} {
	beforeW, beforeH, err := sess.GetWindowSize(ctx, "")
	if err != nil {
		return nil
	}
	if err := sess.MaximizeWindow(ctx, ""); err != nil {
		if wderrors.IsUnknownCommand(err) {
			return nil
		}
		return map[string]interface{}{CapBrokenWindowMaximize: true}
	}
	afterW, afterH, err := sess.GetWindowSize(ctx, "")
	if err != nil {
		return nil
	}
	return map[string]interface{}{CapBrokenWindowMaximize: afterW < beforeW || afterH < beforeH}
}

// probeViewportResize checks whether the driver reports a live
// window.innerWidth after a resize, vs. one fixed at launch.
func probeViewportResize(ctx context.Context, s *Server, sess *Session) map[string]interface{} {
	before, err := sess.Execute(ctx, "return window.innerWidth;", nil)
	if err != nil {
		return nil
	}
	beforeW, _ := before.(float64)

	_, curH, herr := sess.GetWindowSize(ctx, "")
	if herr != nil {
		return nil
	}
	if err := sess.SetWindowSize(ctx, "", int(beforeW)+100, curH); err != nil {
		return nil
	}
	after, err := sess.Execute(ctx, "return window.innerWidth;", nil)
	if err != nil {
		return nil
	}
	afterW, _ := after.(float64)
	return map[string]interface{}{CapDynamicViewport: afterW != beforeW}
}

// probeParentFrameSwitch checks that switching into a frame and back out
// leaves the top-level document in focus.
func probeParentFrameSwitch(ctx context.Context, s *Server, sess *Session) map[string]interface{} {
	if err := sess.navigateRaw(ctx, dataURIPage(`<iframe id="f" srcdoc="&lt;body&gt;inner&lt;/body&gt;"></iframe>`)); err != nil {
		return nil
	}
	el, err := sess.Find(ctx, locator.ID, "f")
	if err != nil {
		return nil
	}
	if err := sess.SwitchToFrame(ctx, el); err != nil {
		return nil
	}
	if err := sess.SwitchToParentFrame(ctx); err != nil {
		if wderrors.IsUnknownCommand(err) {
			return map[string]interface{}{CapBrokenParentFrameSwitch: true}
		}
		return nil
	}
	val, err := sess.Execute(ctx, "return window === window.top;", nil)
	if err != nil {
		return nil
	}
	top, _ := val.(bool)
	return map[string]interface{}{CapBrokenParentFrameSwitch: !top}
}

// probeElementPosition checks that an element's reported position matches
// its actual page-relative offset after scrolling, per §4.1's 3000,3000
// fixture.
func probeElementPosition(ctx context.Context, s *Server, sess *Session) map[string]interface{} {
	page := dataURIPage(`<div id="p" style="position:absolute;left:3000px;top:3000px;width:10px;height:10px;"></div>
		<div style="width:6000px;height:6000px;"></div>`)
	if err := sess.navigateRaw(ctx, page); err != nil {
		return nil
	}
	if _, err := sess.Execute(ctx, "window.scrollTo(3000, 3000);", nil); err != nil {
		return nil
	}
	el, err := sess.Find(ctx, locator.ID, "p")
	if err != nil {
		return nil
	}
	raw, err := s.request(ctx, http.MethodGet, "session/$0/element/$1/location", nil, sess.sessionID, el.elementID)
	if err != nil {
		return nil
	}
	var p wirePoint
	decodeJSONValue(raw.Value, &p)
	return map[string]interface{}{CapBrokenElementPosition: p.X != 3000 || p.Y != 3000}
}

// probeRefreshCancellation checks that /refresh completes within the 2000ms
// budget §4.1 allots it.
func probeRefreshCancellation(ctx context.Context, s *Server, sess *Session) map[string]interface{} {
	refreshCtx, cancel := context.WithTimeout(ctx, 2000*time.Millisecond)
	defer cancel()
	err := sess.Refresh(refreshCtx)
	if err == nil {
		return map[string]interface{}{CapBrokenRefresh: false}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return map[string]interface{}{CapBrokenRefresh: true}
	}
	if wderrors.IsUnknownCommand(err) {
		return map[string]interface{}{CapBrokenRefresh: true}
	}
	return nil
}

// probeHtmlMouseMove checks that a native /moveto onto a link followed by a
// native /click actually follows the link: the session counts as broken
// when the current URL afterwards is not the link's target page.
func probeHtmlMouseMove(ctx context.Context, s *Server, sess *Session) map[string]interface{} {
	page := dataURIPage(`<a id="a" href="` + dataURILinkTarget() + `">go</a>`)
	if err := sess.navigateRaw(ctx, page); err != nil {
		return nil
	}
	el, err := sess.Find(ctx, locator.ID, "a")
	if err != nil {
		return nil
	}
	if err := sess.MoveMouseTo(ctx, el, 0, 0); err != nil {
		if wderrors.IsUnknownCommand(err) {
			return map[string]interface{}{CapBrokenHtmlMouseMove: true}
		}
		return nil
	}
	if _, err := s.request(ctx, http.MethodPost, "session/$0/click", map[string]interface{}{"button": 0}, sess.sessionID); err != nil {
		return nil
	}
	currentURL, err := sess.GetCurrentURL(ctx)
	if err != nil {
		return nil
	}
	return map[string]interface{}{CapBrokenHtmlMouseMove: !strings.Contains(currentURL, "movetarget")}
}

func dataURILinkTarget() string {
	return "data:text/html;charset=utf-8," + url.QueryEscape("<html><body>movetarget</body></html>")
}

func asProtocolError(err error) (*wderrors.ProtocolError, bool) {
	pe, ok := err.(*wderrors.ProtocolError)
	return pe, ok
}

// decodeJSONValue is a small shared helper for probes that need to read a
// wire value back into a Go type.
func decodeJSONValue(raw json.RawMessage, out interface{}) {
	if len(raw) == 0 {
		return
	}
	_ = json.Unmarshal(raw, out)
}
