package webdriver

import (
	"context"
	"encoding/json"

	"github.com/vibium/webdrive/internal/locator"
)

// Element is a remote element handle: an owning Session and an opaque
// elementId from the driver. Elements are value-like — there is no
// client-side lifetime beyond the session that created them; identity is
// (sessionId, elementId), and semantic equality goes through the driver's
// own equals endpoint rather than comparing ids, since two ids can
// legitimately refer to the same node.
type Element struct {
	session   *Session
	elementID string
}

// ID returns the opaque element id assigned by the driver.
func (e *Element) ID() string { return e.elementID }

// AttachElement reconstructs a handle to an element id previously returned
// by this session, for callers (like the CLI) that only persist the bare
// id between invocations rather than the *Element value itself.
func (s *Session) AttachElement(elementID string) *Element {
	return &Element{session: s, elementID: elementID}
}

func (e *Element) serverGet(ctx context.Context, subpath string, extra ...string) (json.RawMessage, error) {
	parts := append([]string{e.elementID}, extra...)
	return e.session.serverGet(ctx, "element/$1/"+subpath, parts...)
}

func (e *Element) serverPost(ctx context.Context, subpath string, body interface{}, extra ...string) (json.RawMessage, error) {
	parts := append([]string{e.elementID}, extra...)
	return e.session.serverPost(ctx, "element/$1/"+subpath, body, parts...)
}

// Click clicks the element, falling back to script dispatch when
// brokenClick is set.
func (e *Element) Click(ctx context.Context) error {
	if e.session.capabilities.Bool(CapBrokenClick) {
		_, err := e.session.Execute(ctx, "arguments[0].click();", []interface{}{e})
		return err
	}
	_, err := e.serverPost(ctx, "click", nil)
	return err
}

// Submit submits the element's form, using a script fallback when
// brokenSubmitElement is set (some drivers never implemented the endpoint).
func (e *Element) Submit(ctx context.Context) error {
	if e.session.capabilities.Bool(CapBrokenSubmitElement) {
		script := `
			var el = arguments[0];
			while (el && el.tagName !== 'FORM') { el = el.parentElement; }
			if (el) { el.submit(); }
		`
		_, err := e.session.Execute(ctx, script, []interface{}{e})
		return err
	}
	_, err := e.serverPost(ctx, "submit", nil)
	return err
}

// GetVisibleText returns the element's rendered text.
func (e *Element) GetVisibleText(ctx context.Context) (string, error) {
	raw, err := e.serverGet(ctx, "text")
	if err != nil {
		return "", err
	}
	var v string
	json.Unmarshal(raw, &v)
	return v, nil
}

// Type sends keys to this element (focusing it first, per driver
// semantics), with the same simulate fallback Session.PressKeys applies.
func (e *Element) Type(ctx context.Context, keys []string) error {
	if e.session.capabilities.Bool(CapBrokenSendKeys) || !e.session.capabilities.Bool(CapSupportsKeysCommand) {
		joined := ""
		for _, k := range keys {
			joined += k
		}
		script := "return simulateKeys(arguments[0], arguments[1]);"
		_, err := e.session.Execute(ctx, script, []interface{}{e, joined})
		return err
	}
	_, err := e.serverPost(ctx, "value", map[string]interface{}{"value": keys})
	return err
}

// GetTagName returns the element's tag name exactly as the driver reports
// it; no case normalization is applied here.
func (e *Element) GetTagName(ctx context.Context) (string, error) {
	raw, err := e.serverGet(ctx, "name")
	if err != nil {
		return "", err
	}
	var v string
	json.Unmarshal(raw, &v)
	return v, nil
}

// ClearValue clears an editable element's content.
func (e *Element) ClearValue(ctx context.Context) error {
	_, err := e.serverPost(ctx, "clear", nil)
	return err
}

func (e *Element) boolEndpoint(ctx context.Context, subpath string) (bool, error) {
	raw, err := e.serverGet(ctx, subpath)
	if err != nil {
		return false, err
	}
	var v bool
	json.Unmarshal(raw, &v)
	return v, nil
}

func (e *Element) IsSelected(ctx context.Context) (bool, error) { return e.boolEndpoint(ctx, "selected") }
func (e *Element) IsEnabled(ctx context.Context) (bool, error)  { return e.boolEndpoint(ctx, "enabled") }

// GetSpecAttribute reads a DOM attribute exactly as the wire protocol
// defines it (distinct from the DOM getAttribute() semantics — see
// GetAttribute).
func (e *Element) GetSpecAttribute(ctx context.Context, name string) (interface{}, error) {
	raw, err := e.serverGet(ctx, "attribute/$2", name)
	if err != nil {
		return nil, err
	}
	var v interface{}
	json.Unmarshal(raw, &v)
	if v == nil && e.session.capabilities.Bool(CapBrokenNullGetSpecAttribute) {
		return nil, nil
	}
	if s, ok := v.(string); ok && s == "" && e.session.capabilities.Bool(CapBrokenNullGetSpecAttribute) {
		return nil, nil
	}
	return v, nil
}

// GetAttribute defers to GetSpecAttribute, falling back to a script that
// matches the DOM Element.getAttribute semantics (boolean attributes,
// property vs. attribute divergence for value/checked/etc).
func (e *Element) GetAttribute(ctx context.Context, name string) (interface{}, error) {
	v, err := e.GetSpecAttribute(ctx, name)
	if err == nil && v != nil {
		return v, nil
	}
	script := "return arguments[0].getAttribute(arguments[1]);"
	return e.session.Execute(ctx, script, []interface{}{e, name})
}

// GetProperty reads a live DOM property (as opposed to an attribute).
func (e *Element) GetProperty(ctx context.Context, name string) (interface{}, error) {
	raw, err := e.serverGet(ctx, "property/$2", name)
	if err != nil {
		return nil, err
	}
	var v interface{}
	json.Unmarshal(raw, &v)
	return v, nil
}

// Equals reports whether e and other refer to the same DOM node, via the
// driver's own equals endpoint rather than comparing elementIds (two ids
// can alias the same node).
func (e *Element) Equals(ctx context.Context, other *Element) (bool, error) {
	raw, err := e.serverGet(ctx, "equals/$2", other.elementID)
	if err != nil {
		return false, err
	}
	var v bool
	json.Unmarshal(raw, &v)
	return v, nil
}

// IsDisplayed reports whether the element is currently visible, with the
// two documented offscreen/opacity quirks folded in via a script
// computation when the driver's own answer can't be trusted.
func (e *Element) IsDisplayed(ctx context.Context) (bool, error) {
	if e.session.capabilities.Bool(CapBrokenElementDisplayedOffscreen) || e.session.capabilities.Bool(CapBrokenElementDisplayedOpacity) {
		script := `
			var el = arguments[0];
			var style = window.getComputedStyle(el);
			if (style.visibility === 'hidden' || style.display === 'none') return false;
			if (parseFloat(style.opacity) === 0) return false;
			var rect = el.getBoundingClientRect();
			return rect.width > 0 && rect.height > 0;
		`
		v, err := e.session.Execute(ctx, script, []interface{}{e})
		if err != nil {
			return false, err
		}
		b, _ := v.(bool)
		return b, nil
	}
	return e.boolEndpoint(ctx, "displayed")
}

type wirePoint struct{ X, Y int }

// GetPosition returns the element's page-relative position.
func (e *Element) GetPosition(ctx context.Context) (x, y int, err error) {
	if e.session.capabilities.Bool(CapBrokenElementPosition) {
		v, serr := e.session.Execute(ctx, "var r = arguments[0].getBoundingClientRect(); return {x: r.left + window.scrollX, y: r.top + window.scrollY};", []interface{}{e})
		if serr != nil {
			return 0, 0, serr
		}
		m, _ := v.(map[string]interface{})
		fx, _ := m["x"].(float64)
		fy, _ := m["y"].(float64)
		return int(fx), int(fy), nil
	}
	raw, rerr := e.serverGet(ctx, "location")
	if rerr != nil {
		return 0, 0, rerr
	}
	var p wirePoint
	json.Unmarshal(raw, &p)
	return p.X, p.Y, nil
}

// GetSize returns the element's rendered width/height, using a
// script-computed bounding rect when brokenCssTransformedSize is set (the
// driver's own size endpoint ignores CSS transforms on some versions).
func (e *Element) GetSize(ctx context.Context) (width, height int, err error) {
	if e.session.capabilities.Bool(CapBrokenCssTransformedSize) {
		v, serr := e.session.Execute(ctx, "var r = arguments[0].getBoundingClientRect(); return {width: r.width, height: r.height};", []interface{}{e})
		if serr != nil {
			return 0, 0, serr
		}
		m, _ := v.(map[string]interface{})
		w, _ := m["width"].(float64)
		h, _ := m["height"].(float64)
		return int(w), int(h), nil
	}
	raw, rerr := e.serverGet(ctx, "size")
	if rerr != nil {
		return 0, 0, rerr
	}
	var sz struct{ Width, Height int }
	json.Unmarshal(raw, &sz)
	return sz.Width, sz.Height, nil
}

// GetComputedStyle reads a single CSS property's computed value, via script
// when brokenComputedStyles is set.
func (e *Element) GetComputedStyle(ctx context.Context, property string) (string, error) {
	if e.session.capabilities.Bool(CapBrokenComputedStyles) {
		v, err := e.session.Execute(ctx, "return window.getComputedStyle(arguments[0]).getPropertyValue(arguments[1]);", []interface{}{e, property})
		if err != nil {
			return "", err
		}
		s, _ := v.(string)
		return s, nil
	}
	raw, err := e.serverGet(ctx, "css/$2", property)
	if err != nil {
		return "", err
	}
	var v string
	json.Unmarshal(raw, &v)
	return v, nil
}

// Find and FindAll scope a locator search to this element.
func (e *Element) Find(ctx context.Context, using, value string) (*Element, error) {
	w3cUsing, w3cValue := using, value
	if e.session.capabilities.Bool(CapIsWebDriver) {
		w3cUsing, w3cValue = locator.ToW3C(using, value)
	}
	raw, err := e.serverPost(ctx, "element", map[string]interface{}{"using": w3cUsing, "value": w3cValue})
	if err != nil {
		return nil, err
	}
	return elementFromWire(e.session, raw)
}

func (e *Element) FindAll(ctx context.Context, using, value string) ([]*Element, error) {
	w3cUsing, w3cValue := using, value
	if e.session.capabilities.Bool(CapIsWebDriver) {
		w3cUsing, w3cValue = locator.ToW3C(using, value)
	}
	raw, err := e.serverPost(ctx, "elements", map[string]interface{}{"using": w3cUsing, "value": w3cValue})
	if err != nil {
		return nil, err
	}
	return elementsFromWire(e.session, raw)
}
