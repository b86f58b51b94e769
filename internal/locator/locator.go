// Package locator defines the closed set of WebDriver search strategies and
// the translation from JsonWireProtocol strategy names to their W3C
// equivalents.
package locator

// Strategy names as they appear on the wire.
const (
	ClassName        = "class name"
	CSSSelector      = "css selector"
	ID               = "id"
	Name             = "name"
	LinkText         = "link text"
	PartialLinkText  = "partial link text"
	TagName          = "tag name"
	XPath            = "xpath"
)

// Strategies lists every recognized strategy, in the order the strategy
// mixin installs shortcut methods for them.
var Strategies = []string{
	ClassName, CSSSelector, ID, Name, LinkText, PartialLinkText, TagName, XPath,
}

// Suffix is the capitalized, space-stripped form used to build method names
// like findById / findAllByCssSelector.
func Suffix(strategy string) string {
	switch strategy {
	case ClassName:
		return "ClassName"
	case CSSSelector:
		return "CssSelector"
	case ID:
		return "Id"
	case Name:
		return "Name"
	case LinkText:
		return "LinkText"
	case PartialLinkText:
		return "PartialLinkText"
	case TagName:
		return "TagName"
	case XPath:
		return "XPath"
	default:
		return strategy
	}
}

// IsLinkText reports whether strategy is one of the two link-text strategies,
// which are the ones affected by brokenLinkTextLocator / whitespace quirks.
func IsLinkText(strategy string) bool {
	return strategy == LinkText || strategy == PartialLinkText
}

// ToW3C translates a JsonWireProtocol (using, value) pair into the W3C
// locator strategy, which is always "css selector" except for the two
// link-text strategies (preserved as-is) and xpath (preserved as-is).
//
// Per the W3C spec, "id", "class name", "name" and "tag name" have no native
// strategy and must be rewritten as CSS selectors.
func ToW3C(using, value string) (w3cUsing, w3cValue string) {
	switch using {
	case ID:
		return CSSSelector, "#" + escapeCSSIdent(value)
	case ClassName:
		return CSSSelector, "." + escapeCSSIdent(value)
	case Name:
		return CSSSelector, `[name="` + escapeCSSAttrValue(value) + `"]`
	case TagName:
		return CSSSelector, value
	default:
		// css selector, xpath, link text, partial link text pass through.
		return using, value
	}
}

// escapeCSSIdent escapes a value for use as a CSS identifier fragment (after
// '#' or '.'). It is deliberately conservative: it escapes anything that
// isn't a plain ASCII letter, digit, hyphen or underscore.
func escapeCSSIdent(v string) string {
	out := make([]byte, 0, len(v))
	for i := 0; i < len(v); i++ {
		c := v[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			out = append(out, c)
		default:
			out = append(out, '\\', c)
		}
	}
	return string(out)
}

// escapeCSSAttrValue escapes a value for embedding inside a double-quoted
// CSS attribute selector.
func escapeCSSAttrValue(v string) string {
	out := make([]byte, 0, len(v))
	for i := 0; i < len(v); i++ {
		c := v[i]
		if c == '"' || c == '\\' {
			out = append(out, '\\')
		}
		out = append(out, c)
	}
	return string(out)
}
