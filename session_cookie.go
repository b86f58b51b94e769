package webdriver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/vibium/webdrive/internal/status"
	"github.com/vibium/webdrive/internal/wderrors"
)

// cookieExpiryFormat is the GMT date format document.cookie expects.
const cookieExpiryFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

// Cookie mirrors the driver's cookie shape. Expiry uses time.Time in the
// library; the wire form is seconds-since-epoch.
type Cookie struct {
	Name     string
	Value    string
	Path     string
	Domain   string
	Secure   bool
	HTTPOnly bool
	Expiry   *time.Time
}

var cookieNameInvalid = regexp.MustCompile("[^A-Za-z0-9!#$%&'*+.^_`|~-]")
var cookieValueInvalid = regexp.MustCompile(`[\x00-\x1F\x7F",;\\ ]`)

func (c Cookie) toWire() map[string]interface{} {
	m := map[string]interface{}{"name": c.Name, "value": c.Value}
	if c.Path != "" {
		m["path"] = c.Path
	}
	if c.Domain != "" {
		m["domain"] = c.Domain
	}
	if c.Secure {
		m["secure"] = true
	}
	if c.HTTPOnly {
		m["httpOnly"] = true
	}
	if c.Expiry != nil {
		m["expiry"] = c.Expiry.Unix()
	}
	return m
}

type wireCookie struct {
	Name     string      `json:"name"`
	Value    string      `json:"value"`
	Path     string      `json:"path"`
	Domain   string      `json:"domain"`
	Secure   bool        `json:"secure"`
	HTTPOnly bool        `json:"httpOnly"`
	Expiry   interface{} `json:"expiry"`
}

func (w wireCookie) toCookie() Cookie {
	c := Cookie{Name: w.Name, Value: w.Value, Path: w.Path, Domain: w.Domain, Secure: w.Secure, HTTPOnly: w.HTTPOnly}
	switch e := w.Expiry.(type) {
	case float64:
		t := time.Unix(int64(e), 0).UTC()
		c.Expiry = &t
	}
	return c
}

// SetCookie sets cookie on the current page. On UnknownCommand it falls
// back to assembling a document.cookie string in-page, after validating
// the name/value against RFC 6265 token/cookie-octet syntax.
func (s *Session) SetCookie(ctx context.Context, c Cookie) error {
	_, err := s.serverPost(ctx, "cookie", map[string]interface{}{"cookie": c.toWire()})
	if err == nil {
		return nil
	}
	if !wderrors.IsUnknownCommand(err) {
		return err
	}

	if cookieNameInvalid.MatchString(c.Name) || cookieValueInvalid.MatchString(c.Value) {
		return &wderrors.ProtocolError{
			Status:  int(status.UnableToSetCookie),
			Name:    status.Name(int(status.UnableToSetCookie)),
			Message: "cookie name or value is not valid per RFC 6265",
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s=%s", c.Name, urlEncode(c.Value))
	if c.Path != "" {
		fmt.Fprintf(&sb, "; path=%s", c.Path)
	}
	if c.Domain != "" && c.Domain != "http" {
		fmt.Fprintf(&sb, "; domain=%s", c.Domain)
	}
	if c.Expiry != nil {
		fmt.Fprintf(&sb, "; expires=%s", c.Expiry.UTC().Format(cookieExpiryFormat))
	}
	if c.Secure {
		sb.WriteString("; secure")
	}

	script := fmt.Sprintf("document.cookie = %q;", sb.String())
	_, serr := s.Execute(ctx, script, nil)
	return serr
}

// GetCookies returns every cookie visible to the current page, stripping
// non-standard keys some drivers (Safari) append and converting numeric
// expiry to a Time.
func (s *Session) GetCookies(ctx context.Context) ([]Cookie, error) {
	raw, err := s.serverGet(ctx, "cookie")
	if err != nil {
		return nil, err
	}
	var wire []wireCookie
	json.Unmarshal(raw, &wire)
	out := make([]Cookie, 0, len(wire))
	for _, w := range wire {
		out = append(out, w.toCookie())
	}
	return out, nil
}

// ClearCookies removes every cookie for the current page, falling back to
// a per-cookie script-based expiry when brokenDeleteCookie is set.
func (s *Session) ClearCookies(ctx context.Context) error {
	if !s.capabilities.Bool(CapBrokenDeleteCookie) {
		_, err := s.serverDelete(ctx, "cookie")
		return err
	}
	cookies, err := s.GetCookies(ctx)
	if err != nil {
		return err
	}
	for _, c := range cookies {
		if err := s.expireCookieViaScript(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

// DeleteCookie removes a single named cookie, with the same
// brokenDeleteCookie fallback as ClearCookies.
//
// One ambiguous source behavior is resolved here per the design notes: a
// variant of this path indexed the status registry by the first character
// of the error's status code (a transcription bug, since status is already
// numeric). This implementation does not consult the status registry on
// this path at all: the fallback is chosen by brokenDeleteCookie alone.
func (s *Session) DeleteCookie(ctx context.Context, name string) error {
	if !s.capabilities.Bool(CapBrokenDeleteCookie) {
		_, err := s.serverDelete(ctx, "cookie/$1", name)
		return err
	}

	cookies, err := s.GetCookies(ctx)
	if err != nil {
		return err
	}
	for _, c := range cookies {
		if c.Name == name {
			return s.expireCookieViaScript(ctx, c)
		}
	}
	return nil
}

func (s *Session) expireCookieViaScript(ctx context.Context, c Cookie) error {
	script := fmt.Sprintf(
		"document.cookie = %q + encodeURIComponent(document.domain) + %q;",
		c.Name+"=; expires=Thu, 01 Jan 1970 00:00:00 GMT; domain=", "; path=/",
	)
	_, err := s.Execute(ctx, script, nil)
	return err
}

func urlEncode(v string) string {
	return url.QueryEscape(v)
}
