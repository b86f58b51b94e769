// Package webdriver is a client library for driving remote browser
// automation servers that speak the WebDriver wire protocol, both the
// legacy JsonWireProtocol and the W3C standard.
package webdriver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/vibium/webdrive/internal/status"
	"github.com/vibium/webdrive/internal/wderrors"
)

// doer is the transport seam: anything that can round-trip an *http.Request.
// *http.Client satisfies it; tests substitute a fake.
type doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Server is the transport and session factory: it normalizes the driver
// base URL, issues JSON requests, translates the wire's error taxonomy, and
// fills per-session capabilities on creation.
type Server struct {
	baseURL *url.URL
	client  doer
	log     *log.Logger
	auth    string // "user:pass" form folded into the basic-auth header
}

// ServerOption configures a Server at construction time.
type ServerOption func(*Server)

// WithHTTPClient overrides the default *http.Client.
func WithHTTPClient(c doer) ServerOption {
	return func(s *Server) { s.client = c }
}

// WithLogger overrides the default logger (log.Default()).
func WithLogger(l *log.Logger) ServerOption {
	return func(s *Server) { s.log = l }
}

// WithRequestTimeout sets the per-request timeout on whatever *http.Client
// the Server holds when this option runs. Options run in order: a later
// WithHTTPClient replaces the adjusted client, and if the client in place is
// not an *http.Client the option does nothing.
func WithRequestTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		if c, ok := s.client.(*http.Client); ok {
			c.Timeout = d
		}
	}
}

// NewServer normalizes url to end in "/" and folds any username/password
// from the URL's userinfo into a basic-auth segment carried on every
// request. There is no separate accessKey input; credentials come from the
// URL only.
func NewServer(rawURL string, opts ...ServerOption) (*Server, error) {
	if !strings.HasSuffix(rawURL, "/") {
		rawURL += "/"
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &wderrors.ValidationError{Field: "url", Reason: err.Error()}
	}

	s := &Server{
		baseURL: u,
		client:  &http.Client{Timeout: 60 * time.Second},
		log:     log.Default(),
	}
	if u.User != nil {
		user := u.User.Username()
		pass, _ := u.User.Password()
		s.auth = user + ":" + pass
		stripped := *u
		stripped.User = nil
		s.baseURL = &stripped
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// wireResponse is the normalized shape every successful round trip settles
// into: {status, sessionId, value}.
type wireResponse struct {
	Status    int             `json:"status"`
	SessionID string          `json:"sessionId"`
	Value     json.RawMessage `json:"value"`
}

// rawErrorValue is the error shape nested under "value" on a failed
// response.
type rawErrorValue struct {
	Message string `json:"message"`
	Class   string `json:"class"`
	Screen  string `json:"screen"`
}

// request issues one HTTP call against path (with $0, $1, ... placeholders
// substituted, URL-encoded, from pathParts) and body (nil for no body),
// applying the full request protocol from §4.1: redirect-follow after
// session creation, empty-body synthesis on 204, JSON-vs-text body
// handling, and error normalization.
func (s *Server) request(ctx context.Context, method, path string, body interface{}, pathParts ...string) (*wireResponse, error) {
	resolved := substitutePathParts(path, pathParts)
	fullURL := s.baseURL.String() + resolved

	var bodyBytes []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, &wderrors.ValidationError{Field: "body", Reason: err.Error()}
		}
		bodyBytes = b
	}

	resp, rawText, contentType, status, err := s.doRequest(ctx, method, fullURL, bodyBytes)
	if err != nil {
		return nil, &wderrors.ConnectionError{URL: fullURL, Cause: err}
	}

	// Step 3: follow a single redirect after POST /session, for pre-2013
	// drivers that redirect to the capability URL.
	if status >= 300 && status < 400 && resp != nil {
		if loc := resp.Header.Get("Location"); loc != "" {
			redirected, rerr := url.Parse(loc)
			if rerr == nil {
				target := s.baseURL.ResolveReference(redirected).String()
				resp2, rawText2, ct2, st2, err2 := s.doRequest(ctx, http.MethodGet, target, nil)
				if err2 != nil {
					return nil, &wderrors.ConnectionError{URL: target, Cause: err2}
				}
				resp, rawText, contentType, status = resp2, rawText2, ct2, st2
			}
		}
	}

	if status == http.StatusNoContent {
		return &wireResponse{Status: 0, Value: json.RawMessage("null")}, nil
	}

	var parsed wireResponse
	isJSON := strings.HasPrefix(contentType, "application/json")
	if isJSON {
		if jerr := json.Unmarshal(rawText, &parsed); jerr != nil {
			// Body claimed JSON but didn't parse; treat as raw text below.
			isJSON = false
		}
	}
	if !isJSON {
		parsed = wireResponse{Status: 0, Value: mustRawString(string(rawText))}
	}

	if status >= 400 || parsed.Status > 0 {
		return nil, s.normalizeError(method, fullURL, string(bodyBytes), status, rawText, &parsed)
	}

	return &parsed, nil
}

func (s *Server) doRequest(ctx context.Context, method, fullURL string, bodyBytes []byte) (*http.Response, []byte, string, int, error) {
	var reader io.Reader
	if bodyBytes != nil {
		reader = bytes.NewReader(bodyBytes)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, nil, "", 0, err
	}
	req.Header.Set("Accept", "application/json,text/plain;q=0.9")
	if bodyBytes != nil {
		req.Header.Set("Content-Type", "application/json;charset=UTF-8")
		req.Header.Set("Content-Length", strconv.Itoa(len(bodyBytes)))
	} else {
		req.Header.Set("Content-Length", "0")
	}
	if s.auth != "" {
		user, pass, _ := strings.Cut(s.auth, ":")
		req.SetBasicAuth(user, pass)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, nil, "", 0, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, "", 0, err
	}
	return resp, raw, resp.Header.Get("Content-Type"), resp.StatusCode, nil
}

// normalizeError applies the ordered normalization rules from §4.1 step 6
// and produces a *wderrors.ProtocolError.
func (s *Server) normalizeError(method, fullURL, reqBody string, httpStatus int, rawText []byte, parsed *wireResponse) error {
	var ev rawErrorValue
	hadValue := len(parsed.Value) > 0 && string(parsed.Value) != "null"
	if hadValue {
		json.Unmarshal(parsed.Value, &ev)
	}

	code := parsed.Status

	if !looksLikeJSON(rawText) {
		// No JSON body at all.
		if httpStatus == 404 || httpStatus == 501 {
			code = int(status.UnknownCommand)
		} else {
			code = int(status.UnknownError)
		}
		ev.Message = string(rawText)
	} else if !hadValue {
		// JSON but no "value" — look for a top-level "message".
		var withMsg struct {
			Message string `json:"message"`
		}
		json.Unmarshal(rawText, &withMsg)
		if withMsg.Message != "" {
			ev.Message = withMsg.Message
			if httpStatus == 404 || httpStatus == 501 {
				code = int(status.UnknownCommand)
			} else {
				code = int(status.UnknownError)
			}
			if strings.Contains(strings.ToLower(withMsg.Message), "cannot find command") {
				code = int(status.UnknownCommand)
			}
		}
	}

	if httpStatus == 501 && code == int(status.UnknownError) {
		code = int(status.UnknownCommand)
	}
	if httpStatus == 500 && ev.Message == "Invalid Command" {
		code = int(status.UnknownCommand)
	}
	if code == int(status.UnknownError) && (strings.Contains(ev.Class, "UnsupportedOperationException") || strings.Contains(ev.Class, "UnsupportedCommandException")) {
		code = int(status.UnknownCommand)
	}
	if httpStatus == 500 && (strings.Contains(ev.Message, "Command not found") || strings.Contains(ev.Message, "Unknown command")) {
		code = int(status.UnknownCommand)
	}
	if httpStatus == 405 && strings.Contains(ev.Message, "Invalid Command Method") {
		code = int(status.UnknownCommand)
	}

	name := status.Name(code)
	if name == "" {
		name = "UnknownError"
	}
	message := status.Message(code)
	if ev.Message != "" {
		message = ev.Message
	}

	pe := &wderrors.ProtocolError{
		Status:  code,
		Name:    name,
		Message: message,
		Detail:  ev.Class,
		Request: wderrors.RequestDetail{Method: method, URL: fullURL, Body: reqBody},
		CallerStack: captureStack(),
	}
	pe.DecodeScreen(ev.Screen)
	return pe
}

func looksLikeJSON(b []byte) bool {
	t := bytes.TrimSpace(b)
	return len(t) > 0 && (t[0] == '{' || t[0] == '[')
}

func mustRawString(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}

func substitutePathParts(path string, parts []string) string {
	out := path
	for i, p := range parts {
		placeholder := "$" + strconv.Itoa(i)
		out = strings.ReplaceAll(out, placeholder, url.PathEscape(p))
	}
	return out
}

func captureStack() string {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	var sb strings.Builder
	for {
		frame, more := frames.Next()
		fmt.Fprintf(&sb, "\t%s\n\t\t%s:%d\n", frame.Function, frame.File, frame.Line)
		if !more {
			break
		}
	}
	return sb.String()
}

// GetStatus reports the remote server's readiness (GET /status).
func (s *Server) GetStatus(ctx context.Context) (interface{}, error) {
	resp, err := s.request(ctx, http.MethodGet, "status", nil)
	if err != nil {
		return nil, err
	}
	var v interface{}
	json.Unmarshal(resp.Value, &v)
	return v, nil
}

// GetSessions lists the sessions currently active on the remote server.
func (s *Server) GetSessions(ctx context.Context) ([]map[string]interface{}, error) {
	resp, err := s.request(ctx, http.MethodGet, "sessions", nil)
	if err != nil {
		return nil, err
	}
	var v []map[string]interface{}
	json.Unmarshal(resp.Value, &v)
	return v, nil
}

// GetSessionCapabilities fetches the capability map the driver currently
// reports for sessionID, without mutating any live Session.
func (s *Server) GetSessionCapabilities(ctx context.Context, sessionID string) (Capabilities, error) {
	resp, err := s.request(ctx, http.MethodGet, "session/$0", nil, sessionID)
	if err != nil {
		return nil, err
	}
	var v Capabilities
	json.Unmarshal(resp.Value, &v)
	return v, nil
}

// DeleteSession tears down sessionID on the remote server without going
// through a live Session's quit().
func (s *Server) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := s.request(ctx, http.MethodDelete, "session/$0", nil, sessionID)
	return err
}

// CreateSessionOptions controls session-creation behavior; FixCapabilities
// corresponds to the desiredCapabilities extension key "fixSessionCapabilities"
// and Detect to "fixSessionCapabilities !== 'no-detect'".
type CreateSessionOptions struct {
	FixCapabilities bool
	Detect          bool
}

// CreateSession posts desired (and optional required) capabilities to
// /session, builds the bound Session, and — unless opts disables it — runs
// the two-phase capability filler before returning.
func (s *Server) CreateSession(ctx context.Context, desired Capabilities, required Capabilities, opts CreateSessionOptions) (*Session, error) {
	body := map[string]interface{}{"desiredCapabilities": map[string]interface{}(desired)}
	if required != nil {
		body["requiredCapabilities"] = map[string]interface{}(required)
	}

	resp, err := s.request(ctx, http.MethodPost, "session", body)
	if err != nil {
		return nil, err
	}

	sessionID := resp.SessionID
	var raw map[string]interface{}
	json.Unmarshal(resp.Value, &raw)
	if sessionID == "" {
		if v, ok := raw["sessionId"].(string); ok {
			sessionID = v
		}
	}

	// geckodriver nests capabilities under value.value.
	capSource := raw
	if nested, ok := raw["value"].(map[string]interface{}); ok {
		capSource = nested
	}

	caps := Capabilities{}
	for k, v := range capSource {
		caps[k] = v
	}
	caps.mirrorLegacyIdentity()

	sess := newSession(sessionID, s, caps)

	if opts.FixCapabilities {
		if ferr := s.fillCapabilities(ctx, sess, opts.Detect); ferr != nil {
			sess.quitBestEffort(ctx)
			return nil, ferr
		}
	}
	sess.capabilities.setFilled()

	return sess, nil
}

// AttachSession reconstructs a handle to a session that already exists on
// the remote end, given its sessionId and previously-filled capabilities.
// It issues no request; callers that only have a bare id should pair this
// with GetSessionCapabilities first. Meant for processes that pick up a
// session created by another invocation (see internal/sessionregistry).
func (s *Server) AttachSession(id string, caps Capabilities) *Session {
	return newSession(id, s, caps)
}

// fillCapabilities runs the static known-defects table, always, then the
// dynamic probe phase unless detect is false.
func (s *Server) fillCapabilities(ctx context.Context, sess *Session, detect bool) error {
	sess.capabilities.merge(knownDefects(sess.capabilities))
	if !detect {
		return nil
	}
	results, err := s.runCapabilityProbes(ctx, sess)
	if err != nil {
		return err
	}
	sess.capabilities.merge(results)
	return nil
}

// redactedURL strips any basic-auth userinfo before the URL appears in a
// log line or error message.
func redactedURL(u *url.URL) string {
	cp := *u
	cp.User = nil
	return cp.String()
}

// base64DecodeScreen is a small helper kept for parity with the "decode
// value.screen from base64" step; wderrors.ProtocolError.DecodeScreen does
// the actual work, this just guards empty input the same way.
func base64DecodeScreen(raw string) []byte {
	if raw == "" {
		return nil
	}
	b, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil
	}
	return b
}
