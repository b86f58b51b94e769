package webdriver

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"regexp"
	"sync"

	"github.com/vibium/webdrive/internal/status"
	"github.com/vibium/webdrive/internal/wderrors"
)

// maxTimeoutMs is 2^23-1, the clamp applied to an "infinite" timeout
// request (spec.md §4.2 setTimeout).
const maxTimeoutMs = 1<<23 - 1

// Session is a live conversation with a remote browser: an opaque
// sessionId, the Server it was created through, its capability map, a
// timeout cache, and the small bits of transient state (last mouse
// position, closed windows, last reported altitude) the quirk workarounds
// need. Sessions are created by Server.CreateSession (or rebuilt around an
// existing sessionId by Server.AttachSession) and destroyed by Quit.
type Session struct {
	sessionID    string
	server       *Server
	capabilities Capabilities

	mu                sync.Mutex
	queue             *sessionQueue
	timeouts          map[string]int
	movedToElement    bool
	lastMousePosition *point
	lastAltitude      *float64
	closedWindows     map[string]bool
}

type point struct{ X, Y int }

func newSession(id string, server *Server, caps Capabilities) *Session {
	return &Session{
		sessionID:     id,
		server:        server,
		capabilities:  caps,
		queue:         newSessionQueue(),
		timeouts:      map[string]int{},
		closedWindows: map[string]bool{},
	}
}

// ID returns the opaque sessionId the driver assigned.
func (s *Session) ID() string { return s.sessionID }

// Capabilities returns the session's filled capability map.
func (s *Session) Capabilities() Capabilities { return s.capabilities }

// sessionQueue is the per-session serialization tail: exactly one request
// runs at a time, and the chain retains only its current head so memory use
// is bounded per §5.
type sessionQueue struct {
	mu   sync.Mutex
	tail chan struct{}
}

func newSessionQueue() *sessionQueue {
	q := &sessionQueue{tail: make(chan struct{})}
	close(q.tail)
	return q
}

// run waits for the current tail to settle, then executes fn, then opens
// the next tail slot for whoever queued up next.
func (q *sessionQueue) run(ctx context.Context, fn func() error) error {
	q.mu.Lock()
	prev := q.tail
	next := make(chan struct{})
	q.tail = next
	q.mu.Unlock()

	<-prev

	var err error
	select {
	case <-ctx.Done():
		err = &wderrors.CancelError{}
	default:
		err = fn()
	}
	close(next)
	return err
}

// serverGet/serverPost/serverDelete are the thin session-scoped wrappers
// around Server.request that build the "session/{sessionId}/{subpath}"
// path and serialize through the session queue.
func (s *Session) serverGet(ctx context.Context, subpath string, pathParts ...string) (json.RawMessage, error) {
	return s.delegate(ctx, http.MethodGet, subpath, nil, pathParts...)
}

func (s *Session) serverPost(ctx context.Context, subpath string, body interface{}, pathParts ...string) (json.RawMessage, error) {
	return s.delegate(ctx, http.MethodPost, subpath, body, pathParts...)
}

func (s *Session) serverDelete(ctx context.Context, subpath string, pathParts ...string) (json.RawMessage, error) {
	return s.delegate(ctx, http.MethodDelete, subpath, nil, pathParts...)
}

// delegate implements the request-serialization contract from §4.2: it
// substitutes the empty-body fallback when brokenEmptyPost applies, then
// chains the actual round trip onto the session's queue so at most one
// request is ever in flight.
func (s *Session) delegate(ctx context.Context, method, subpath string, body interface{}, pathParts ...string) (json.RawMessage, error) {
	if body == nil && method == http.MethodPost && s.capabilities.Bool(CapBrokenEmptyPost) {
		body = map[string]interface{}{}
	}

	fullParts := append([]string{s.sessionID}, pathParts...)
	path := "session/$0"
	if subpath != "" {
		path += "/" + subpath
	}

	var result json.RawMessage
	err := s.queue.run(ctx, func() error {
		resp, rerr := s.server.request(ctx, method, path, body, fullParts...)
		if rerr != nil {
			return rerr
		}
		result = resp.Value
		return nil
	})
	return result, err
}

func (s *Session) quitBestEffort(ctx context.Context) {
	_ = s.Quit(ctx)
}

// Quit destroys the session with DELETE /session/{id}.
func (s *Session) Quit(ctx context.Context) error {
	_, err := s.delegate(ctx, http.MethodDelete, "", nil)
	return err
}

// SetTimeout sets one of the three driver-managed timeouts ("script",
// "implicit", "page load"). Infinity is clamped to 2^23-1; 0 is bumped to 1
// if brokenZeroTimeout is set. The cache is only updated after a successful
// round trip.
func (s *Session) SetTimeout(ctx context.Context, timeoutType string, ms float64) error {
	if math.IsInf(ms, 1) {
		ms = float64(maxTimeoutMs)
	}
	if ms == 0 && s.capabilities.Bool(CapBrokenZeroTimeout) {
		ms = 1
	}

	_, err := s.serverPost(ctx, "timeouts", map[string]interface{}{"type": timeoutType, "ms": ms})
	if err != nil {
		if wderrors.IsUnknownCommand(err) {
			perTypePath := map[string]string{
				"script":    "timeouts/async_script",
				"implicit":  "timeouts/implicit_wait",
			}[timeoutType]
			if perTypePath != "" {
				_, err2 := s.serverPost(ctx, perTypePath, map[string]interface{}{"ms": ms})
				if err2 != nil {
					return err2
				}
				s.mu.Lock()
				s.timeouts[timeoutType] = int(ms)
				s.mu.Unlock()
				return nil
			}
		}
		return err
	}

	s.mu.Lock()
	s.timeouts[timeoutType] = int(ms)
	s.mu.Unlock()
	return nil
}

// GetTimeout reads the cached value last successfully set for timeoutType.
func (s *Session) GetTimeout(timeoutType string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeouts[timeoutType]
}

// Get navigates to url, clearing movedToElement and, if brokenMouseEvents
// is set, resetting lastMousePosition to the origin.
func (s *Session) Get(ctx context.Context, url string) error {
	s.mu.Lock()
	s.movedToElement = false
	if s.capabilities.Bool(CapBrokenMouseEvents) {
		s.lastMousePosition = &point{0, 0}
	}
	s.mu.Unlock()
	return s.navigateRaw(ctx, url)
}

func (s *Session) navigateRaw(ctx context.Context, url string) error {
	_, err := s.serverPost(ctx, "url", map[string]interface{}{"url": url})
	return err
}

// navigateBestEffort is used between capability probes to reset page state;
// errors are deliberately swallowed.
func (s *Session) navigateBestEffort(ctx context.Context, url string) {
	_ = s.navigateRaw(ctx, url)
}

// Refresh reloads the current page, falling back to a script if
// brokenRefresh is set.
func (s *Session) Refresh(ctx context.Context) error {
	if s.capabilities.Bool(CapBrokenRefresh) {
		_, err := s.Execute(ctx, "location.reload();", nil)
		return err
	}
	_, err := s.serverPost(ctx, "refresh", nil)
	return err
}

// GoBack and GoForward walk session history.
func (s *Session) GoBack(ctx context.Context) error {
	_, err := s.serverPost(ctx, "back", nil)
	return err
}

func (s *Session) GoForward(ctx context.Context) error {
	_, err := s.serverPost(ctx, "forward", nil)
	return err
}

// GetCurrentURL and GetPageTitle are plain passthroughs.
func (s *Session) GetCurrentURL(ctx context.Context) (string, error) {
	raw, err := s.serverGet(ctx, "url")
	if err != nil {
		return "", err
	}
	var v string
	json.Unmarshal(raw, &v)
	return v, nil
}

func (s *Session) GetPageTitle(ctx context.Context) (string, error) {
	raw, err := s.serverGet(ctx, "title")
	if err != nil {
		return "", err
	}
	var v string
	json.Unmarshal(raw, &v)
	return v, nil
}

// GetScreenshot returns a base64-encoded PNG of the current page, as
// reported by GET /screenshot.
func (s *Session) GetScreenshot(ctx context.Context) (string, error) {
	raw, err := s.serverGet(ctx, "screenshot")
	if err != nil {
		return "", err
	}
	var v string
	json.Unmarshal(raw, &v)
	return v, nil
}

// GetPageSource returns the document's serialized HTML.
func (s *Session) GetPageSource(ctx context.Context) (string, error) {
	raw, err := s.serverGet(ctx, "source")
	if err != nil {
		return "", err
	}
	var v string
	json.Unmarshal(raw, &v)
	return v, nil
}

// Execute and ExecuteAsync run script in the remote browser. args, if
// given, must already be a JSON-serializable sequence; any Element within
// it is serialized to {ELEMENT: elementId}. The response is walked to
// rehydrate any {ELEMENT: id} value into an *Element bound to this session.
func (s *Session) Execute(ctx context.Context, script string, args []interface{}) (interface{}, error) {
	return s.execute(ctx, "execute", script, args)
}

func (s *Session) ExecuteAsync(ctx context.Context, script string, args []interface{}) (interface{}, error) {
	return s.execute(ctx, "execute_async", script, args)
}

func (s *Session) execute(ctx context.Context, endpoint, script string, args []interface{}) (interface{}, error) {
	if args == nil {
		args = []interface{}{}
	}
	wireArgs := make([]interface{}, len(args))
	for i, a := range args {
		wireArgs[i] = serializeScriptArg(a)
	}

	body := map[string]interface{}{
		"script": stripCoverageCounters(script),
		"args":   wireArgs,
	}

	raw, err := s.serverPost(ctx, endpoint, body)
	if err != nil {
		if endpoint == "execute" {
			if pe, ok := err.(*wderrors.ProtocolError); ok && pe.Status == int(status.UnknownError) {
				pe.Status = int(status.JavaScriptError)
				pe.Name = status.Name(int(status.JavaScriptError))
			}
		}
		return nil, err
	}

	var v interface{}
	json.Unmarshal(raw, &v)
	v = rehydrateElements(s, v)

	if v == nil && s.capabilities.Bool(CapBrokenExecuteUndefinedReturn) {
		return nil, nil
	}
	return v, nil
}

// coverageCounterPattern matches the jscoverage/istanbul-style increment
// statements (`__cov_5f3a2[12]++;`, `__cov_5f3a2.lines[3]++;`) an
// instrumented script under test carries in its source, per spec.md §4.2.
var coverageCounterPattern = regexp.MustCompile(`__cov_[\w$]*(?:\.[\w$]+|\[[^\]]*\])*\+\+;`)

// stripCoverageCounters removes injected `__cov_xxx;` statements so they
// don't execute as part of the script sent to the driver.
func stripCoverageCounters(script string) string {
	return coverageCounterPattern.ReplaceAllString(script, "")
}

// serializeScriptArg converts an *Element argument to its wire shape;
// everything else passes through unchanged.
func serializeScriptArg(a interface{}) interface{} {
	if el, ok := a.(*Element); ok {
		return map[string]interface{}{elementKey: el.elementID}
	}
	return a
}

// elementKey is the wire sentinel key identifying a serialized element.
const elementKey = "ELEMENT"

// rehydrateElements walks v recursively and replaces any {ELEMENT: id}
// object with an *Element bound to sess.
func rehydrateElements(sess *Session, v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		if id, ok := t[elementKey].(string); ok && len(t) == 1 {
			return &Element{session: sess, elementID: id}
		}
		out := make(map[string]interface{}, len(t))
		for k, vv := range t {
			out[k] = rehydrateElements(sess, vv)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, vv := range t {
			out[i] = rehydrateElements(sess, vv)
		}
		return out
	default:
		return v
	}
}
